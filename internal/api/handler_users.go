package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"coffee-fleet-backend/internal/model"
)

type putUserRequest struct {
	Role     model.Role `json:"role" binding:"required"`
	IsActive *bool      `json:"is_active" binding:"required"`
}

// PutUser sets the role and active flag of a provisioned operator.
func (h *Handler) PutUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var req putUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be admin or staff"})
		return
	}

	user, err := h.store.UpdateUser(c.Request.Context(), id, req.Role, *req.IsActive)
	if err != nil {
		c.JSON(statusOrUnavailable(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, user)
}
