package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

// GetMachines handles the GET /api/machines request.
func (h *Handler) GetMachines(c *gin.Context) {
	machines, err := h.store.ListMachines(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to retrieve machines"})
		return
	}
	c.JSON(http.StatusOK, machines)
}

// GetMachine handles the GET /api/machines/{id} request with a fresh snapshot.
func (h *Handler) GetMachine(c *gin.Context) {
	id, ok := machineIDParam(c)
	if !ok {
		return
	}

	snapshot, err := h.store.GetSnapshot(c.Request.Context(), id)
	if err != nil {
		c.AbortWithStatusJSON(statusOrUnavailable(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// GetInventoryLog handles the GET /api/machines/{id}/inventory_log request.
func (h *Handler) GetInventoryLog(c *gin.Context) {
	id, ok := machineIDParam(c)
	if !ok {
		return
	}
	limit, ok := limitParam(c)
	if !ok {
		return
	}

	entries, err := h.store.ListInventoryLog(c.Request.Context(), id, limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to retrieve inventory log"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GetStatusLog handles the GET /api/machines/{id}/status_log request.
func (h *Handler) GetStatusLog(c *gin.Context) {
	id, ok := machineIDParam(c)
	if !ok {
		return
	}
	limit, ok := limitParam(c)
	if !ok {
		return
	}

	entries, err := h.store.ListStatusLog(c.Request.Context(), id, limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to retrieve status log"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func limitParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultLogLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}
	return limit, true
}

// statusOrUnavailable treats any unclassified store error as unavailability.
func statusOrUnavailable(err error) int {
	if status := statusFor(err); status != http.StatusInternalServerError {
		return status
	}
	return http.StatusServiceUnavailable
}
