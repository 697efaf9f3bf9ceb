package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"coffee-fleet-backend/internal/access"
	"coffee-fleet-backend/internal/conversation"
	"coffee-fleet-backend/internal/ledger"
	"coffee-fleet-backend/internal/model"
	"coffee-fleet-backend/internal/store"
)

const (
	operatorHeader = "X-Operator-ID"
	roleKey        = "operator_role"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store        store.Store
	gate         conversation.Authorizer
	conversation *conversation.Service
	webpush      *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, gate conversation.Authorizer, conv *conversation.Service, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:        s,
		gate:         gate,
		conversation: conv,
		webpush:      webpushOptions,
	}
}

// RequireOperator authorizes the operator named by the X-Operator-ID header
// and stores the resolved role in the context.
func (h *Handler) RequireOperator(c *gin.Context) {
	id, err := strconv.ParseInt(c.GetHeader(operatorHeader), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "X-Operator-ID header is required"})
		return
	}

	role, err := h.gate.Authorize(c.Request.Context(), access.Identity{ID: id})
	if err != nil {
		if errors.Is(err, access.ErrDenied) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}
	c.Set(roleKey, role)
	c.Next()
}

// RequireAdmin must run after RequireOperator.
func (h *Handler) RequireAdmin(c *gin.Context) {
	if role, _ := c.Get(roleKey); role != model.RoleAdmin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}
	c.Next()
}

// statusFor maps ledger errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrMachineNotFound), errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func machineIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid machine ID"})
		return 0, false
	}
	return id, true
}
