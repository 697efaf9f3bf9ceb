package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"coffee-fleet-backend/config"
	"coffee-fleet-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig, metricsHandler http.Handler) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	// Only the machine list is cached; snapshots and logs always hit the store.
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Routes below take the operator id from the caller.
		operator := api.Group("")
		if cfg.APIToken != "" {
			operator.Use(mw.SharedToken(cfg.APIToken))
		} else {
			log.Printf("Warning: server.api_token is empty; operator routes trust any caller")
		}

		operator.POST("/events", h.PostEvent)

		machines := operator.Group("/machines", h.RequireOperator)
		machines.GET("", caching, h.GetMachines)
		machines.GET("/:id", h.GetMachine)
		machines.GET("/:id/inventory_log", h.GetInventoryLog)
		machines.GET("/:id/status_log", h.GetStatusLog)

		operator.PUT("/users/:id", h.RequireOperator, h.RequireAdmin, h.PutUser)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
