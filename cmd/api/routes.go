package main

import (
	"database/sql"
	"time"

	"dialer-platform/internal/auth"
	"dialer-platform/internal/config"
	"dialer-platform/internal/events"
	"dialer-platform/internal/webhooks"
	"dialer-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, cfg config.Config, issuer *auth.Issuer, eventService *events.Service, rdb *redis.Client, db *sql.DB) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Provider webhooks (public). The platform signs nothing here; these URLs
	// are unguessable in deployment config.
	{
		answer := webhooks.AnswerHandler{
			FromNumber: cfg.Voice.FromNumber,
			EventURL:   cfg.Voice.EventURL,
		}
		event := webhooks.EventHandler{Events: eventService}

		r.GET("/webhooks/voice/answer", answer.Handle)
		r.POST("/webhooks/voice/event", event.Handle)
		r.GET("/webhooks/voice/event", event.Handle)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireBearer(cfg.Token.APIKey))
	{
		token := webhooks.TokenHandler{
			Issuer: issuer,
			Slots: &utils.SessionLimiter{
				RDB:   rdb,
				Limit: cfg.Token.MaxSessionsPerUser,
				TTL:   cfg.Token.SessionSlotTTL,
			},
		}
		v1.POST("/token", token.Handle)
		v1.DELETE("/token", token.HandleRelease)
	}
}
