package webhooks

import (
	"context"
	"net/http"
	"strings"

	"dialer-platform/internal/auth"
	"dialer-platform/pkg/logger"
	"dialer-platform/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// SessionSlots is the per-user concurrent-session cap.
// utils.SessionLimiter implements it over Redis.
type SessionSlots interface {
	Acquire(ctx context.Context, userID string) (bool, error)
	Release(ctx context.Context, userID string) error
}

// TokenHandler mints short-lived platform capability tokens for browser and
// CLI clients, and releases session slots when clients tear down. Both routes
// are guarded by auth.RequireBearer upstream.
type TokenHandler struct {
	Issuer *auth.Issuer

	// Slots caps concurrent sessions per user. Nil disables the cap (anonymous
	// tokens are never capped since there is no subject to count against).
	Slots SessionSlots
}

type tokenRequest struct {
	UserID string `json:"userId"`
}

func (h TokenHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)

	// Body is optional; a missing or malformed body yields an anonymous token.
	var req tokenRequest
	_ = c.ShouldBindJSON(&req)
	userID := strings.TrimSpace(req.UserID)

	if userID != "" && h.Slots != nil {
		ok, err := h.Slots.Acquire(c.Request.Context(), userID)
		switch {
		case err != nil:
			// Fail open: a cap-store outage must not take down dialing.
			log.Warn("session cap check unavailable", "user_id", userID, "error", err)
		case !ok:
			metrics.TokenCapRejections.Inc()
			log.Warn("session cap reached", "user_id", userID)
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many concurrent sessions for this user"})
			return
		}
	}

	token, expiresIn, err := h.Issuer.Issue(userID)
	if err != nil {
		log.Error("token generation failed", "user_id", userID, "error", err)
		if userID != "" && h.Slots != nil {
			// Give the slot back; no session will exist for it.
			_ = h.Slots.Release(c.Request.Context(), userID)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	metrics.TokensIssuedTotal.Inc()
	log.Info("token issued", "user_id", userID, "expires_in", expiresIn)
	c.JSON(http.StatusOK, gin.H{"token": token, "expiresIn": expiresIn})
}

// HandleRelease frees the caller's session slot on teardown. Best-effort by
// contract: the slot TTL reclaims slots from clients that never call this.
func (h TokenHandler) HandleRelease(c *gin.Context) {
	log := logger.FromGin(c)

	var req tokenRequest
	_ = c.ShouldBindJSON(&req)
	userID := strings.TrimSpace(req.UserID)

	if userID == "" {
		c.JSON(http.StatusOK, gin.H{"released": false})
		return
	}
	if h.Slots != nil {
		if err := h.Slots.Release(c.Request.Context(), userID); err != nil {
			log.Warn("session slot release failed", "user_id", userID, "error", err)
			c.JSON(http.StatusOK, gin.H{"released": false})
			return
		}
	}
	log.Info("session slot released", "user_id", userID)
	c.JSON(http.StatusOK, gin.H{"released": true})
}
