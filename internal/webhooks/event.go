package webhooks

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"dialer-platform/internal/events"
	"dialer-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// EventHandler receives call lifecycle callbacks from the voice platform.
// The platform delivers either JSON bodies (POST) or query parameters (GET),
// and retries on non-2xx, so persistence failures are swallowed: a lost audit
// row is better than a retry storm.
type EventHandler struct {
	Events *events.Service
}

// eventPayload covers both delivery shapes. Numeric fields arrive as strings
// from the provider, so they are parsed by hand.
type eventPayload struct {
	UUID             string `json:"uuid" form:"uuid"`
	ConversationUUID string `json:"conversation_uuid" form:"conversation_uuid"`
	Status           string `json:"status" form:"status"`
	Direction        string `json:"direction" form:"direction"`
	From             string `json:"from" form:"from"`
	To               string `json:"to" form:"to"`
	Duration         string `json:"duration" form:"duration"`
	Price            string `json:"price" form:"price"`
	RecordingURL     string `json:"recording_url" form:"recording_url"`
	RecordingUUID    string `json:"recording_uuid" form:"recording_uuid"`
	Timestamp        string `json:"timestamp" form:"timestamp"`
}

func (h EventHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)

	var p eventPayload
	var err error
	if c.Request.Method == http.MethodPost {
		err = c.ShouldBindBodyWith(&p, binding.JSON)
	} else {
		err = c.ShouldBindQuery(&p)
	}
	if err != nil {
		log.Error("event webhook parse failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to process event",
			"details": err.Error(),
		})
		return
	}

	ev := events.CallEvent{
		CallUUID:         p.UUID,
		ConversationUUID: p.ConversationUUID,
		Status:           p.Status,
		Direction:        p.Direction,
		From:             p.From,
		To:               p.To,
		Price:            p.Price,
		RecordingURL:     p.RecordingURL,
		RecordingUUID:    p.RecordingUUID,
	}
	if p.Duration != "" {
		if d, convErr := strconv.Atoi(p.Duration); convErr == nil {
			ev.DurationSeconds = d
		}
	}
	if p.Timestamp != "" {
		if ts, parseErr := time.Parse(time.RFC3339, p.Timestamp); parseErr == nil {
			ev.OccurredAt = ts
		}
	}
	if c.Request.Method == http.MethodPost {
		if raw, ok := c.Get(gin.BodyBytesKey); ok {
			if b, ok := raw.([]byte); ok && json.Valid(b) {
				ev.Raw = string(b)
			}
		}
	}

	if ingestErr := h.Events.Ingest(c.Request.Context(), ev); ingestErr != nil {
		if errors.Is(ingestErr, events.ErrEmptyEvent) {
			log.Debug("event webhook without status or recording", "uuid", p.UUID)
		} else {
			log.Error("event persistence failed", "uuid", p.UUID, "status", p.Status, "error", ingestErr)
		}
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
