package webhooks

import (
	"net/http"

	"dialer-platform/internal/voice"
	"dialer-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AnswerHandler serves the platform's answer webhook: when the client leg is
// picked up, the platform asks us what to do with the call, and we reply with
// a record-then-bridge script.
//
// No business logic here; the parameters are echoed into the script.
type AnswerHandler struct {
	// FromNumber is the origin number presented on the bridged leg.
	FromNumber string

	// EventURL is where the platform should deliver status/recording events.
	EventURL string
}

func (h AnswerHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)

	to := c.Query("to")
	from := c.Query("from")
	conversationUUID := c.Query("conversation_uuid")
	legUUID := c.Query("uuid")

	log.Info("answer webhook",
		"to", to,
		"from", from,
		"conversation_uuid", conversationUUID,
		"uuid", legUUID,
	)

	if h.FromNumber == "" || h.EventURL == "" {
		// The platform still needs a well-formed script on our failure.
		log.Error("answer webhook misconfigured", "from_number_set", h.FromNumber != "", "event_url_set", h.EventURL != "")
		c.JSON(http.StatusOK, voice.ErrorNCCO())
		return
	}

	c.JSON(http.StatusOK, voice.OutboundNCCO(to, h.FromNumber, h.EventURL))
}
