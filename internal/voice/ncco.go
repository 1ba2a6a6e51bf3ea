package voice

// NCCO is the call-control script returned to the platform by the answer
// webhook: a declarative sequence of actions executed in order.
//
// Only the primitives we need at the webhook boundary are modeled here.
// No provider SDK dependency on purpose.

type NCCO []Action

// Action is one NCCO step. Exactly one concrete type per "action" value.
type Action interface {
	action() string
}

// RecordAction starts recording the call leg.
type RecordAction struct {
	Action       string   `json:"action"`
	EventURL     []string `json:"eventUrl,omitempty"`
	BeepStart    bool     `json:"beepStart,omitempty"`
	EndOnSilence int      `json:"endOnSilence,omitempty"`
	TimeOut      int      `json:"timeOut,omitempty"`
}

func (RecordAction) action() string { return "record" }

// ConnectAction bridges the caller to a PSTN endpoint.
type ConnectAction struct {
	Action   string          `json:"action"`
	From     string          `json:"from"`
	EventURL []string        `json:"eventUrl,omitempty"`
	Endpoint []PhoneEndpoint `json:"endpoint"`
}

func (ConnectAction) action() string { return "connect" }

type PhoneEndpoint struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

// TalkAction plays synthesized speech; used only on the error path.
type TalkAction struct {
	Action string `json:"action"`
	Text   string `json:"text"`
}

func (TalkAction) action() string { return "talk" }

// OutboundNCCO builds the record-then-bridge script for a manual outbound
// call: record the leg, then connect the dialed number from the configured
// origin number.
func OutboundNCCO(to, from, eventURL string) NCCO {
	return NCCO{
		RecordAction{
			Action:       "record",
			EventURL:     []string{eventURL},
			BeepStart:    true,
			EndOnSilence: 5,
			TimeOut:      7200,
		},
		ConnectAction{
			Action:   "connect",
			From:     from,
			EventURL: []string{eventURL},
			Endpoint: []PhoneEndpoint{{Type: "phone", Number: to}},
		},
	}
}

// ErrorNCCO is returned when the answer webhook cannot build a real script.
// The platform still expects a well-formed NCCO on failure.
func ErrorNCCO() NCCO {
	return NCCO{
		TalkAction{
			Action: "talk",
			Text:   "Sorry, there was an error connecting your call. Please try again.",
		},
	}
}
