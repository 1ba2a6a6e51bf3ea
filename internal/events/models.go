package events

import "time"

// CallEvent is an immutable record of one platform callback: a call status
// change or a recording notification.
//
// Invariants:
// - Events are never updated or deleted.
// - Ingestion is best-effort; the webhook must not fail the platform because
//   persistence hiccuped.
//
// Storage (Postgres): table call_events, INSERT-only.

type CallEvent struct {
	ID string `json:"id" db:"id"`

	// CallUUID is the platform identifier for the call leg.
	CallUUID         string `json:"uuid,omitempty" db:"call_uuid"`
	ConversationUUID string `json:"conversation_uuid,omitempty" db:"conversation_uuid"`

	Status    string `json:"status,omitempty" db:"status"`
	Direction string `json:"direction,omitempty" db:"direction"`

	From string `json:"from,omitempty" db:"from_number"`
	To   string `json:"to,omitempty" db:"to_number"`

	DurationSeconds int `json:"duration,omitempty" db:"duration_seconds"`

	// Price is kept as the provider's decimal string; internal money types
	// are out of scope for a pass-through audit record.
	Price string `json:"price,omitempty" db:"price"`

	RecordingURL  string `json:"recording_url,omitempty" db:"recording_url"`
	RecordingUUID string `json:"recording_uuid,omitempty" db:"recording_uuid"`

	// OccurredAt is the provider event time; ReceivedAt is ours.
	OccurredAt time.Time `json:"occurred_at,omitempty" db:"occurred_at"`
	ReceivedAt time.Time `json:"received_at" db:"received_at"`

	// Raw optionally preserves the original payload as JSON for debugging.
	Raw string `json:"raw,omitempty" db:"raw"`
}

// IsStatusChange reports whether the callback carries a status transition.
func (e CallEvent) IsStatusChange() bool { return e.Status != "" }

// HasRecording reports whether the callback announces a finished recording.
func (e CallEvent) HasRecording() bool { return e.RecordingURL != "" }
