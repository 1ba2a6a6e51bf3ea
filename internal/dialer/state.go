package dialer

// CallState is the lifecycle state of a single outbound call attempt.
type CallState string

const (
	CallStateIdle      CallState = "idle"
	CallStateDialing   CallState = "dialing"
	CallStateRinging   CallState = "ringing"
	CallStateConnected CallState = "connected"
	CallStateEnded     CallState = "ended"
)

// CallQuality is a UI-facing call quality indicator. Empty means none.
//
// The platform currently gives us no real quality signal; the manager sets
// an optimistic Excellent on connect and never updates it.
type CallQuality string

const (
	CallQualityNone      CallQuality = ""
	CallQualityExcellent CallQuality = "excellent"
	CallQualityGood      CallQuality = "good"
	CallQualityPoor      CallQuality = "poor"
)

// CallSnapshot is the read-only view of one call attempt.
//
// Invariants:
// - DurationSeconds, IsRecording and Quality are zero/false/none whenever
//   State is not Connected (enforced by the reducer).
// - PhoneNumber is only mutated while State is Idle.
type CallSnapshot struct {
	State           CallState
	PhoneNumber     string
	DurationSeconds int
	ErrorMessage    string
	CallID          string
	RecordingID     string
	IsRecording     bool
	Quality         CallQuality
}

// IsCallActive reports whether a call attempt is in flight.
func (s CallSnapshot) IsCallActive() bool {
	switch s.State {
	case CallStateDialing, CallStateRinging, CallStateConnected:
		return true
	default:
		return false
	}
}

// ConnectionStatus is the simplified session status surfaced to the UI.
type ConnectionStatus string

const (
	ConnectionDisconnected ConnectionStatus = "disconnected"
	ConnectionConnecting   ConnectionStatus = "connecting"
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionError        ConnectionStatus = "error"
)

// ConnectionSnapshot is the read-only view of the platform session.
type ConnectionSnapshot struct {
	Status       ConnectionStatus
	SessionID    string
	ErrorMessage string
	RetryCount   int
}
