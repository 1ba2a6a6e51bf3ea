package voice

import (
	"context"
	"errors"
	"time"
)

// This package is the only place allowed to speak to the voice platform.
//
// Rules:
// - No platform SDK/wire details outside this package.
// - The interfaces below enumerate exactly the operations and events the
//   dialer core consumes, so the core can be tested against fakes.

// CallStatus is a platform-reported call status.
type CallStatus string

const (
	CallStatusRinging    CallStatus = "ringing"
	CallStatusAnswered   CallStatus = "answered"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusBusy       CallStatus = "busy"
	CallStatusCancelled  CallStatus = "cancelled"
	CallStatusFailed     CallStatus = "failed"
	CallStatusRejected   CallStatus = "rejected"
	CallStatusTimeout    CallStatus = "timeout"
	CallStatusUnanswered CallStatus = "unanswered"
)

// IsTerminal reports whether a status ends the call.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusBusy, CallStatusCancelled,
		CallStatusFailed, CallStatusRejected, CallStatusTimeout, CallStatusUnanswered:
		return true
	default:
		return false
	}
}

// ErrSessionTimeout marks a session open that timed out, which usually means
// the realtime transport is blocked in the current network environment.
var ErrSessionTimeout = errors.New("voice: session open timed out")

// CallRequest describes one outbound call attempt.
type CallRequest struct {
	// To is the destination number, E.164 normalized by the caller.
	To       string
	Metadata CallMetadata
}

// CallMetadata travels opaquely to the platform alongside the call.
type CallMetadata struct {
	CallType  string
	Timestamp time.Time
}

// Client opens authenticated sessions against the platform.
type Client interface {
	// CreateSession authenticates with a capability token and returns a
	// live session. Fails with ErrSessionTimeout (possibly wrapped) when
	// the transport cannot be established in time.
	CreateSession(ctx context.Context, token string) (Session, error)
}

// Session is a single authenticated connection to the platform.
type Session interface {
	ID() string

	// InitiateCall places an outbound call and returns its handle.
	InitiateCall(ctx context.Context, req CallRequest) (CallHandle, error)

	// OnError registers a listener for asynchronous session faults.
	// Must be safe to call once, before any fault can fire.
	OnError(func(error))

	Close() error
}

// CallHandle is an opaque, event-emitting reference to one in-progress call.
// Event callbacks may fire from the transport goroutine; consumers serialize.
type CallHandle interface {
	ID() string

	OnStatusChanged(func(CallStatus))
	OnRecordingStarted(func(recordingID string))
	OnRecordingStopped(func())

	Hangup(ctx context.Context) error
}
