package dialer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"dialer-platform/internal/phone"
	"dialer-platform/internal/voice"
)

const (
	// callResetDelay keeps the terminal state visible before returning to Idle.
	callResetDelay       = 3 * time.Second
	durationTickInterval = time.Second
)

// ErrCallInProgress is returned by StartCall while a previous attempt is
// still in flight or winding down.
var ErrCallInProgress = errors.New("dialer: call already in progress")

// SessionProvider yields the active platform session when connected.
// ConnectionManager implements it.
type SessionProvider interface {
	ActiveSession() (voice.Session, bool)
}

// CallManagerOptions configures a CallManager.
// OnError/OnSuccess surface transient user-facing notifications; both are
// optional and must not call back into the manager.
type CallManagerOptions struct {
	Sessions  SessionProvider
	OnError   func(message string)
	OnSuccess func(message string)
	Scheduler Scheduler
	Clock     func() time.Time
	Log       *slog.Logger
}

// CallManager drives a single outbound call attempt from user intent through
// platform events to a terminal state.
//
// All transitions funnel through the pure reducer under one mutex, so the
// transition table is race-free even though platform events arrive from the
// transport goroutine. The call handle is owned exclusively by this manager.
type CallManager struct {
	sessions  SessionProvider
	onError   func(string)
	onSuccess func(string)
	sched     Scheduler
	clock     func() time.Time
	log       *slog.Logger

	mu     sync.Mutex
	state  CallSnapshot
	handle voice.CallHandle

	// attempt identifies the current call cycle. Timer callbacks and handle
	// events carry the attempt they belong to; a mismatch means the event is
	// stale and must be ignored.
	attempt uint64

	durTimer   Timer
	resetTimer Timer
}

func NewCallManager(opts CallManagerOptions) *CallManager {
	m := &CallManager{
		sessions:  opts.Sessions,
		onError:   opts.OnError,
		onSuccess: opts.OnSuccess,
		sched:     opts.Scheduler,
		clock:     opts.Clock,
		log:       opts.Log,
		state:     CallSnapshot{State: CallStateIdle},
	}
	if m.sched == nil {
		m.sched = SystemScheduler{}
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	return m
}

// SetPhoneNumber updates the number to dial. Ignored while a call is in
// flight; the number may only change at rest.
func (m *CallManager) SetPhoneNumber(number string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.State != CallStateIdle {
		return
	}
	m.state = reduce(m.state, evSetPhoneNumber{number})
}

// StartCall validates the number, checks connectivity, and places the call.
// Validation and connectivity failures land back in Idle with ErrorMessage
// set; they never reach the platform.
func (m *CallManager) StartCall(ctx context.Context) error {
	m.mu.Lock()

	if m.state.State != CallStateIdle {
		m.mu.Unlock()
		return ErrCallInProgress
	}

	v := phone.Validate(m.state.PhoneNumber)
	if !v.IsValid {
		m.state = reduce(m.state, evError{v.ErrorMessage})
		m.mu.Unlock()
		m.notifyError(v.ErrorMessage)
		return fmt.Errorf("dialer: %s", v.ErrorMessage)
	}

	sess, ok := m.sessions.ActiveSession()
	if !ok {
		const msg = "Not connected to the voice platform. Please wait and try again."
		m.state = reduce(m.state, evError{msg})
		m.mu.Unlock()
		m.notifyError(msg)
		return errors.New("dialer: session not ready")
	}

	m.clearTimersLocked()
	m.attempt++
	attempt := m.attempt
	m.state = reduce(m.state, evStartDialing{})
	m.mu.Unlock()

	handle, err := sess.InitiateCall(ctx, voice.CallRequest{
		To: v.NormalizedNumber,
		Metadata: voice.CallMetadata{
			CallType:  "outbound",
			Timestamp: m.clock(),
		},
	})

	m.mu.Lock()
	if err != nil {
		if attempt == m.attempt {
			m.state = reduce(m.state, evError{err.Error()})
		}
		m.mu.Unlock()
		m.log.Error("call initiation failed", "to", v.NormalizedNumber, "err", err)
		m.notifyError(err.Error())
		return err
	}
	if attempt != m.attempt {
		// A newer cycle superseded this dial while we were on the wire.
		m.mu.Unlock()
		if hErr := handle.Hangup(ctx); hErr != nil {
			m.log.Warn("orphan leg hangup failed", "call_id", handle.ID(), "err", hErr)
		}
		return nil
	}

	m.handle = handle
	m.state = reduce(m.state, evSetCallID{handle.ID()})

	handle.OnStatusChanged(func(st voice.CallStatus) { m.handleStatus(attempt, st) })
	handle.OnRecordingStarted(func(id string) { m.handleRecordingStarted(attempt, id) })
	handle.OnRecordingStopped(func() { m.handleRecordingStopped(attempt) })

	m.mu.Unlock()
	return nil
}

// EndCall is the user-initiated hangup. The hangup request is best-effort:
// its failure is logged and the call still reaches Ended.
func (m *CallManager) EndCall(ctx context.Context) {
	m.mu.Lock()
	if !m.state.IsCallActive() {
		m.mu.Unlock()
		return
	}
	attempt := m.attempt
	handle := m.handle
	m.handle = nil
	m.state = reduce(m.state, evEnd{})
	stopTimer(&m.durTimer)
	m.scheduleResetLocked(attempt)
	m.mu.Unlock()

	if handle != nil {
		if err := handle.Hangup(ctx); err != nil {
			m.log.Warn("hangup request failed", "call_id", handle.ID(), "err", err)
		}
	}
}

// Snapshot returns the current call view.
func (m *CallManager) Snapshot() CallSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// FormattedDuration renders the running duration as MM:SS.
func (m *CallManager) FormattedDuration() string {
	return FormatDuration(m.Snapshot().DurationSeconds)
}

// CanStartCall reports whether the start action should be enabled.
func (m *CallManager) CanStartCall() bool {
	_, connected := m.sessions.ActiveSession()
	s := m.Snapshot()
	return connected && strings.TrimSpace(s.PhoneNumber) != "" && s.State == CallStateIdle
}

// Close cancels all pending timers. The manager must not be used afterwards.
func (m *CallManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempt++
	m.clearTimersLocked()
}

// FormatDuration renders seconds as zero-padded MM:SS.
func FormatDuration(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func (m *CallManager) handleStatus(attempt uint64, st voice.CallStatus) {
	var successMsg, errorMsg string

	m.mu.Lock()
	if attempt != m.attempt {
		m.mu.Unlock()
		return
	}

	switch st {
	case voice.CallStatusRinging:
		if m.state.State == CallStateDialing {
			m.state = reduce(m.state, evRinging{})
		}
	case voice.CallStatusAnswered:
		if m.state.State == CallStateDialing || m.state.State == CallStateRinging {
			m.state = reduce(m.state, evConnect{})
			m.scheduleTickLocked(attempt)
			successMsg = "Call connected"
		}
	default:
		if st.IsTerminal() && m.state.IsCallActive() {
			errorMsg = terminalErrorMessage(st)
			m.state = reduce(m.state, evEnd{errorMsg})
			stopTimer(&m.durTimer)
			m.scheduleResetLocked(attempt)
		}
	}
	m.mu.Unlock()

	if successMsg != "" {
		m.notifySuccess(successMsg)
	}
	if errorMsg != "" {
		m.notifyError(errorMsg)
	}
}

func (m *CallManager) handleRecordingStarted(attempt uint64, recordingID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Recording events are only meaningful while connected; anything else
	// (including events arriving after Ended) is dropped without error.
	if attempt != m.attempt || m.state.State != CallStateConnected {
		return
	}
	m.state = reduce(m.state, evRecordingStarted{recordingID})
}

func (m *CallManager) handleRecordingStopped(attempt uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if attempt != m.attempt || m.state.State != CallStateConnected {
		return
	}
	m.state = reduce(m.state, evRecordingStopped{})
}

func (m *CallManager) tick(attempt uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if attempt != m.attempt || m.state.State != CallStateConnected {
		return
	}
	m.state = reduce(m.state, evTick{})
	m.scheduleTickLocked(attempt)
}

func (m *CallManager) resetAfterEnd(attempt uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Idempotent: a second fire (or one racing a manual transition) no-ops
	// because the state has already left Ended or the cycle moved on.
	if attempt != m.attempt || m.state.State != CallStateEnded {
		return
	}
	m.handle = nil
	m.state = reduce(m.state, evReset{})
	// Invalidate late platform events from the finished leg.
	m.attempt++
}

func (m *CallManager) scheduleTickLocked(attempt uint64) {
	stopTimer(&m.durTimer)
	m.durTimer = m.sched.AfterFunc(durationTickInterval, func() { m.tick(attempt) })
}

func (m *CallManager) scheduleResetLocked(attempt uint64) {
	stopTimer(&m.resetTimer)
	m.resetTimer = m.sched.AfterFunc(callResetDelay, func() { m.resetAfterEnd(attempt) })
}

func (m *CallManager) clearTimersLocked() {
	stopTimer(&m.durTimer)
	stopTimer(&m.resetTimer)
}

func (m *CallManager) notifyError(msg string) {
	if m.onError != nil {
		m.onError(msg)
	}
}

func (m *CallManager) notifySuccess(msg string) {
	if m.onSuccess != nil {
		m.onSuccess(msg)
	}
}

// terminalErrorMessage maps terminal causes that deserve a user-facing
// notification. Benign causes return empty.
func terminalErrorMessage(st voice.CallStatus) string {
	switch st {
	case voice.CallStatusBusy:
		return "Number is busy. Please try again later."
	case voice.CallStatusFailed:
		return "Call failed. Please verify the number and try again."
	case voice.CallStatusRejected:
		return "Call was rejected."
	case voice.CallStatusUnanswered:
		return "No answer. Please try again later."
	default:
		return ""
	}
}
