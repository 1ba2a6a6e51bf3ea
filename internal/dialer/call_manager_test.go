package dialer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"dialer-platform/internal/voice"
)

func newTestCallManager(sess voice.Session, connected bool) (*CallManager, *fakeScheduler, *notifications) {
	sched := &fakeScheduler{}
	notes := &notifications{}
	m := NewCallManager(CallManagerOptions{
		Sessions:  &fixedSessions{sess: sess, ok: connected},
		OnError:   notes.onError,
		OnSuccess: notes.onSuccess,
		Scheduler: sched,
		Clock:     func() time.Time { return time.Unix(1700000000, 0).UTC() },
	})
	return m, sched, notes
}

func TestStartCall_InvalidNumberNeverReachesPlatform(t *testing.T) {
	sess := &fakeSession{id: "s-1", handle: &fakeHandle{id: "c-1"}}
	m, _, notes := newTestCallManager(sess, true)

	m.SetPhoneNumber("5551234")
	if err := m.StartCall(context.Background()); err == nil {
		t.Fatalf("expected validation error")
	}

	s := m.Snapshot()
	if s.State != CallStateIdle {
		t.Fatalf("state = %q, want idle", s.State)
	}
	if s.ErrorMessage == "" {
		t.Fatalf("expected error message in state")
	}
	if sess.initiatedCount() != 0 {
		t.Fatalf("platform request made for invalid number")
	}
	if notes.lastError() == "" {
		t.Fatalf("expected error notification")
	}
}

func TestStartCall_NotConnectedStaysIdle(t *testing.T) {
	sess := &fakeSession{id: "s-1", handle: &fakeHandle{id: "c-1"}}
	m, _, _ := newTestCallManager(sess, false)

	m.SetPhoneNumber("+14155551234")
	if err := m.StartCall(context.Background()); err == nil {
		t.Fatalf("expected connectivity error")
	}

	s := m.Snapshot()
	if s.State != CallStateIdle || s.ErrorMessage == "" {
		t.Fatalf("unexpected snapshot: %+v", s)
	}
	if sess.initiatedCount() != 0 {
		t.Fatalf("platform request made while disconnected")
	}
}

func TestStartCall_InitiationFailureReturnsToIdle(t *testing.T) {
	sess := &fakeSession{id: "s-1", initErr: errors.New("platform says no")}
	m, _, notes := newTestCallManager(sess, true)

	m.SetPhoneNumber("+14155551234")
	if err := m.StartCall(context.Background()); err == nil {
		t.Fatalf("expected initiation error")
	}

	s := m.Snapshot()
	if s.State != CallStateIdle {
		t.Fatalf("state = %q, want idle (not ended)", s.State)
	}
	if !strings.Contains(s.ErrorMessage, "platform says no") {
		t.Fatalf("error = %q", s.ErrorMessage)
	}
	if notes.lastError() == "" {
		t.Fatalf("expected error notification")
	}
}

func TestCallFlow_DialRingAnswerTick(t *testing.T) {
	handle := &fakeHandle{id: "c-1"}
	sess := &fakeSession{id: "s-1", handle: handle}
	m, sched, notes := newTestCallManager(sess, true)

	m.SetPhoneNumber("+1 (415) 555-1234")
	if err := m.StartCall(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	s := m.Snapshot()
	if s.State != CallStateDialing || s.CallID != "c-1" {
		t.Fatalf("unexpected snapshot after start: %+v", s)
	}
	if got := sess.initiated[0].To; got != "+14155551234" {
		t.Fatalf("dialed %q, want normalized +14155551234", got)
	}
	if sess.initiated[0].Metadata.CallType != "outbound" {
		t.Fatalf("call type = %q", sess.initiated[0].Metadata.CallType)
	}

	handle.emitStatus(voice.CallStatusRinging)
	if s := m.Snapshot(); s.State != CallStateRinging {
		t.Fatalf("state = %q, want ringing", s.State)
	}

	handle.emitStatus(voice.CallStatusAnswered)
	s = m.Snapshot()
	if s.State != CallStateConnected || !s.IsRecording || s.Quality != CallQualityExcellent {
		t.Fatalf("unexpected snapshot after answer: %+v", s)
	}
	if s.DurationSeconds != 0 {
		t.Fatalf("duration should start at 0, got %d", s.DurationSeconds)
	}

	sched.Advance(time.Second)
	if got := m.Snapshot().DurationSeconds; got != 1 {
		t.Fatalf("duration after one tick = %d, want 1", got)
	}
	sched.Advance(2 * time.Second)
	if got := m.FormattedDuration(); got != "00:03" {
		t.Fatalf("formatted duration = %q, want 00:03", got)
	}

	notes.mu.Lock()
	defer notes.mu.Unlock()
	if len(notes.successes) != 1 || notes.successes[0] != "Call connected" {
		t.Fatalf("successes = %v", notes.successes)
	}
}

func TestTerminalStatus_BusySurfacesError(t *testing.T) {
	handle := &fakeHandle{id: "c-1"}
	sess := &fakeSession{id: "s-1", handle: handle}
	m, sched, notes := newTestCallManager(sess, true)

	m.SetPhoneNumber("+14155551234")
	if err := m.StartCall(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	handle.emitStatus(voice.CallStatusAnswered)
	handle.emitStatus(voice.CallStatusBusy)

	s := m.Snapshot()
	if s.State != CallStateEnded {
		t.Fatalf("state = %q, want ended", s.State)
	}
	if !strings.Contains(s.ErrorMessage, "busy") {
		t.Fatalf("error = %q, want mention of busy", s.ErrorMessage)
	}
	if s.IsRecording || s.Quality != CallQualityNone {
		t.Fatalf("recording/quality must clear on end: %+v", s)
	}
	if !strings.Contains(notes.lastError(), "busy") {
		t.Fatalf("notification = %q", notes.lastError())
	}

	sched.Advance(callResetDelay)
	s = m.Snapshot()
	if s.State != CallStateIdle || s.CallID != "" || s.DurationSeconds != 0 {
		t.Fatalf("expected clean idle after reset, got %+v", s)
	}
}

func TestTerminalStatus_CompletedProducesNoError(t *testing.T) {
	handle := &fakeHandle{id: "c-1"}
	sess := &fakeSession{id: "s-1", handle: handle}
	m, sched, notes := newTestCallManager(sess, true)

	m.SetPhoneNumber("+14155551234")
	if err := m.StartCall(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	handle.emitStatus(voice.CallStatusAnswered)
	handle.emitStatus(voice.CallStatusCompleted)

	s := m.Snapshot()
	if s.State != CallStateEnded || s.ErrorMessage != "" {
		t.Fatalf("unexpected snapshot: %+v", s)
	}
	if notes.lastError() != "" {
		t.Fatalf("unexpected error notification %q", notes.lastError())
	}

	sched.Advance(callResetDelay)
	if got := m.Snapshot().State; got != CallStateIdle {
		t.Fatalf("state after reset = %q, want idle", got)
	}
}

func TestResetIsIdempotent(t *testing.T) {
	handle := &fakeHandle{id: "c-1"}
	sess := &fakeSession{id: "s-1", handle: handle}
	m, sched, _ := newTestCallManager(sess, true)

	m.SetPhoneNumber("+14155551234")
	if err := m.StartCall(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	handle.emitStatus(voice.CallStatusCompleted)

	sched.Advance(callResetDelay)
	if got := m.Snapshot().State; got != CallStateIdle {
		t.Fatalf("state = %q, want idle", got)
	}

	// A duplicate fire against an already-idle machine must be a no-op.
	m.resetAfterEnd(1)
	if got := m.Snapshot().State; got != CallStateIdle {
		t.Fatalf("state after duplicate reset = %q, want idle", got)
	}
}

func TestEndCall_HangupFailureStillEnds(t *testing.T) {
	handle := &fakeHandle{id: "c-1", hangupErr: errors.New("network blip")}
	sess := &fakeSession{id: "s-1", handle: handle}
	m, sched, _ := newTestCallManager(sess, true)

	m.SetPhoneNumber("+14155551234")
	if err := m.StartCall(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	handle.emitStatus(voice.CallStatusAnswered)

	m.EndCall(context.Background())
	if handle.hangupCount() != 1 {
		t.Fatalf("hangup count = %d, want 1", handle.hangupCount())
	}
	if got := m.Snapshot().State; got != CallStateEnded {
		t.Fatalf("state = %q, want ended despite hangup failure", got)
	}

	sched.Advance(callResetDelay)
	if got := m.Snapshot().State; got != CallStateIdle {
		t.Fatalf("state after reset = %q, want idle", got)
	}
}

func TestLateEventsAfterEndedAreIgnored(t *testing.T) {
	handle := &fakeHandle{id: "c-1"}
	sess := &fakeSession{id: "s-1", handle: handle}
	m, sched, _ := newTestCallManager(sess, true)

	m.SetPhoneNumber("+14155551234")
	if err := m.StartCall(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	handle.emitStatus(voice.CallStatusAnswered)
	handle.emitRecordingStarted("rec-1")
	if got := m.Snapshot().RecordingID; got != "rec-1" {
		t.Fatalf("recording id = %q", got)
	}

	handle.emitStatus(voice.CallStatusCompleted)

	// Late recording events for the finished leg must change nothing.
	handle.emitRecordingStopped()
	handle.emitRecordingStarted("rec-2")
	s := m.Snapshot()
	if s.State != CallStateEnded || s.IsRecording || s.RecordingID != "rec-1" {
		t.Fatalf("late events mutated state: %+v", s)
	}

	sched.Advance(callResetDelay)
	handle.emitStatus(voice.CallStatusBusy)
	if s := m.Snapshot(); s.State != CallStateIdle || s.ErrorMessage != "" {
		t.Fatalf("late terminal event mutated idle state: %+v", s)
	}
}

func TestDurationTimerStopsOnEnd(t *testing.T) {
	handle := &fakeHandle{id: "c-1"}
	sess := &fakeSession{id: "s-1", handle: handle}
	m, sched, _ := newTestCallManager(sess, true)

	m.SetPhoneNumber("+14155551234")
	if err := m.StartCall(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	handle.emitStatus(voice.CallStatusAnswered)
	sched.Advance(2 * time.Second)
	handle.emitStatus(voice.CallStatusCompleted)

	if got := m.Snapshot().DurationSeconds; got != 2 {
		t.Fatalf("duration at end = %d, want 2", got)
	}
	// Only the reset timer remains; no stale tick may fire.
	sched.Advance(10 * time.Second)
	if got := m.Snapshot().DurationSeconds; got != 0 {
		t.Fatalf("duration after reset = %d, want 0", got)
	}
}

func TestSetPhoneNumber_IgnoredWhileActive(t *testing.T) {
	handle := &fakeHandle{id: "c-1"}
	sess := &fakeSession{id: "s-1", handle: handle}
	m, _, _ := newTestCallManager(sess, true)

	m.SetPhoneNumber("+14155551234")
	if err := m.StartCall(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	m.SetPhoneNumber("+19999999999")
	if got := m.Snapshot().PhoneNumber; got != "+14155551234" {
		t.Fatalf("number changed mid-call to %q", got)
	}
}

func TestStartCall_RejectedWhileActive(t *testing.T) {
	handle := &fakeHandle{id: "c-1"}
	sess := &fakeSession{id: "s-1", handle: handle}
	m, _, _ := newTestCallManager(sess, true)

	m.SetPhoneNumber("+14155551234")
	if err := m.StartCall(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.StartCall(context.Background()); !errors.Is(err, ErrCallInProgress) {
		t.Fatalf("err = %v, want ErrCallInProgress", err)
	}
	if sess.initiatedCount() != 1 {
		t.Fatalf("initiated %d calls, want 1", sess.initiatedCount())
	}
}

func TestCanStartCall(t *testing.T) {
	sess := &fakeSession{id: "s-1", handle: &fakeHandle{id: "c-1"}}
	provider := &fixedSessions{sess: sess, ok: true}
	m := NewCallManager(CallManagerOptions{Sessions: provider, Scheduler: &fakeScheduler{}})

	if m.CanStartCall() {
		t.Fatalf("empty number should not be dialable")
	}
	m.SetPhoneNumber("   ")
	if m.CanStartCall() {
		t.Fatalf("blank number should not be dialable")
	}
	m.SetPhoneNumber("+14155551234")
	if !m.CanStartCall() {
		t.Fatalf("expected dialable")
	}
	provider.ok = false
	if m.CanStartCall() {
		t.Fatalf("disconnected session should not be dialable")
	}
}
