package dialer

import (
	"context"
	"sync"
	"time"

	"dialer-platform/internal/voice"
)

// fakeScheduler is a manual clock. Advance moves time forward and fires due
// tasks in order, including tasks scheduled while firing.
type fakeScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	sched *fakeScheduler
	due   time.Duration
	fn    func()
	fired bool
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{sched: s, due: s.now + d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	for {
		idx := -1
		for i, t := range s.timers {
			if t.due <= target && (idx == -1 || t.due < s.timers[idx].due) {
				idx = i
			}
		}
		if idx == -1 {
			break
		}
		t := s.timers[idx]
		s.timers = append(s.timers[:idx], s.timers[idx+1:]...)
		t.fired = true
		// Move the clock to the firing time so tasks scheduled by fn land
		// relative to it, letting repeating timers catch up within the window.
		if t.due > s.now {
			s.now = t.due
		}
		s.mu.Unlock()
		t.fn()
		s.mu.Lock()
	}
	s.now = target
	s.mu.Unlock()
}

func (s *fakeScheduler) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (t *fakeTimer) Stop() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	for i, cand := range t.sched.timers {
		if cand == t {
			t.sched.timers = append(t.sched.timers[:i], t.sched.timers[i+1:]...)
			return true
		}
	}
	return !t.fired
}

// fakeHandle implements voice.CallHandle and lets tests emit events.
type fakeHandle struct {
	id        string
	hangupErr error

	mu         sync.Mutex
	onStatus   func(voice.CallStatus)
	onRecStart func(string)
	onRecStop  func()
	hangups    int
}

func (h *fakeHandle) ID() string { return h.id }

func (h *fakeHandle) OnStatusChanged(fn func(voice.CallStatus)) {
	h.mu.Lock()
	h.onStatus = fn
	h.mu.Unlock()
}

func (h *fakeHandle) OnRecordingStarted(fn func(string)) {
	h.mu.Lock()
	h.onRecStart = fn
	h.mu.Unlock()
}

func (h *fakeHandle) OnRecordingStopped(fn func()) {
	h.mu.Lock()
	h.onRecStop = fn
	h.mu.Unlock()
}

func (h *fakeHandle) Hangup(ctx context.Context) error {
	h.mu.Lock()
	h.hangups++
	h.mu.Unlock()
	return h.hangupErr
}

func (h *fakeHandle) hangupCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hangups
}

func (h *fakeHandle) emitStatus(s voice.CallStatus) {
	h.mu.Lock()
	fn := h.onStatus
	h.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (h *fakeHandle) emitRecordingStarted(id string) {
	h.mu.Lock()
	fn := h.onRecStart
	h.mu.Unlock()
	if fn != nil {
		fn(id)
	}
}

func (h *fakeHandle) emitRecordingStopped() {
	h.mu.Lock()
	fn := h.onRecStop
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// fakeSession implements voice.Session.
type fakeSession struct {
	id        string
	handle    *fakeHandle
	initErr   error
	initiated []voice.CallRequest

	mu      sync.Mutex
	onError func(error)
	closed  bool
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) InitiateCall(ctx context.Context, req voice.CallRequest) (voice.CallHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initErr != nil {
		return nil, s.initErr
	}
	s.initiated = append(s.initiated, req)
	return s.handle, nil
}

func (s *fakeSession) OnError(fn func(error)) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) emitError(err error) {
	s.mu.Lock()
	fn := s.onError
	s.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (s *fakeSession) initiatedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.initiated)
}

// fakeClient implements voice.Client with a scripted result per attempt.
type fakeClient struct {
	mu      sync.Mutex
	results []fakeConnectResult
	calls   int
}

type fakeConnectResult struct {
	sess *fakeSession
	err  error
}

func (c *fakeClient) CreateSession(ctx context.Context, token string) (voice.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.calls
	c.calls++
	if idx >= len(c.results) {
		idx = len(c.results) - 1
	}
	r := c.results[idx]
	if r.err != nil {
		return nil, r.err
	}
	return r.sess, nil
}

func (c *fakeClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// staticTokens implements voice.TokenSource.
type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) Token(ctx context.Context) (string, error) {
	return s.token, s.err
}

// fixedSessions implements SessionProvider.
type fixedSessions struct {
	sess voice.Session
	ok   bool
}

func (f *fixedSessions) ActiveSession() (voice.Session, bool) {
	if !f.ok {
		return nil, false
	}
	return f.sess, true
}

// notifications records toast callbacks.
type notifications struct {
	mu        sync.Mutex
	errors    []string
	successes []string
}

func (n *notifications) onError(msg string) {
	n.mu.Lock()
	n.errors = append(n.errors, msg)
	n.mu.Unlock()
}

func (n *notifications) onSuccess(msg string) {
	n.mu.Lock()
	n.successes = append(n.successes, msg)
	n.mu.Unlock()
}

func (n *notifications) lastError() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.errors) == 0 {
		return ""
	}
	return n.errors[len(n.errors)-1]
}
