package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Verify interface compliance at compile time.
var (
	_ Client     = (*WSClient)(nil)
	_ Session    = (*wsSession)(nil)
	_ CallHandle = (*wsCall)(nil)
)

// WSClient implements Client over a WebSocket connection to the platform's
// realtime gateway. One dial per session; the session owns the socket.
type WSClient struct {
	// URL is the wss endpoint of the realtime gateway.
	URL string

	// DialTimeout bounds the handshake. Defaults to 10s.
	DialTimeout time.Duration

	Dialer *websocket.Dialer
	Log    *slog.Logger
}

// frame is the wire envelope. The exact vendor protocol is out of scope;
// this framing carries exactly the events the dialer core consumes.
type frame struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id,omitempty"`
	CallID      string `json:"call_id,omitempty"`
	To          string `json:"to,omitempty"`
	From        string `json:"from,omitempty"`
	Status      string `json:"status,omitempty"`
	RecordingID string `json:"recording_id,omitempty"`
	Error       string `json:"error,omitempty"`
	CallType    string `json:"call_type,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

const (
	frameSessionCreated = "session:created"
	frameCallStart      = "call:start"
	frameCallCreated    = "call:created"
	frameCallStatus     = "call:status:changed"
	frameRecStarted     = "call:recording:started"
	frameRecStopped     = "call:recording:stopped"
	frameCallHangup     = "call:hangup"
	frameSessionError   = "session:error"
)

func (c *WSClient) CreateSession(ctx context.Context, token string) (Session, error) {
	if c.URL == "" {
		return nil, errors.New("voice: gateway URL is required")
	}

	timeout := c.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := dialer.DialContext(dialCtx, c.URL, header)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrSessionTimeout, err)
		}
		return nil, fmt.Errorf("voice: gateway dial failed: %w", err)
	}

	// The gateway confirms the session before any other traffic.
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	var hello frame
	if err := conn.ReadJSON(&hello); err != nil {
		_ = conn.Close()
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrSessionTimeout, err)
		}
		return nil, fmt.Errorf("voice: session handshake failed: %w", err)
	}
	if hello.Type != frameSessionCreated || hello.SessionID == "" {
		_ = conn.Close()
		return nil, fmt.Errorf("voice: unexpected handshake frame %q", hello.Type)
	}
	_ = conn.SetReadDeadline(time.Time{})

	s := &wsSession{
		id:      hello.SessionID,
		conn:    conn,
		log:     c.log(),
		calls:   make(map[string]*wsCall),
		pending: make(map[string]chan frame),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (c *WSClient) log() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

type wsSession struct {
	id   string
	conn *websocket.Conn
	log  *slog.Logger

	writeMu sync.Mutex // gorilla allows one concurrent writer

	mu      sync.Mutex
	calls   map[string]*wsCall
	pending map[string]chan frame
	onError func(error)
	closed  bool
	done    chan struct{}
}

func (s *wsSession) ID() string { return s.id }

func (s *wsSession) OnError(fn func(error)) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

func (s *wsSession) InitiateCall(ctx context.Context, req CallRequest) (CallHandle, error) {
	reqID := uuid.NewString()

	reply := make(chan frame, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.New("voice: session is closed")
	}
	s.pending[reqID] = reply
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, reqID)
		s.mu.Unlock()
	}()

	out := frame{
		Type:      frameCallStart,
		CallID:    reqID,
		To:        req.To,
		CallType:  req.Metadata.CallType,
		Timestamp: req.Metadata.Timestamp.UTC().Format(time.RFC3339),
	}
	if err := s.writeJSON(out); err != nil {
		return nil, fmt.Errorf("voice: call start failed: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, errors.New("voice: session closed while dialing")
	case f := <-reply:
		if f.Error != "" {
			return nil, fmt.Errorf("voice: call rejected: %s", f.Error)
		}
		call := &wsCall{id: f.CallID, session: s}
		s.mu.Lock()
		s.calls[f.CallID] = call
		s.mu.Unlock()
		return call, nil
	}
}

func (s *wsSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()
	return s.conn.Close()
}

func (s *wsSession) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// readLoop dispatches gateway frames to call handles and the session error
// listener. It exits when the socket dies or Close is called.
func (s *wsSession) readLoop() {
	for {
		var f frame
		if err := s.conn.ReadJSON(&f); err != nil {
			s.fail(err)
			return
		}

		switch f.Type {
		case frameCallCreated:
			s.resolvePending(f)
		case frameCallStatus:
			if call := s.call(f.CallID); call != nil {
				call.emitStatus(CallStatus(f.Status))
			}
		case frameRecStarted:
			if call := s.call(f.CallID); call != nil {
				call.emitRecordingStarted(f.RecordingID)
			}
		case frameRecStopped:
			if call := s.call(f.CallID); call != nil {
				call.emitRecordingStopped()
			}
		case frameSessionError:
			s.emitError(errors.New(f.Error))
		default:
			s.log.Debug("unhandled gateway frame", "type", f.Type)
		}
	}
}

func (s *wsSession) resolvePending(f frame) {
	s.mu.Lock()
	// The gateway echoes our request id in call_id until it assigns its own;
	// match on whichever pending entry exists.
	ch, ok := s.pending[f.CallID]
	s.mu.Unlock()
	if ok {
		ch <- f
	}
}

func (s *wsSession) call(id string) *wsCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

func (s *wsSession) emitError(err error) {
	s.mu.Lock()
	fn := s.onError
	s.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (s *wsSession) fail(err error) {
	s.mu.Lock()
	wasClosed := s.closed
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	s.mu.Unlock()
	if !wasClosed {
		s.log.Warn("gateway session read failed", "err", err)
		s.emitError(err)
	}
}

type wsCall struct {
	id      string
	session *wsSession

	mu         sync.Mutex
	onStatus   func(CallStatus)
	onRecStart func(string)
	onRecStop  func()
}

func (c *wsCall) ID() string { return c.id }

func (c *wsCall) OnStatusChanged(fn func(CallStatus)) {
	c.mu.Lock()
	c.onStatus = fn
	c.mu.Unlock()
}

func (c *wsCall) OnRecordingStarted(fn func(string)) {
	c.mu.Lock()
	c.onRecStart = fn
	c.mu.Unlock()
}

func (c *wsCall) OnRecordingStopped(fn func()) {
	c.mu.Lock()
	c.onRecStop = fn
	c.mu.Unlock()
}

func (c *wsCall) Hangup(ctx context.Context) error {
	return c.session.writeJSON(frame{Type: frameCallHangup, CallID: c.id})
}

func (c *wsCall) emitStatus(s CallStatus) {
	c.mu.Lock()
	fn := c.onStatus
	c.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (c *wsCall) emitRecordingStarted(id string) {
	c.mu.Lock()
	fn := c.onRecStart
	c.mu.Unlock()
	if fn != nil {
		fn(id)
	}
}

func (c *wsCall) emitRecordingStopped() {
	c.mu.Lock()
	fn := c.onRecStop
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
