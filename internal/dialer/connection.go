package dialer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"dialer-platform/internal/voice"
)

const (
	// maxConnectRetries bounds automatic retries after a failed initialize.
	// This is a fixed-delay bounded retry, not exponential backoff.
	maxConnectRetries = 2
	connectRetryDelay = 3 * time.Second
)

// ConnectionManagerOptions configures a ConnectionManager.
type ConnectionManagerOptions struct {
	Scheduler Scheduler
	Log       *slog.Logger
}

// ConnectionManager owns the lifecycle of exactly one authenticated session
// to the voice platform: fetch a credential, open the session, retry with a
// fixed delay, surface a simplified status. The raw transport is never
// exposed outside the voice.Session interface.
type ConnectionManager struct {
	client voice.Client
	tokens voice.TokenSource
	sched  Scheduler
	log    *slog.Logger

	mu           sync.Mutex
	status       ConnectionStatus
	errMsg       string
	session      voice.Session
	sessionID    string
	retryCount   int
	initializing bool
	retryTimer   Timer

	// generation invalidates async callbacks and in-flight connect attempts
	// from a session discarded by Reconnect/Close.
	generation uint64
}

func NewConnectionManager(client voice.Client, tokens voice.TokenSource, opts ConnectionManagerOptions) *ConnectionManager {
	c := &ConnectionManager{
		client: client,
		tokens: tokens,
		sched:  opts.Scheduler,
		log:    opts.Log,
		status: ConnectionDisconnected,
	}
	if c.sched == nil {
		c.sched = SystemScheduler{}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// Initialize establishes the session. A no-op while an initialize cycle is
// already running (re-entrancy guard); retries scheduled by a failed attempt
// belong to the same cycle.
func (c *ConnectionManager) Initialize(ctx context.Context) {
	c.mu.Lock()
	if c.initializing {
		c.mu.Unlock()
		return
	}
	c.initializing = true
	c.retryCount = 0
	c.errMsg = ""
	c.mu.Unlock()

	c.connect(ctx)
}

// Reconnect cancels any pending retry, discards the current session
// wholesale, and starts a fresh initialize cycle. Intended for explicit
// user-triggered recovery after an error.
func (c *ConnectionManager) Reconnect(ctx context.Context) {
	old := c.teardown()
	if old != nil {
		_ = old.Close()
	}
	c.Initialize(ctx)
}

// Close cancels any pending retry and releases the session.
func (c *ConnectionManager) Close() {
	if old := c.teardown(); old != nil {
		_ = old.Close()
	}
}

// Snapshot returns the current connection view.
func (c *ConnectionManager) Snapshot() ConnectionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConnectionSnapshot{
		Status:       c.status,
		SessionID:    c.sessionID,
		ErrorMessage: c.errMsg,
		RetryCount:   c.retryCount,
	}
}

// ActiveSession yields the live session while connected.
func (c *ConnectionManager) ActiveSession() (voice.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != ConnectionConnected || c.session == nil {
		return nil, false
	}
	return c.session, true
}

func (c *ConnectionManager) connect(ctx context.Context) {
	c.mu.Lock()
	gen := c.generation
	attemptNo := c.retryCount + 1
	c.status = ConnectionConnecting
	c.mu.Unlock()

	c.log.Info("connecting to voice platform", "attempt", attemptNo, "max_attempts", maxConnectRetries+1)

	token, err := c.tokens.Token(ctx)
	var sess voice.Session
	if err == nil {
		sess, err = c.client.CreateSession(ctx, token)
	}

	c.mu.Lock()
	if gen != c.generation {
		// Reconnect/Close won while we were on the wire.
		c.mu.Unlock()
		if sess != nil {
			_ = sess.Close()
		}
		return
	}

	if err != nil {
		// Credential fetch and session open share one retry policy.
		if c.retryCount < maxConnectRetries {
			c.retryCount++
			c.status = ConnectionError
			c.errMsg = fmt.Sprintf("Connecting... (retry %d/%d)", c.retryCount, maxConnectRetries)
			stopTimer(&c.retryTimer)
			c.retryTimer = c.sched.AfterFunc(connectRetryDelay, func() { c.connect(ctx) })
			c.mu.Unlock()
			c.log.Warn("platform connect failed, retrying", "attempt", attemptNo, "err", err)
			return
		}
		c.status = ConnectionError
		c.errMsg = translateConnectError(err)
		c.session = nil
		c.sessionID = ""
		c.retryCount = 0
		c.initializing = false
		c.mu.Unlock()
		c.log.Error("platform connect failed, retries exhausted", "err", err)
		return
	}

	c.session = sess
	c.sessionID = sess.ID()
	c.status = ConnectionConnected
	c.retryCount = 0
	c.initializing = false
	c.mu.Unlock()

	sess.OnError(func(serr error) { c.handleSessionError(gen, serr) })
	c.log.Info("voice session established", "session_id", sess.ID())
}

func (c *ConnectionManager) handleSessionError(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.status = ConnectionError
	c.errMsg = "Session error. Please reconnect."
	c.log.Error("voice session fault", "err", err)
}

// teardown cancels timers, invalidates callbacks, and detaches the session.
// The caller closes the returned session outside the lock.
func (c *ConnectionManager) teardown() voice.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	stopTimer(&c.retryTimer)
	c.generation++
	old := c.session
	c.session = nil
	c.sessionID = ""
	c.retryCount = 0
	c.initializing = false
	c.status = ConnectionDisconnected
	c.errMsg = ""
	return old
}

// translateConnectError distinguishes a blocked realtime transport from a
// generic failure.
func translateConnectError(err error) string {
	if errors.Is(err, voice.ErrSessionTimeout) || strings.Contains(err.Error(), "timeout") {
		return "Connection timed out. The realtime connection to the voice platform may be blocked in this environment."
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Failed to connect to the voice platform"
}
