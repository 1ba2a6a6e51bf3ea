package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dialer-platform/pkg/metrics"

	"github.com/google/uuid"
)

var ErrEmptyEvent = errors.New("events: event carries no status and no recording")

// Service ingests platform callbacks: validates, stamps, persists, and keeps
// the call metrics honest.
//
// Ingestion is best-effort by policy: callers should log an ingest error and
// still acknowledge the platform.
type Service struct {
	repo  Repository
	log   *slog.Logger
	clock func() time.Time

	// answered tracks legs counted into the ActiveCalls gauge, so a terminal
	// callback for a leg that was never answered (or whose answered callback
	// was lost) cannot drive the gauge negative.
	mu       sync.Mutex
	answered map[string]struct{}
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log, clock: time.Now, answered: make(map[string]struct{})}
}

// Ingest records one callback.
func (s *Service) Ingest(ctx context.Context, e CallEvent) error {
	if s.repo == nil {
		return errors.New("events: repository not configured")
	}
	if !e.IsStatusChange() && !e.HasRecording() {
		return ErrEmptyEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = now
	}

	s.observe(e)
	return s.repo.Append(ctx, e)
}

// ListByCall returns recent events for one call leg, newest first.
func (s *Service) ListByCall(ctx context.Context, callUUID string, limit int) ([]CallEvent, error) {
	if s.repo == nil {
		return nil, errors.New("events: repository not configured")
	}
	return s.repo.ListByCall(ctx, callUUID, limit)
}

// isTerminalStatus mirrors the platform's terminal call causes.
func isTerminalStatus(status string) bool {
	switch status {
	case "completed", "busy", "cancelled", "failed", "rejected", "timeout", "unanswered":
		return true
	default:
		return false
	}
}

func (s *Service) observe(e CallEvent) {
	if e.IsStatusChange() {
		metrics.CallEventsTotal.WithLabelValues(e.Status).Inc()
		s.log.Info("call status changed", "call_uuid", e.CallUUID, "status", e.Status)

		switch {
		case e.Status == "answered":
			s.mu.Lock()
			if _, ok := s.answered[e.CallUUID]; !ok {
				s.answered[e.CallUUID] = struct{}{}
				metrics.ActiveCalls.Inc()
			}
			s.mu.Unlock()
		case isTerminalStatus(e.Status):
			// Decrement only legs we counted in; a terminal callback without
			// a prior answered must not drive the gauge negative.
			s.mu.Lock()
			if _, ok := s.answered[e.CallUUID]; ok {
				delete(s.answered, e.CallUUID)
				metrics.ActiveCalls.Dec()
			}
			s.mu.Unlock()
			if e.Status == "completed" {
				s.log.Info("call completed", "call_uuid", e.CallUUID, "duration_seconds", e.DurationSeconds, "price", e.Price)
			}
		}
	}
	if e.HasRecording() {
		metrics.RecordingsTotal.Inc()
		s.log.Info("recording available",
			"call_uuid", e.CallUUID,
			"recording_uuid", e.RecordingUUID,
			"duration_seconds", e.DurationSeconds,
		)
	}
}
