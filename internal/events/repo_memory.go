package events

import (
	"context"
	"sync"
)

// Repository is the persistence contract for call events.
//
// It MUST be append-only. No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e CallEvent) error
	ListByCall(ctx context.Context, callUUID string, limit int) ([]CallEvent, error)
}

// MemoryRepo is a simple in-memory append-only repository useful for tests
// and local runs. It is not intended for production use.
type MemoryRepo struct {
	mu     sync.Mutex
	events []CallEvent
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e CallEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *MemoryRepo) ListByCall(ctx context.Context, callUUID string, limit int) ([]CallEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []CallEvent
	// Newest first, matching the Postgres repo.
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].CallUUID == callUUID {
			out = append(out, r.events[i])
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *MemoryRepo) Events() []CallEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallEvent, len(r.events))
	copy(out, r.events)
	return out
}
