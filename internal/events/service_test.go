package events

import (
	"context"
	"testing"
	"time"

	"dialer-platform/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestService_IngestRejectsEmptyEvent(t *testing.T) {
	svc := NewService(NewMemoryRepo(), nil)
	if err := svc.Ingest(context.Background(), CallEvent{CallUUID: "u-1"}); err != ErrEmptyEvent {
		t.Fatalf("err = %v, want ErrEmptyEvent", err)
	}
}

func TestService_IngestStampsIDAndReceivedAt(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, nil)
	now := time.Unix(1700000000, 0).UTC()
	svc.clock = func() time.Time { return now }

	if err := svc.Ingest(context.Background(), CallEvent{CallUUID: "u-1", Status: "ringing"}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if evs[0].ID == "" {
		t.Fatalf("expected generated id")
	}
	if !evs[0].ReceivedAt.Equal(now) {
		t.Fatalf("received_at = %v, want %v", evs[0].ReceivedAt, now)
	}
}

func TestService_IngestAcceptsRecordingOnlyEvent(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, nil)

	e := CallEvent{CallUUID: "u-1", RecordingURL: "https://api.example/rec/1", RecordingUUID: "r-1"}
	if err := svc.Ingest(context.Background(), e); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(repo.Events()) != 1 {
		t.Fatalf("expected event persisted")
	}
}

func TestService_ActiveCallsGaugeTracksAnsweredLegs(t *testing.T) {
	svc := NewService(NewMemoryRepo(), nil)
	ctx := context.Background()
	base := testutil.ToFloat64(metrics.ActiveCalls)

	// Terminal without a prior answered must not move the gauge.
	if err := svc.Ingest(ctx, CallEvent{CallUUID: "leg-1", Status: "completed"}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if got := testutil.ToFloat64(metrics.ActiveCalls); got != base {
		t.Fatalf("gauge moved on unanswered completion: %v, want %v", got, base)
	}

	// Answered raises it once, even if the callback is duplicated.
	_ = svc.Ingest(ctx, CallEvent{CallUUID: "leg-2", Status: "answered"})
	_ = svc.Ingest(ctx, CallEvent{CallUUID: "leg-2", Status: "answered"})
	if got := testutil.ToFloat64(metrics.ActiveCalls); got != base+1 {
		t.Fatalf("gauge = %v, want %v", got, base+1)
	}

	// Any terminal cause counts an answered leg back out.
	_ = svc.Ingest(ctx, CallEvent{CallUUID: "leg-2", Status: "failed"})
	if got := testutil.ToFloat64(metrics.ActiveCalls); got != base {
		t.Fatalf("gauge = %v after terminal, want %v", got, base)
	}

	// A second terminal callback for the same leg is ignored.
	_ = svc.Ingest(ctx, CallEvent{CallUUID: "leg-2", Status: "completed"})
	if got := testutil.ToFloat64(metrics.ActiveCalls); got != base {
		t.Fatalf("gauge = %v after duplicate terminal, want %v", got, base)
	}
}

func TestMemoryRepo_ListByCallNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	_ = repo.Append(ctx, CallEvent{ID: "1", CallUUID: "a", Status: "started"})
	_ = repo.Append(ctx, CallEvent{ID: "2", CallUUID: "b", Status: "ringing"})
	_ = repo.Append(ctx, CallEvent{ID: "3", CallUUID: "a", Status: "completed"})

	got, err := repo.ListByCall(ctx, "a", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "3" || got[1].ID != "1" {
		t.Fatalf("unexpected order: %+v", got)
	}

	got, err = repo.ListByCall(ctx, "a", 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "3" {
		t.Fatalf("limit not applied: %+v", got)
	}
}
