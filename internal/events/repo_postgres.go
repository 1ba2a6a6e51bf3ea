package events

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dialer-platform/pkg/utils"
)

// PostgresRepo persists call events via database/sql (pgx stdlib driver).
//
// Schema:
//
//	CREATE TABLE call_events (
//	    id                UUID PRIMARY KEY,
//	    call_uuid         TEXT NOT NULL DEFAULT '',
//	    conversation_uuid TEXT NOT NULL DEFAULT '',
//	    status            TEXT NOT NULL DEFAULT '',
//	    direction         TEXT NOT NULL DEFAULT '',
//	    from_number       TEXT NOT NULL DEFAULT '',
//	    to_number         TEXT NOT NULL DEFAULT '',
//	    duration_seconds  INT  NOT NULL DEFAULT 0,
//	    price             TEXT NOT NULL DEFAULT '',
//	    recording_url     TEXT NOT NULL DEFAULT '',
//	    recording_uuid    TEXT NOT NULL DEFAULT '',
//	    occurred_at       TIMESTAMPTZ,
//	    received_at       TIMESTAMPTZ NOT NULL,
//	    raw               JSONB
//	);
//	CREATE INDEX call_events_call_uuid_idx ON call_events (call_uuid, received_at DESC);
//
//	CREATE TABLE call_rollups (
//	    call_uuid     TEXT PRIMARY KEY,
//	    last_status   TEXT NOT NULL DEFAULT '',
//	    event_count   INT  NOT NULL DEFAULT 0,
//	    last_event_at TIMESTAMPTZ NOT NULL
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// Append writes the event row and the per-call rollup in one transaction.
// The rollup gives "what state is this call in" without scanning the log;
// it must never disagree with the log, hence the shared tx.
func (r *PostgresRepo) Append(ctx context.Context, e CallEvent) error {
	if r.db == nil {
		return fmt.Errorf("events: db is nil")
	}
	const insertEvent = `
		INSERT INTO call_events (
			id, call_uuid, conversation_uuid, status, direction,
			from_number, to_number, duration_seconds, price,
			recording_url, recording_uuid, occurred_at, received_at, raw
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NULLIF($14,'')::jsonb)`
	const upsertRollup = `
		INSERT INTO call_rollups (call_uuid, last_status, event_count, last_event_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (call_uuid) DO UPDATE SET
			last_status   = CASE WHEN EXCLUDED.last_status <> '' THEN EXCLUDED.last_status ELSE call_rollups.last_status END,
			event_count   = call_rollups.event_count + 1,
			last_event_at = EXCLUDED.last_event_at`

	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertEvent,
			e.ID, e.CallUUID, e.ConversationUUID, e.Status, e.Direction,
			e.From, e.To, e.DurationSeconds, e.Price,
			e.RecordingURL, e.RecordingUUID, nullableTime(e.OccurredAt), e.ReceivedAt, e.Raw,
		); err != nil {
			return fmt.Errorf("events: insert failed: %w", err)
		}
		if e.CallUUID == "" {
			return nil
		}
		if _, err := tx.ExecContext(ctx, upsertRollup, e.CallUUID, e.Status, e.ReceivedAt); err != nil {
			return fmt.Errorf("events: rollup upsert failed: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepo) ListByCall(ctx context.Context, callUUID string, limit int) ([]CallEvent, error) {
	if r.db == nil {
		return nil, fmt.Errorf("events: db is nil")
	}
	if limit <= 0 {
		limit = 100
	}
	const q = `
		SELECT id, call_uuid, conversation_uuid, status, direction,
		       from_number, to_number, duration_seconds, price,
		       recording_url, recording_uuid, COALESCE(occurred_at, 'epoch'::timestamptz), received_at, COALESCE(raw::text, '')
		FROM call_events
		WHERE call_uuid = $1
		ORDER BY received_at DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, callUUID, limit)
	if err != nil {
		return nil, fmt.Errorf("events: query failed: %w", err)
	}
	defer rows.Close()

	var out []CallEvent
	for rows.Next() {
		var e CallEvent
		if err := rows.Scan(
			&e.ID, &e.CallUUID, &e.ConversationUUID, &e.Status, &e.Direction,
			&e.From, &e.To, &e.DurationSeconds, &e.Price,
			&e.RecordingURL, &e.RecordingUUID, &e.OccurredAt, &e.ReceivedAt, &e.Raw,
		); err != nil {
			return nil, fmt.Errorf("events: scan failed: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
