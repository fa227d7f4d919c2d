package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists webhook events in the billing schema.
type Store struct {
	pg     *pgxpool.Pool
	schema string
}

func NewStore(pg *pgxpool.Pool, schema string) *Store {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "billing"
	}
	return &Store{pg: pg, schema: s}
}

func (s *Store) table() string { return s.schema + ".webhook_events" }

// Insert writes the event row. It returns false when a row with the same
// event_id already exists (idempotent replay); any other failure is an error.
func (s *Store) Insert(ctx context.Context, ev WebhookEvent) (bool, error) {
	if s.pg == nil {
		return false, nil
	}
	id := ev.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	tag, err := s.pg.Exec(ctx, `INSERT INTO `+s.table()+`
		(id, event_id, app_user_id, type, environment, platform, payload, processed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false)
		ON CONFLICT (event_id) DO NOTHING`,
		id, ev.EventID, ev.AppUserID, ev.Type, ev.Environment, ev.Platform, ev.Payload)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkProcessed flips the processed flag once every entitlement mutation for
// the event has been applied.
func (s *Store) MarkProcessed(ctx context.Context, eventID string) error {
	if s.pg == nil || eventID == "" {
		return nil
	}
	_, err := s.pg.Exec(ctx, `UPDATE `+s.table()+` SET processed=true, processed_at=NOW() WHERE event_id=$1`, eventID)
	return err
}

// ListUnprocessed returns events older than minAge that never reached
// processed=true, oldest first. Used by the sweeper to re-drive events left
// behind by a mid-sequence failure.
func (s *Store) ListUnprocessed(ctx context.Context, minAge time.Duration, limit int) ([]WebhookEvent, error) {
	if s.pg == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pg.Query(ctx, `SELECT id, event_id, app_user_id, type, environment, platform, payload, processed, created_at, processed_at
		FROM `+s.table()+`
		WHERE processed = false AND created_at < NOW() - make_interval(secs => $1)
		ORDER BY created_at ASC
		LIMIT $2`, minAge.Seconds(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WebhookEvent
	for rows.Next() {
		var ev WebhookEvent
		if err := rows.Scan(&ev.ID, &ev.EventID, &ev.AppUserID, &ev.Type, &ev.Environment, &ev.Platform, &ev.Payload, &ev.Processed, &ev.CreatedAt, &ev.ProcessedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Count returns the total number of logged events. Exposed for tests and
// operational checks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if s.pg == nil {
		return 0, nil
	}
	var n int64
	err := s.pg.QueryRow(ctx, `SELECT COUNT(*) FROM `+s.table()).Scan(&n)
	return n, err
}
