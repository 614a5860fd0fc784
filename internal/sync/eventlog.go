package syncx

import (
	"context"
	"database/sql"
	"time"
)

// Event types appended by the session engine.
const (
	TypeSessionStarted   = "SessionStarted"
	TypeSessionCompleted = "SessionCompleted"
)

type Event struct {
	Offset    int64
	Type      string
	Key       string // natural key: session ID
	DataJSON  string
	CreatedAt int64
}

// EventRepo is an append-only log backed by the session_events table. It
// exists for reporting and offline export; nothing in the request path reads
// from it.
type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO session_events (typ, key, data, created_at) VALUES ($1,$2,$3,$4)`,
		e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}

// AppendTx appends within a caller-owned transaction so the event commits or
// rolls back together with the state change it describes.
func (r *EventRepo) AppendTx(ctx context.Context, tx *sql.Tx, e Event) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO session_events (typ, key, data, created_at) VALUES ($1,$2,$3,$4)`,
		e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}

// Since returns events with offset greater than after, oldest first.
func (r *EventRepo) Since(ctx context.Context, after int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT offset_id, typ, key, data, created_at FROM session_events
		  WHERE offset_id > $1 ORDER BY offset_id ASC LIMIT $2`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Offset, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
