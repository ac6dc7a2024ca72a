package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bazaar/internal/events"
)

// JournalEntry is one persisted event with its journal sequence number.
type JournalEntry struct {
	Seq       int64     `json:"seq"`
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// AppendEvent writes one event to the journal. The event_id uniqueness
// constraint makes retried appends idempotent.
func (db *DB) AppendEvent(ctx context.Context, event events.Event) error {
	query := `INSERT INTO journal (event_id, event_type, payload, created_at)
              VALUES (?, ?, ?, ?)
              ON CONFLICT(event_id) DO NOTHING`

	_, err := db.db.ExecContext(ctx, query, event.ID, event.Type, string(event.Payload), event.CreatedAt)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListEvents returns the most recent journal entries, newest first.
func (db *DB) ListEvents(ctx context.Context, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT seq, event_id, event_type, payload, created_at
              FROM journal ORDER BY seq DESC LIMIT ?`
	rows, err := db.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListEventsByType returns entries of one event type, oldest first.
func (db *DB) ListEventsByType(ctx context.Context, eventType string, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT seq, event_id, event_type, payload, created_at
              FROM journal WHERE event_type = ? ORDER BY seq ASC LIMIT ?`
	rows, err := db.db.QueryContext(ctx, query, eventType, limit)
	if err != nil {
		return nil, fmt.Errorf("list events by type: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// CountEvents reports the journal length.
func (db *DB) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM journal`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

func scanEntries(rows *sql.Rows) ([]JournalEntry, error) {
	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.Seq, &e.EventID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
