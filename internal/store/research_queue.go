package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type ResearchQueueStatus string

const (
	ResearchOpen      ResearchQueueStatus = "open"
	ResearchResolved  ResearchQueueStatus = "resolved"
	ResearchDismissed ResearchQueueStatus = "dismissed"
)

type ResearchQueueEntry struct {
	Name            string
	FirstSeen       time.Time
	LastSeen        time.Time
	OccurrenceCount int
	Status          ResearchQueueStatus
}

func (s *Store) GetResearchQueueEntry(ctx context.Context, tx *sql.Tx, name string) (*ResearchQueueEntry, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT name, first_seen, last_seen, occurrence_count, status
		FROM research_queue WHERE name = ?
	`, name)

	var (
		e      ResearchQueueEntry
		status string
	)
	err := row.Scan(&e.Name, &e.FirstSeen, &e.LastSeen, &e.OccurrenceCount, &status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get research queue entry %s: %w", name, err)
	}
	e.Status = ResearchQueueStatus(status)
	return &e, nil
}

func (s *Store) CountResearchQueue(ctx context.Context, tx *sql.Tx) (int, error) {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM research_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count research queue: %w", err)
	}
	return n, nil
}

// InsertResearchQueueEntry adds a brand-new unresolved name.
func (s *Store) InsertResearchQueueEntry(ctx context.Context, tx *sql.Tx, name string, seenAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO research_queue (name, first_seen, last_seen, occurrence_count, status)
		VALUES (?, ?, ?, 1, 'open')
	`, name, seenAt.UTC(), seenAt.UTC())
	if err != nil {
		return fmt.Errorf("store: insert research queue entry %s: %w", name, err)
	}
	return nil
}

// BumpResearchQueueEntry increments the occurrence counter of an existing entry.
func (s *Store) BumpResearchQueueEntry(ctx context.Context, tx *sql.Tx, name string, seenAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE research_queue SET occurrence_count = occurrence_count + 1, last_seen = ? WHERE name = ?
	`, seenAt.UTC(), name)
	if err != nil {
		return fmt.Errorf("store: bump research queue entry %s: %w", name, err)
	}
	return nil
}

func (s *Store) ListResearchQueue(ctx context.Context, status ResearchQueueStatus) ([]ResearchQueueEntry, error) {
	q := `SELECT name, first_seen, last_seen, occurrence_count, status FROM research_queue`
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY occurrence_count DESC, last_seen DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list research queue: %w", err)
	}
	defer rows.Close()

	var out []ResearchQueueEntry
	for rows.Next() {
		var (
			e      ResearchQueueEntry
			status string
		)
		if err := rows.Scan(&e.Name, &e.FirstSeen, &e.LastSeen, &e.OccurrenceCount, &status); err != nil {
			return nil, fmt.Errorf("store: scan research queue entry: %w", err)
		}
		e.Status = ResearchQueueStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}
