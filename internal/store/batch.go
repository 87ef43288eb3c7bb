package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

func (s *Store) CreateBatch(ctx context.Context, b Batch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batch_master (batch_id, started_at, file_path, source, method, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, b.BatchID, b.StartedAt.UTC(), b.FilePath, b.Source, b.Method, string(b.Status))
	if err != nil {
		return fmt.Errorf("store: create batch %s: %w", b.BatchID, err)
	}
	return nil
}

func (s *Store) SetBatchStatus(ctx context.Context, batchID string, status BatchStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE batch_master SET status = ? WHERE batch_id = ?`, string(status), batchID)
	if err != nil {
		return fmt.Errorf("store: set batch status %s: %w", batchID, err)
	}
	return nil
}

func (s *Store) FinishBatch(ctx context.Context, batchID string, status BatchStatus, finishedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE batch_master SET status = ?, finished_at = ? WHERE batch_id = ?
	`, string(status), finishedAt.UTC(), batchID)
	if err != nil {
		return fmt.Errorf("store: finish batch %s: %w", batchID, err)
	}
	return nil
}

func (s *Store) GetBatch(ctx context.Context, batchID string) (*Batch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT batch_id, started_at, finished_at, file_path, source, method, status
		FROM batch_master WHERE batch_id = ?
	`, batchID)
	return scanBatch(row)
}

// FindCommittedBatch looks up an earlier committed batch for the same
// deterministic batch id, used for idempotent re-run detection.
func (s *Store) FindCommittedBatch(ctx context.Context, batchID string) (*Batch, error) {
	b, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if b == nil || (b.Status != BatchCommitted && b.Status != BatchAlreadyCommitted) {
		return nil, nil
	}
	return b, nil
}

func scanBatch(row *sql.Row) (*Batch, error) {
	var (
		b          Batch
		finishedAt sql.NullTime
		status     string
	)
	err := row.Scan(&b.BatchID, &b.StartedAt, &finishedAt, &b.FilePath, &b.Source, &b.Method, &status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan batch: %w", err)
	}
	b.Status = BatchStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		b.FinishedAt = &t
	}
	return &b, nil
}
