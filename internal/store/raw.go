package store

import (
	"context"
	"database/sql"
	"fmt"
)

// DeleteRawByMethod deletes every products_raw row for (source, method),
// the method-scoped replacement key. Must be called within the same
// transaction as the subsequent inserts.
func DeleteRawByMethod(ctx context.Context, tx *sql.Tx, source, method string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM products_raw WHERE source = ? AND method = ?`, source, method)
	if err != nil {
		return 0, fmt.Errorf("store: delete raw by method: %w", err)
	}
	return res.RowsAffected()
}

// InsertRaw inserts one products_raw row and returns its assigned id.
func InsertRaw(ctx context.Context, tx *sql.Tx, p Product) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO products_raw (
			source, method, platform, raw_platform, bank_name, account_type,
			aer_rate, gross_rate, term_months, notice_period_days,
			min_deposit, max_deposit, fscs_protected, special_features,
			scrape_date, regulator_id, confidence_score, business_key, batch_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.Source, p.Method, p.Platform, p.RawPlatform, p.BankName, string(p.AccountType),
		p.AERRate, p.GrossRate, p.TermMonths, p.NoticePeriodDays,
		p.MinDeposit, p.MaxDeposit, p.FSCSProtected, p.SpecialFeatures,
		p.ScrapeDate, p.RegulatorID, p.ConfidenceScore, nullIfEmpty(p.BusinessKey), p.BatchID,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert raw: %w", err)
	}
	return res.LastInsertId()
}

// UpdateRawMatch writes the matcher's decision back onto a raw row.
func UpdateRawMatch(ctx context.Context, tx *sql.Tx, id int64, regulatorID *string, confidence *float64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE products_raw SET regulator_id = ?, confidence_score = ? WHERE id = ?
	`, regulatorID, confidence, id)
	if err != nil {
		return fmt.Errorf("store: update raw match %d: %w", id, err)
	}
	return nil
}

// UpdateRawBusinessKey writes the dedup business key back onto a raw row.
func UpdateRawBusinessKey(ctx context.Context, tx *sql.Tx, id int64, businessKey string) error {
	_, err := tx.ExecContext(ctx, `UPDATE products_raw SET business_key = ? WHERE id = ?`, businessKey, id)
	if err != nil {
		return fmt.Errorf("store: update raw business key %d: %w", id, err)
	}
	return nil
}

// ListRawByBatch returns every raw row written by a batch, in insertion order.
func (s *Store) ListRawByBatch(ctx context.Context, batchID string) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, rawSelectColumns+` FROM products_raw WHERE batch_id = ? ORDER BY id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("store: list raw by batch: %w", err)
	}
	defer rows.Close()
	return scanRawRows(rows)
}

// ListAllRaw returns every row in products_raw, for rebuild_from_raw.
func (s *Store) ListAllRaw(ctx context.Context) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, rawSelectColumns+` FROM products_raw ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list all raw: %w", err)
	}
	defer rows.Close()
	return scanRawRows(rows)
}

// CountRaw returns the total row count in products_raw.
func (s *Store) CountRaw(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products_raw`).Scan(&n)
	return n, err
}

const rawSelectColumns = `
	SELECT id, source, method, platform, raw_platform, bank_name, account_type,
		aer_rate, gross_rate, term_months, notice_period_days,
		min_deposit, max_deposit, fscs_protected, special_features,
		scrape_date, regulator_id, confidence_score, business_key, batch_id`

func scanRawRows(rows *sql.Rows) ([]Product, error) {
	var out []Product
	for rows.Next() {
		p, err := scanRawRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanRawRow(rows *sql.Rows) (Product, error) {
	var (
		p           Product
		accountType string
		businessKey sql.NullString
	)
	err := rows.Scan(
		&p.ID, &p.Source, &p.Method, &p.Platform, &p.RawPlatform, &p.BankName, &accountType,
		&p.AERRate, &p.GrossRate, &p.TermMonths, &p.NoticePeriodDays,
		&p.MinDeposit, &p.MaxDeposit, &p.FSCSProtected, &p.SpecialFeatures,
		&p.ScrapeDate, &p.RegulatorID, &p.ConfidenceScore, &businessKey, &p.BatchID,
	)
	if err != nil {
		return Product{}, fmt.Errorf("store: scan raw row: %w", err)
	}
	p.AccountType = AccountType(accountType)
	p.BusinessKey = businessKey.String
	return p, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
