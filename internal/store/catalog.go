package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ReplaceCatalogForBatch deletes every products row written by prior batches
// and inserts the new winner set, all within the caller's transaction. The
// curated catalog is small enough (thousands of rows) that a full delta
// replace per commit is simpler than incremental upsert bookkeeping, and
// keeps stage F's "readers see pre- or post-batch, never partial" guarantee
// trivial: it's one DELETE and a batch of INSERTs inside one transaction.
func ReplaceCatalogForBatch(ctx context.Context, tx *sql.Tx, winners []Product) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
		return fmt.Errorf("store: clear products: %w", err)
	}
	for _, p := range winners {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO products (
				source, method, platform, raw_platform, bank_name, account_type,
				aer_rate, gross_rate, term_months, notice_period_days,
				min_deposit, max_deposit, fscs_protected, special_features,
				scrape_date, regulator_id, confidence_score, business_key, quality_score, batch_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			p.Source, p.Method, p.Platform, p.RawPlatform, p.BankName, string(p.AccountType),
			p.AERRate, p.GrossRate, p.TermMonths, p.NoticePeriodDays,
			p.MinDeposit, p.MaxDeposit, p.FSCSProtected, p.SpecialFeatures,
			p.ScrapeDate, p.RegulatorID, p.ConfidenceScore, p.BusinessKey, p.QualityScore, p.BatchID,
		); err != nil {
			return fmt.Errorf("store: insert catalog row (business_key=%s platform=%s): %w", p.BusinessKey, p.Platform, err)
		}
	}
	return nil
}

// CountCatalog returns the total row count in the deduplicated catalog.
func (s *Store) CountCatalog(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n)
	return n, err
}

// CatalogFilter narrows a catalog query; zero values are ignored.
type CatalogFilter struct {
	Platform    string
	AccountType AccountType
	RegulatorID string
}

func (s *Store) QueryCatalog(ctx context.Context, f CatalogFilter) ([]Product, error) {
	q := `SELECT id, source, method, platform, raw_platform, bank_name, account_type,
		aer_rate, gross_rate, term_months, notice_period_days,
		min_deposit, max_deposit, fscs_protected, special_features,
		scrape_date, regulator_id, confidence_score, business_key, quality_score, batch_id
		FROM products WHERE 1=1`
	var args []any
	if f.Platform != "" {
		q += ` AND platform = ?`
		args = append(args, f.Platform)
	}
	if f.AccountType != "" {
		q += ` AND account_type = ?`
		args = append(args, string(f.AccountType))
	}
	if f.RegulatorID != "" {
		q += ` AND regulator_id = ?`
		args = append(args, f.RegulatorID)
	}
	q += ` ORDER BY business_key, platform`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query catalog: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var (
			p           Product
			accountType string
		)
		if err := rows.Scan(
			&p.ID, &p.Source, &p.Method, &p.Platform, &p.RawPlatform, &p.BankName, &accountType,
			&p.AERRate, &p.GrossRate, &p.TermMonths, &p.NoticePeriodDays,
			&p.MinDeposit, &p.MaxDeposit, &p.FSCSProtected, &p.SpecialFeatures,
			&p.ScrapeDate, &p.RegulatorID, &p.ConfidenceScore, &p.BusinessKey, &p.QualityScore, &p.BatchID,
		); err != nil {
			return nil, fmt.Errorf("store: scan catalog row: %w", err)
		}
		p.AccountType = AccountType(accountType)
		out = append(out, p)
	}
	return out, rows.Err()
}
