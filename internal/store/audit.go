package store

import (
	"context"
	"database/sql"
	"fmt"
)

// IngestionAuditRow is one ingestion_audit record, modeled as a typed struct
// in memory and converted to JSON columns only at the storage boundary.
type IngestionAuditRow struct {
	BatchID                     string
	RecordOrdinal               int
	ValidationStatus            string // "valid" | "invalid"
	ValidationDetailsJSON       string
	FilterOutcome               *string
	PlatformSourceMetadataJSON  string
}

func InsertIngestionAudit(ctx context.Context, tx *sql.Tx, r IngestionAuditRow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ingestion_audit (batch_id, record_ordinal, validation_status, validation_details_json, filter_outcome, platform_source_metadata_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(batch_id, record_ordinal) DO NOTHING
	`, r.BatchID, r.RecordOrdinal, r.ValidationStatus, r.ValidationDetailsJSON, r.FilterOutcome, r.PlatformSourceMetadataJSON)
	if err != nil {
		return fmt.Errorf("store: insert ingestion audit (batch=%s ordinal=%d): %w", r.BatchID, r.RecordOrdinal, err)
	}
	return nil
}

// MatchingAuditRow is one matching_audit record.
type MatchingAuditRow struct {
	BatchID                  string
	ProductID                *int64
	OriginalBankName         string
	NormalizedBankName       string
	NormalizationStepsJSON   string
	DatabaseQueryMethod      string // exact_match | fuzzy | alias | shared_brand | unknown
	MatchType                *string
	FinalRegulatorID         *string
	FinalConfidence          float64
	DecisionRouting          string // accepted | needs_review
	ManualOverrideTimestamp  *string
}

func InsertMatchingAudit(ctx context.Context, tx *sql.Tx, r MatchingAuditRow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO matching_audit (
			batch_id, product_id, original_bank_name, normalized_bank_name, normalization_steps_json,
			database_query_method, match_type, final_regulator_id, final_confidence, decision_routing, manual_override_timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.BatchID, r.ProductID, r.OriginalBankName, r.NormalizedBankName, r.NormalizationStepsJSON,
		r.DatabaseQueryMethod, r.MatchType, r.FinalRegulatorID, r.FinalConfidence, r.DecisionRouting, r.ManualOverrideTimestamp)
	if err != nil {
		return fmt.Errorf("store: insert matching audit (batch=%s name=%s): %w", r.BatchID, r.OriginalBankName, err)
	}
	return nil
}

// DedupAuditRow is one dedup_audit record.
type DedupAuditRow struct {
	BatchID                      string
	GroupID                      string
	BusinessKey                  string
	PlatformsInGroupJSON         string
	QualityScoresJSON            string
	WinnerProductID              *int64
	RejectedProductsMetadataJSON string
}

func InsertDedupAudit(ctx context.Context, tx *sql.Tx, r DedupAuditRow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO dedup_audit (batch_id, group_id, business_key, platforms_in_group_json, quality_scores_json, winner_product_id, rejected_products_metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.BatchID, r.GroupID, r.BusinessKey, r.PlatformsInGroupJSON, r.QualityScoresJSON, r.WinnerProductID, r.RejectedProductsMetadataJSON)
	if err != nil {
		return fmt.Errorf("store: insert dedup audit (batch=%s group=%s): %w", r.BatchID, r.GroupID, err)
	}
	return nil
}

// AuditReport bundles every audit row written by a batch, for get_audit.
type AuditReport struct {
	Batch     *Batch
	Ingestion []IngestionAuditRow
	Matching  []MatchingAuditRow
	Dedup     []DedupAuditRow
}

func (s *Store) GetAudit(ctx context.Context, batchID string) (*AuditReport, error) {
	batch, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, nil
	}

	ingestion, err := s.listIngestionAudit(ctx, batchID)
	if err != nil {
		return nil, err
	}
	matching, err := s.listMatchingAudit(ctx, batchID)
	if err != nil {
		return nil, err
	}
	dedup, err := s.listDedupAudit(ctx, batchID)
	if err != nil {
		return nil, err
	}

	return &AuditReport{Batch: batch, Ingestion: ingestion, Matching: matching, Dedup: dedup}, nil
}

func (s *Store) listIngestionAudit(ctx context.Context, batchID string) ([]IngestionAuditRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, record_ordinal, validation_status, validation_details_json, filter_outcome, platform_source_metadata_json
		FROM ingestion_audit WHERE batch_id = ? ORDER BY record_ordinal
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("store: list ingestion audit: %w", err)
	}
	defer rows.Close()

	var out []IngestionAuditRow
	for rows.Next() {
		var (
			r             IngestionAuditRow
			filterOutcome sql.NullString
		)
		if err := rows.Scan(&r.BatchID, &r.RecordOrdinal, &r.ValidationStatus, &r.ValidationDetailsJSON, &filterOutcome, &r.PlatformSourceMetadataJSON); err != nil {
			return nil, fmt.Errorf("store: scan ingestion audit: %w", err)
		}
		if filterOutcome.Valid {
			v := filterOutcome.String
			r.FilterOutcome = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) listMatchingAudit(ctx context.Context, batchID string) ([]MatchingAuditRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, product_id, original_bank_name, normalized_bank_name, normalization_steps_json,
			database_query_method, match_type, final_regulator_id, final_confidence, decision_routing, manual_override_timestamp
		FROM matching_audit WHERE batch_id = ? ORDER BY id
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("store: list matching audit: %w", err)
	}
	defer rows.Close()

	var out []MatchingAuditRow
	for rows.Next() {
		var (
			r                       MatchingAuditRow
			productID               sql.NullInt64
			matchType               sql.NullString
			finalRegulatorID        sql.NullString
			manualOverrideTimestamp sql.NullString
		)
		if err := rows.Scan(&r.BatchID, &productID, &r.OriginalBankName, &r.NormalizedBankName, &r.NormalizationStepsJSON,
			&r.DatabaseQueryMethod, &matchType, &finalRegulatorID, &r.FinalConfidence, &r.DecisionRouting, &manualOverrideTimestamp); err != nil {
			return nil, fmt.Errorf("store: scan matching audit: %w", err)
		}
		if productID.Valid {
			v := productID.Int64
			r.ProductID = &v
		}
		if matchType.Valid {
			v := matchType.String
			r.MatchType = &v
		}
		if finalRegulatorID.Valid {
			v := finalRegulatorID.String
			r.FinalRegulatorID = &v
		}
		if manualOverrideTimestamp.Valid {
			v := manualOverrideTimestamp.String
			r.ManualOverrideTimestamp = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) listDedupAudit(ctx context.Context, batchID string) ([]DedupAuditRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, group_id, business_key, platforms_in_group_json, quality_scores_json, winner_product_id, rejected_products_metadata_json
		FROM dedup_audit WHERE batch_id = ? ORDER BY id
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("store: list dedup audit: %w", err)
	}
	defer rows.Close()

	var out []DedupAuditRow
	for rows.Next() {
		var (
			r               DedupAuditRow
			winnerProductID sql.NullInt64
		)
		if err := rows.Scan(&r.BatchID, &r.GroupID, &r.BusinessKey, &r.PlatformsInGroupJSON, &r.QualityScoresJSON, &winnerProductID, &r.RejectedProductsMetadataJSON); err != nil {
			return nil, fmt.Errorf("store: scan dedup audit: %w", err)
		}
		if winnerProductID.Valid {
			v := winnerProductID.Int64
			r.WinnerProductID = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
