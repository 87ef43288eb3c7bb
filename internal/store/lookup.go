package store

import (
	"context"
	"database/sql"
	"fmt"
)

// MatchType is the closed provenance enum for a regulator_lookup row.
type MatchType string

const (
	MatchManualOverride MatchType = "manual_override"
	MatchDirect         MatchType = "direct_match"
	MatchNameVariation  MatchType = "name_variation"
	MatchSharedBrand    MatchType = "shared_brand"
	MatchAlias          MatchType = "alias"
)

// LookupRow is one regulator_lookup entry.
type LookupRow struct {
	ID              int64
	SearchName      string
	RegulatorID     string
	CanonicalName   string
	MatchType       MatchType
	ConfidenceScore float64
	MatchRank       int
}

// ListLookup loads the full regulator_lookup table, used to build the
// in-memory matcher cache at orchestrator startup and on refresh.
func (s *Store) ListLookup(ctx context.Context) ([]LookupRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, search_name, regulator_id, canonical_name, match_type, confidence_score, match_rank
		FROM regulator_lookup
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list lookup: %w", err)
	}
	defer rows.Close()

	var out []LookupRow
	for rows.Next() {
		var (
			r         LookupRow
			matchType string
		)
		if err := rows.Scan(&r.ID, &r.SearchName, &r.RegulatorID, &r.CanonicalName, &matchType, &r.ConfidenceScore, &r.MatchRank); err != nil {
			return nil, fmt.Errorf("store: scan lookup row: %w", err)
		}
		r.MatchType = MatchType(matchType)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LookupVersion is a cheap fingerprint of the lookup table used to decide
// whether the in-memory cache needs rebuilding. COUNT+MAX(rowid) is enough
// to catch inserts and deletes without hashing the whole table.
func (s *Store) LookupVersion(ctx context.Context) (string, error) {
	var count int64
	var maxID sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), MAX(id) FROM regulator_lookup`).Scan(&count, &maxID); err != nil {
		return "", fmt.Errorf("store: lookup version: %w", err)
	}
	return fmt.Sprintf("%d:%d", count, maxID.Int64), nil
}
