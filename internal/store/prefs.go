package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ProtectionType is the closed enum for institution_prefs.protection_type.
type ProtectionType string

const (
	ProtectionStandard         ProtectionType = "standard"
	ProtectionPersonalOverride ProtectionType = "personal_override"
	ProtectionGovernment       ProtectionType = "government_protected"
)

// InstitutionPrefs is one institution_prefs row.
type InstitutionPrefs struct {
	RegulatorID                    string
	PersonalLimit                  *float64
	EasyAccessRequiredAboveDefault bool
	TrustLevel                     string
	RiskNotes                      string
	ProtectionType                 ProtectionType
}

func (s *Store) GetInstitutionPrefs(ctx context.Context, regulatorID string) (*InstitutionPrefs, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT regulator_id, personal_limit, easy_access_required_above_default, trust_level, risk_notes, protection_type
		FROM institution_prefs WHERE regulator_id = ?
	`, regulatorID)

	var (
		p              InstitutionPrefs
		trustLevel     sql.NullString
		riskNotes      sql.NullString
		protectionType string
	)
	err := row.Scan(&p.RegulatorID, &p.PersonalLimit, &p.EasyAccessRequiredAboveDefault, &trustLevel, &riskNotes, &protectionType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get institution prefs %s: %w", regulatorID, err)
	}
	p.TrustLevel = trustLevel.String
	p.RiskNotes = riskNotes.String
	p.ProtectionType = ProtectionType(protectionType)
	return &p, nil
}

// ListInstitutionPrefs loads every institution_prefs row, keyed by regulator_id.
func (s *Store) ListInstitutionPrefs(ctx context.Context) (map[string]InstitutionPrefs, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT regulator_id, personal_limit, easy_access_required_above_default, trust_level, risk_notes, protection_type
		FROM institution_prefs
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list institution prefs: %w", err)
	}
	defer rows.Close()

	out := make(map[string]InstitutionPrefs)
	for rows.Next() {
		var (
			p              InstitutionPrefs
			trustLevel     sql.NullString
			riskNotes      sql.NullString
			protectionType string
		)
		if err := rows.Scan(&p.RegulatorID, &p.PersonalLimit, &p.EasyAccessRequiredAboveDefault, &trustLevel, &riskNotes, &protectionType); err != nil {
			return nil, fmt.Errorf("store: scan institution prefs: %w", err)
		}
		p.TrustLevel = trustLevel.String
		p.RiskNotes = riskNotes.String
		p.ProtectionType = ProtectionType(protectionType)
		out[p.RegulatorID] = p
	}
	return out, rows.Err()
}
