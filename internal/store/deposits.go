package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Deposit is one user-owned holding, consumed only by the compliance engine.
type Deposit struct {
	ID             int64
	RegulatorID    string
	Bank           string
	Balance        float64
	SubType        string
	IsJointAccount bool
	IsActive       bool
}

func (s *Store) ListActiveDeposits(ctx context.Context) ([]Deposit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, regulator_id, bank, balance, sub_type, is_joint_account, is_active
		FROM deposits WHERE is_active = 1
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list active deposits: %w", err)
	}
	defer rows.Close()

	var out []Deposit
	for rows.Next() {
		var (
			d       Deposit
			subType sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.RegulatorID, &d.Bank, &d.Balance, &subType, &d.IsJointAccount, &d.IsActive); err != nil {
			return nil, fmt.Errorf("store: scan deposit: %w", err)
		}
		d.SubType = subType.String
		out = append(out, d)
	}
	return out, rows.Err()
}
