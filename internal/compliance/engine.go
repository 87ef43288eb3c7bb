package compliance

import (
	"context"
	"fmt"
	"sort"

	"github.com/ukcatalog/core/internal/config"
	"github.com/ukcatalog/core/internal/store"
)

// Engine is the read-only entry point: Report() and Diversify(). It never
// aborts on missing data; gaps surface as warnings in the result.
type Engine struct {
	st *store.Store
}

func New(st *store.Store) *Engine {
	return &Engine{st: st}
}

// Report aggregates every active deposit per institution, applies effective
// limits, and classifies each institution's status. No active deposits, or
// preferences that fail to load, add a warning to the report.
func (e *Engine) Report(ctx context.Context, cfg config.ComplianceConfig) (*Report, error) {
	deposits, err := e.st.ListActiveDeposits(ctx)
	if err != nil {
		return &Report{Warnings: []string{fmt.Sprintf("could not load deposits: %v", err)}}, nil
	}
	report := &Report{}
	if len(deposits) == 0 {
		report.Warnings = append(report.Warnings, "no active deposits found")
	}
	prefs, err := e.st.ListInstitutionPrefs(ctx)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("could not load institution preferences: %v", err))
		prefs = map[string]store.InstitutionPrefs{}
	}

	type agg struct {
		bank      string
		aggregate float64
		hasJoint  bool
	}
	byInstitution := map[string]*agg{}
	for _, d := range deposits {
		a, ok := byInstitution[d.RegulatorID]
		if !ok {
			a = &agg{bank: d.Bank}
			byInstitution[d.RegulatorID] = a
		}
		a.aggregate += d.Balance
		if d.IsJointAccount {
			a.hasJoint = true
		}
	}

	regIDs := make([]string, 0, len(byInstitution))
	for id := range byInstitution {
		regIDs = append(regIDs, id)
	}
	sort.Strings(regIDs)

	for _, regID := range regIDs {
		a := byInstitution[regID]
		var p *store.InstitutionPrefs
		if pr, ok := prefs[regID]; ok {
			p = &pr
		}

		limit, protection := EffectiveLimit(p, a.hasJoint, cfg)
		status, excess, severity := Classify(a.aggregate, limit, cfg)

		report.Exposures = append(report.Exposures, Exposure{
			RegulatorID:    regID,
			Bank:           a.bank,
			Aggregate:      a.aggregate,
			HasJoint:       a.hasJoint,
			EffectiveLimit: limit,
			ProtectionType: protection,
			Status:         status,
			ExcessAmount:   excess,
			Severity:       severity,
		})
	}
	return report, nil
}

// DiversifyParams narrows the candidate product pool for a diversification run.
type DiversifyParams struct {
	AccountType store.AccountType
}

// Diversify produces allocation plans for every violation in the current
// report, against the curated catalog filtered by params.
func (e *Engine) Diversify(ctx context.Context, cfg config.ComplianceConfig, params DiversifyParams) ([]DiversificationPlan, error) {
	report, err := e.Report(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var breaches []Exposure
	for _, ex := range report.Exposures {
		if ex.Status == StatusViolation {
			breaches = append(breaches, ex)
		}
	}
	if len(breaches) == 0 {
		return nil, nil
	}

	products, err := e.st.QueryCatalog(ctx, store.CatalogFilter{AccountType: params.AccountType})
	if err != nil {
		return nil, fmt.Errorf("compliance: query catalog for diversification: %w", err)
	}
	prefs, err := e.st.ListInstitutionPrefs(ctx)
	if err != nil {
		prefs = map[string]store.InstitutionPrefs{}
	}

	candidates := make([]Candidate, 0, len(products))
	for _, p := range products {
		if p.RegulatorID == nil {
			continue
		}
		easyAccessRequired := false
		if pr, ok := prefs[*p.RegulatorID]; ok {
			easyAccessRequired = pr.EasyAccessRequiredAboveDefault
		}
		candidates = append(candidates, Candidate{
			ProductID:                      p.ID,
			RegulatorID:                    *p.RegulatorID,
			Rate:                           p.AERRate,
			AccountType:                    p.AccountType,
			EasyAccessRequiredAboveDefault: easyAccessRequired,
		})
	}

	exposureByInstitution := map[string]Exposure{}
	for _, ex := range report.Exposures {
		exposureByInstitution[ex.RegulatorID] = ex
	}

	// Headroom must exist for every candidate institution, not only ones the
	// depositor already holds money at — an institution with no current
	// deposit has aggregate 0 and its full effective limit as headroom, and
	// is exactly the primary diversification target.
	headroom := map[string]*institutionHeadroom{}
	for _, c := range candidates {
		if _, ok := headroom[c.RegulatorID]; ok {
			continue
		}
		if ex, ok := exposureByInstitution[c.RegulatorID]; ok {
			headroom[c.RegulatorID] = &institutionHeadroom{effectiveLimit: ex.EffectiveLimit, currentAggregate: ex.Aggregate}
			continue
		}
		var p *store.InstitutionPrefs
		if pr, ok := prefs[c.RegulatorID]; ok {
			p = &pr
		}
		limit, _ := EffectiveLimit(p, false, cfg)
		headroom[c.RegulatorID] = &institutionHeadroom{effectiveLimit: limit, currentAggregate: 0}
	}

	return Diversify(breaches, candidates, headroom, cfg), nil
}
