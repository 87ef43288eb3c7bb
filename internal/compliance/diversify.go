package compliance

import (
	"sort"

	"github.com/ukcatalog/core/internal/config"
	"github.com/ukcatalog/core/internal/store"
)

// Candidate is a product the diversification planner may allocate into.
type Candidate struct {
	ProductID                      int64
	RegulatorID                    string
	Rate                           float64
	AccountType                    store.AccountType
	EasyAccessRequiredAboveDefault bool
}

// institutionHeadroom tracks remaining capacity at a target institution,
// decremented locally as allocations are made so later breaches in the same
// run see already-consumed capacity — grounded on a score-then-greedily-
// allocate shape, generalized here to plan diversification instead of
// ranking trust candidates.
type institutionHeadroom struct {
	effectiveLimit float64
	currentAggregate float64
}

func (h *institutionHeadroom) remaining() float64 {
	r := h.effectiveLimit - h.currentAggregate
	if r < 0 {
		return 0
	}
	return r
}

// Diversify builds a diversification plan for each breach, traversed in
// excess-descending order, against a shared candidate-product pool and a
// shared headroom map so capacity consumed by an earlier (larger) breach in
// this run is visible to later ones.
func Diversify(breaches []Exposure, candidates []Candidate, headroomByInstitution map[string]*institutionHeadroom, cfg config.ComplianceConfig) []DiversificationPlan {
	ordered := make([]Exposure, len(breaches))
	copy(ordered, breaches)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ExcessAmount > ordered[j].ExcessAmount })

	plans := make([]DiversificationPlan, 0, len(ordered))
	for _, b := range ordered {
		plans = append(plans, planFor(b, candidates, headroomByInstitution, cfg))
	}
	return plans
}

func planFor(b Exposure, candidates []Candidate, headroom map[string]*institutionHeadroom, cfg config.ComplianceConfig) DiversificationPlan {
	plan := DiversificationPlan{SourceRegulatorID: b.RegulatorID, Excess: b.ExcessAmount}

	sourceRate := sourceRateFor(b.RegulatorID, candidates)
	minAcceptableRate := sourceRate - cfg.DefaultRateLossTolerance

	ranked := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.RegulatorID == b.RegulatorID {
			continue
		}
		if c.Rate < minAcceptableRate {
			continue
		}
		if c.EasyAccessRequiredAboveDefault && c.AccountType != store.AccountEasyAccess {
			continue
		}
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Rate > ranked[j].Rate })

	remainingExcess := b.ExcessAmount
	for _, c := range ranked {
		if remainingExcess <= 0 {
			break
		}
		h, ok := headroom[c.RegulatorID]
		if !ok || h.remaining() <= 0 {
			continue
		}
		amount := h.remaining()
		if amount > remainingExcess {
			amount = remainingExcess
		}

		plan.Allocations = append(plan.Allocations, Allocation{
			TargetProductID: c.ProductID,
			Rate:            c.Rate,
			RateLoss:        sourceRate - c.Rate,
			Amount:          amount,
		})
		h.currentAggregate += amount
		remainingExcess -= amount
	}

	if remainingExcess > 0 {
		plan.Notes = append(plan.Notes, "insufficient headroom across candidates to fully diversify excess")
	}
	return plan
}

func sourceRateFor(regulatorID string, candidates []Candidate) float64 {
	for _, c := range candidates {
		if c.RegulatorID == regulatorID {
			return c.Rate
		}
	}
	return 0
}
