// Package matcher resolves a bank name to a UK regulator id via the ordered
// manual-override -> direct -> name-variation -> shared-brand -> alias ->
// fuzzy strategy chain, against an in-memory cache of the regulator_lookup
// table.
package matcher

import (
	"github.com/ukcatalog/core/internal/config"
)

// Resolution is the deterministic outcome of matching one bank name under a
// fixed cache + config: identical inputs always produce an identical
// resolution, satisfying the platform-agnostic determinism invariant.
type Resolution struct {
	OriginalName        string
	NormalizedName      string
	NormalizationSteps  []string
	DatabaseQueryMethod QueryMethod
	Match               *Match // nil when unresolved
	DecisionRouting     string // "accepted" | "needs_review"; "needs_review" when unresolved
}

// Matcher is the stateless (per-call) orchestration of normalize + chain,
// holding only the shared cache handle and config snapshot.
type Matcher struct {
	cache *Cache
	cfg   config.MatchingConfig
}

func New(cache *Cache, cfg config.MatchingConfig) *Matcher {
	return &Matcher{cache: cache, cfg: cfg}
}

// Resolve runs the full pipeline for one bank name: normalize, then walk the
// strategy chain in priority order, first success wins.
func (m *Matcher) Resolve(bankName string) Resolution {
	normalized, steps := Normalize(bankName, m.cfg)

	res := Resolution{
		OriginalName:       bankName,
		NormalizedName:     normalized,
		NormalizationSteps: steps,
	}

	for _, s := range chain() {
		match, ok := s.attempt(normalized, m.cache, m.cfg)
		if !ok {
			continue
		}
		res.Match = &match
		res.DatabaseQueryMethod = match.QueryMethod
		if match.ConfidenceScore >= m.cfg.ConfidenceThresholdHigh {
			res.DecisionRouting = "accepted"
		} else {
			res.DecisionRouting = "needs_review"
		}
		return res
	}

	res.DatabaseQueryMethod = QueryUnknown
	res.DecisionRouting = "needs_review"
	return res
}
