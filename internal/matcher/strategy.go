package matcher

import (
	"github.com/ukcatalog/core/internal/config"
	"github.com/ukcatalog/core/internal/store"
)

// QueryMethod is the algorithm actually used to resolve a match, distinct
// from MatchType which records the provenance of the winning lookup row.
type QueryMethod string

const (
	QueryExactMatch  QueryMethod = "exact_match"
	QueryFuzzy       QueryMethod = "fuzzy"
	QueryAlias       QueryMethod = "alias"
	QuerySharedBrand QueryMethod = "shared_brand"
	QueryUnknown     QueryMethod = "unknown"
)

// Match is the outcome of a successful strategy attempt.
type Match struct {
	RegulatorID     string
	CanonicalName   string
	MatchType       store.MatchType
	QueryMethod     QueryMethod
	ConfidenceScore float64
}

// strategy is the tagged-variant operation every chain link implements:
// attempt(name, cache, config) -> Option<Match>.
type strategy interface {
	name() string
	attempt(searchName string, cache *Cache, cfg config.MatchingConfig) (Match, bool)
}

type manualOverrideStrategy struct{}

func (manualOverrideStrategy) name() string { return "manual_override" }
func (manualOverrideStrategy) attempt(searchName string, cache *Cache, _ config.MatchingConfig) (Match, bool) {
	row, ok := cache.bestOfType(searchName, store.MatchManualOverride)
	if !ok {
		return Match{}, false
	}
	return Match{
		RegulatorID:     row.RegulatorID,
		CanonicalName:   row.CanonicalName,
		MatchType:       store.MatchManualOverride,
		QueryMethod:     QueryExactMatch,
		ConfidenceScore: 1.0,
	}, true
}

type directStrategy struct{}

func (directStrategy) name() string { return "direct" }
func (directStrategy) attempt(searchName string, cache *Cache, _ config.MatchingConfig) (Match, bool) {
	row, ok := cache.bestOfType(searchName, store.MatchDirect)
	if !ok {
		return Match{}, false
	}
	return Match{
		RegulatorID:     row.RegulatorID,
		CanonicalName:   row.CanonicalName,
		MatchType:       store.MatchDirect,
		QueryMethod:     QueryExactMatch,
		ConfidenceScore: 1.0,
	}, true
}

type nameVariationStrategy struct{}

func (nameVariationStrategy) name() string { return "name_variation" }
func (nameVariationStrategy) attempt(searchName string, cache *Cache, _ config.MatchingConfig) (Match, bool) {
	row, ok := cache.bestOfType(searchName, store.MatchNameVariation)
	if !ok {
		return Match{}, false
	}
	return Match{
		RegulatorID:     row.RegulatorID,
		CanonicalName:   row.CanonicalName,
		MatchType:       store.MatchNameVariation,
		QueryMethod:     QueryExactMatch,
		ConfidenceScore: row.ConfidenceScore,
	}, true
}

type sharedBrandStrategy struct{}

func (sharedBrandStrategy) name() string { return "shared_brand" }
func (sharedBrandStrategy) attempt(searchName string, cache *Cache, _ config.MatchingConfig) (Match, bool) {
	row, ok := cache.bestOfType(searchName, store.MatchSharedBrand)
	if !ok {
		return Match{}, false
	}
	return Match{
		RegulatorID:     row.RegulatorID,
		CanonicalName:   row.CanonicalName,
		MatchType:       store.MatchSharedBrand,
		QueryMethod:     QuerySharedBrand,
		ConfidenceScore: row.ConfidenceScore,
	}, true
}

type aliasStrategy struct{}

func (aliasStrategy) name() string { return "alias" }
func (aliasStrategy) attempt(searchName string, cache *Cache, cfg config.MatchingConfig) (Match, bool) {
	if !cfg.EnableAlias {
		return Match{}, false
	}
	row, ok := cache.bestOfType(searchName, store.MatchAlias)
	if !ok {
		return Match{}, false
	}
	return Match{
		RegulatorID:     row.RegulatorID,
		CanonicalName:   row.CanonicalName,
		MatchType:       store.MatchAlias,
		QueryMethod:     QueryAlias,
		ConfidenceScore: row.ConfidenceScore,
	}, true
}

type fuzzyStrategy struct{}

func (fuzzyStrategy) name() string { return "fuzzy" }
func (fuzzyStrategy) attempt(searchName string, cache *Cache, cfg config.MatchingConfig) (Match, bool) {
	if !cfg.EnableFuzzy {
		return Match{}, false
	}

	var best store.LookupRow
	bestSim := -1.0
	found := false
	for _, row := range cache.all() {
		sim := similarity(searchName, row.SearchName)
		dist := levenshtein(searchName, row.SearchName)
		if sim < cfg.FuzzyThreshold || dist > cfg.MaxEditDistance {
			continue
		}
		if sim > bestSim || (sim == bestSim && found && row.MatchRank < best.MatchRank) {
			best = row
			bestSim = sim
			found = true
		}
	}
	if !found {
		return Match{}, false
	}
	return Match{
		RegulatorID:     best.RegulatorID,
		CanonicalName:   best.CanonicalName,
		MatchType:       best.MatchType,
		QueryMethod:     QueryFuzzy,
		ConfidenceScore: bestSim,
	}, true
}

// chain is the priority-ordered strategy list from spec: manual override,
// direct, name variation, shared brand, alias, fuzzy.
func chain() []strategy {
	return []strategy{
		manualOverrideStrategy{},
		directStrategy{},
		nameVariationStrategy{},
		sharedBrandStrategy{},
		aliasStrategy{},
		fuzzyStrategy{},
	}
}
