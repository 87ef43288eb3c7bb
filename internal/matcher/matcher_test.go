package matcher

import (
	"testing"

	"github.com/ukcatalog/core/internal/config"
	"github.com/ukcatalog/core/internal/store"
)

func testConfig() config.MatchingConfig {
	return config.MatchingConfig{
		NormalizationEnabled:    true,
		Prefixes:                []string{"THE "},
		Suffixes:                []string{" PLC", " LIMITED", " LTD", " UK"},
		Abbreviations:           map[string]string{"BS": "BUILDING SOCIETY"},
		EnableFuzzy:             true,
		FuzzyThreshold:          0.85,
		MaxEditDistance:         2,
		EnableAlias:             true,
		ConfidenceThresholdHigh: 0.7,
	}
}

func cacheWith(rows ...store.LookupRow) *Cache {
	c := NewCache()
	for _, r := range rows {
		c.byName[r.SearchName] = append(c.byName[r.SearchName], r)
	}
	return c
}

func TestManualOverrideBeatsDirectMatch(t *testing.T) {
	cache := cacheWith(
		store.LookupRow{SearchName: "SANTANDER", RegulatorID: "R1", MatchType: store.MatchDirect, MatchRank: 2, ConfidenceScore: 1.0},
		store.LookupRow{SearchName: "SANTANDER", RegulatorID: "R9", MatchType: store.MatchManualOverride, MatchRank: 1, ConfidenceScore: 1.0},
	)
	m := New(cache, testConfig())

	res := m.Resolve("Santander")

	if res.Match == nil {
		t.Fatalf("expected a match")
	}
	if res.Match.RegulatorID != "R9" {
		t.Errorf("regulator id = %s, want R9", res.Match.RegulatorID)
	}
	if res.Match.MatchType != store.MatchManualOverride {
		t.Errorf("match type = %s, want manual_override", res.Match.MatchType)
	}
	if res.Match.ConfidenceScore != 1.0 {
		t.Errorf("confidence = %v, want 1.0", res.Match.ConfidenceScore)
	}
	if res.DatabaseQueryMethod != QueryExactMatch {
		t.Errorf("query method = %s, want exact_match", res.DatabaseQueryMethod)
	}
}

func TestFuzzyMatchWithinTolerance(t *testing.T) {
	cache := cacheWith(
		store.LookupRow{SearchName: "SANTANDER", RegulatorID: "R1", MatchType: store.MatchDirect, MatchRank: 1, ConfidenceScore: 1.0},
	)
	cfg := testConfig()
	m := New(cache, cfg)

	res := m.Resolve("Santandr")

	if res.Match == nil {
		t.Fatalf("expected a fuzzy match")
	}
	if res.DatabaseQueryMethod != QueryFuzzy {
		t.Errorf("query method = %s, want fuzzy", res.DatabaseQueryMethod)
	}
	if res.Match.ConfidenceScore < cfg.FuzzyThreshold {
		t.Errorf("confidence %v below fuzzy threshold %v", res.Match.ConfidenceScore, cfg.FuzzyThreshold)
	}
}

func TestDisablingFuzzyPreventsMatch(t *testing.T) {
	cache := cacheWith(
		store.LookupRow{SearchName: "SANTANDER", RegulatorID: "R1", MatchType: store.MatchDirect, MatchRank: 1, ConfidenceScore: 1.0},
	)
	cfg := testConfig()
	cfg.EnableFuzzy = false
	m := New(cache, cfg)

	res := m.Resolve("Santandr")

	if res.Match != nil {
		t.Fatalf("expected no match with fuzzy disabled, got %+v", res.Match)
	}
	if res.DatabaseQueryMethod != QueryUnknown {
		t.Errorf("query method = %s, want unknown", res.DatabaseQueryMethod)
	}
}

func TestNormalizeStripsPrefixSuffixAndExpandsAbbreviations(t *testing.T) {
	cfg := testConfig()

	got, steps := Normalize("The Example BS Ltd", cfg)
	want := "EXAMPLE BUILDING SOCIETY"
	if got != want {
		t.Errorf("normalized = %q, want %q", got, want)
	}
	if len(steps) == 0 {
		t.Errorf("expected normalization steps to be recorded")
	}
}

func TestNormalizeDisabledPassesThrough(t *testing.T) {
	cfg := testConfig()
	cfg.NormalizationEnabled = false

	got, steps := Normalize("Santander UK", cfg)
	if got != "Santander UK" {
		t.Errorf("normalized = %q, want unchanged input", got)
	}
	if steps != nil {
		t.Errorf("expected no steps when normalization disabled, got %v", steps)
	}
}

func TestDeterministicAcrossRepeatedInvocations(t *testing.T) {
	cache := cacheWith(
		store.LookupRow{SearchName: "SANTANDER", RegulatorID: "R1", MatchType: store.MatchDirect, MatchRank: 1, ConfidenceScore: 1.0},
	)
	cfg := testConfig()
	m := New(cache, cfg)

	first := m.Resolve("Santander")
	second := m.Resolve("Santander")

	if first.DatabaseQueryMethod != second.DatabaseQueryMethod ||
		first.Match.MatchType != second.Match.MatchType ||
		first.Match.RegulatorID != second.Match.RegulatorID ||
		first.Match.ConfidenceScore != second.Match.ConfidenceScore {
		t.Errorf("resolution not deterministic across invocations: %+v vs %+v", first, second)
	}
}

func TestFuzzyThresholdBoundary(t *testing.T) {
	cache := cacheWith(
		store.LookupRow{SearchName: "ABCDEFGHIJ", RegulatorID: "R1", MatchType: store.MatchDirect, MatchRank: 1, ConfidenceScore: 1.0},
	)
	cfg := testConfig()
	cfg.MaxEditDistance = 1
	cfg.FuzzyThreshold = 0.9 // exactly 1 edit over a 10-char string = 0.9 similarity
	m := New(cache, cfg)

	res := m.Resolve("ABCDEFGHIX") // one substitution, similarity exactly 0.9
	if res.Match == nil {
		t.Fatalf("expected match exactly at threshold to be accepted")
	}

	cfg.FuzzyThreshold = 0.95
	m2 := New(cache, cfg)
	res2 := m2.Resolve("ABCDEFGHIX")
	if res2.Match != nil {
		t.Fatalf("expected match strictly below threshold to be rejected")
	}
}
