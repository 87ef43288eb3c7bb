package dedup

import (
	"testing"

	"github.com/ukcatalog/core/internal/config"
	"github.com/ukcatalog/core/internal/store"
)

func testCfg() config.DedupConfig {
	return config.DedupConfig{
		WeightFRN:          0.4,
		WeightCompleteness: 0.2,
		WeightRecency:      0.2,
		WeightSourceTrust:  0.15,
		WeightFeatures:     0.05,
		MinQualityFloor:    0.1,
		SourceTrust:        map[string]float64{},
	}
}

func frn(s string) *string { return &s }

func TestCrossPlatformPreservation(t *testing.T) {
	regID := frn("R1")
	direct := store.Product{
		Source: "moneyfacts", Method: "easy_access", Platform: "direct",
		BankName: "Example Bank", AccountType: store.AccountEasyAccess,
		AERRate: 4.5, RegulatorID: regID, BusinessKey: "same-key",
		ScrapeDate: "2026-07-01",
	}
	ajbell := store.Product{
		Source: "moneyfacts", Method: "easy_access", Platform: "ajbell",
		BankName: "Example Bank", AccountType: store.AccountEasyAccess,
		AERRate: 4.5, RegulatorID: regID, BusinessKey: "same-key",
		ScrapeDate: "2026-07-01",
	}

	result := Run("batch-1", []store.Product{direct, ajbell}, []int64{1, 2}, testCfg())

	if len(result.Winners) != 2 {
		t.Fatalf("expected 2 catalog rows (one per platform), got %d", len(result.Winners))
	}
	platforms := map[string]bool{}
	for _, w := range result.Winners {
		platforms[w.Platform] = true
		if w.BusinessKey != "same-key" {
			t.Errorf("winner business key = %s, want same-key", w.BusinessKey)
		}
		if w.RegulatorID == nil || *w.RegulatorID != "R1" {
			t.Errorf("winner regulator id mismatch")
		}
	}
	if !platforms["direct"] || !platforms["ajbell"] {
		t.Errorf("expected both platforms preserved, got %v", platforms)
	}
	if len(result.Audits) != 1 {
		t.Fatalf("expected 1 dedup_audit row for the shared business key, got %d", len(result.Audits))
	}
}

func TestBusinessKeyExcludesPlatform(t *testing.T) {
	a := store.Product{BankName: "Example", AccountType: store.AccountEasyAccess, AERRate: 4.5, Platform: "direct"}
	b := store.Product{BankName: "Example", AccountType: store.AccountEasyAccess, AERRate: 4.5, Platform: "ajbell"}

	if BusinessKey(a) != BusinessKey(b) {
		t.Errorf("expected identical business keys across platforms")
	}
}

func TestBusinessKeyDiffersOnAccountType(t *testing.T) {
	a := store.Product{BankName: "Example", AccountType: store.AccountEasyAccess, AERRate: 4.5}
	b := store.Product{BankName: "Example", AccountType: store.AccountFixedTerm, AERRate: 4.5}

	if BusinessKey(a) == BusinessKey(b) {
		t.Errorf("expected different business keys for different account types")
	}
}

func TestWinnerSelectionPicksHighestScore(t *testing.T) {
	lowConfidence := 0.3
	highConfidence := 0.95
	weak := store.Product{
		Source: "a", Platform: "direct", BankName: "X", AccountType: store.AccountEasyAccess,
		AERRate: 4.5, BusinessKey: "k", RegulatorID: frn("R1"), ConfidenceScore: &lowConfidence,
		ScrapeDate: "2020-01-01",
	}
	strong := store.Product{
		Source: "a", Platform: "direct", BankName: "X", AccountType: store.AccountEasyAccess,
		AERRate: 4.5, BusinessKey: "k", RegulatorID: frn("R1"), ConfidenceScore: &highConfidence,
		ScrapeDate: "2026-07-31",
	}

	result := Run("batch-2", []store.Product{weak, strong}, []int64{1, 2}, testCfg())
	if len(result.Winners) != 1 {
		t.Fatalf("expected 1 winner for single platform, got %d", len(result.Winners))
	}
	if result.Winners[0].ConfidenceScore == nil || *result.Winners[0].ConfidenceScore != highConfidence {
		t.Errorf("expected the higher-confidence candidate to win")
	}
}
