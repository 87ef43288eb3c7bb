package dedup

import (
	"strings"
	"time"

	"github.com/ukcatalog/core/internal/config"
	"github.com/ukcatalog/core/internal/store"
)

// QualityScore computes the weighted [0,1] score used to pick a winner among
// duplicate candidates for the same (business_key, platform) pair.
func QualityScore(p store.Product, cfg config.DedupConfig) float64 {
	score := cfg.WeightFRN*frnScore(p) +
		cfg.WeightCompleteness*completenessScore(p) +
		cfg.WeightRecency*recencyScore(p) +
		cfg.WeightSourceTrust*sourceTrustScore(p, cfg) +
		cfg.WeightFeatures*featuresScore(p)

	totalWeight := cfg.WeightFRN + cfg.WeightCompleteness + cfg.WeightRecency + cfg.WeightSourceTrust + cfg.WeightFeatures
	if totalWeight <= 0 {
		return 0
	}
	normalized := score / totalWeight
	if normalized < 0 {
		return 0
	}
	if normalized > 1 {
		return 1
	}
	return normalized
}

func frnScore(p store.Product) float64 {
	if p.RegulatorID == nil || *p.RegulatorID == "" {
		return 0
	}
	if p.ConfidenceScore == nil {
		return 0.5
	}
	return *p.ConfidenceScore
}

func completenessScore(p store.Product) float64 {
	fields := 0
	present := 0
	check := func(ok bool) {
		fields++
		if ok {
			present++
		}
	}
	check(p.TermMonths != nil)
	check(p.NoticePeriodDays != nil)
	check(p.MinDeposit != nil)
	check(p.MaxDeposit != nil)
	check(p.GrossRate != nil)
	if fields == 0 {
		return 0
	}
	return float64(present) / float64(fields)
}

// recencyScore decays linearly over a 30-day window; unparseable dates score 0.
func recencyScore(p store.Product) float64 {
	t, err := time.Parse(time.RFC3339, p.ScrapeDate)
	if err != nil {
		t, err = time.Parse("2006-01-02", p.ScrapeDate)
		if err != nil {
			return 0
		}
	}
	age := time.Since(t).Hours() / 24
	const window = 30.0
	if age <= 0 {
		return 1
	}
	if age >= window {
		return 0
	}
	return 1 - age/window
}

func sourceTrustScore(p store.Product, cfg config.DedupConfig) float64 {
	if v, ok := cfg.SourceTrust[p.Source]; ok {
		return v
	}
	return 0.5
}

func featuresScore(p store.Product) float64 {
	if p.SpecialFeatures == nil {
		return 0
	}
	if strings.TrimSpace(*p.SpecialFeatures) == "" {
		return 0
	}
	return 1
}
