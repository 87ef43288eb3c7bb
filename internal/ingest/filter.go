package ingest

import (
	"encoding/json"
	"strings"

	"github.com/ukcatalog/core/internal/config"
	"github.com/ukcatalog/core/internal/store"
)

// FilterResult is the Stage B outcome for one already-valid candidate.
type FilterResult struct {
	Passed                     bool
	FilterOutcome              string
	PlatformSourceMetadataJSON string
	Product                    store.Product
}

// NormalizeAndFilter canonicalizes platform casing and applies the
// per-account-type minimum rate threshold. envelopeMeta carries the feed
// envelope's metadata keys verbatim (including ones this system doesn't
// know about) so they survive into platform_source_metadata_json per
// spec.
func NormalizeAndFilter(p store.Product, cfg config.IngestionConfig, envelopeMeta map[string]json.RawMessage) FilterResult {
	canonicalPlatform := strings.ToLower(strings.TrimSpace(p.Platform))
	p.Platform = canonicalPlatform

	meta := map[string]interface{}{
		"platform_raw":       p.RawPlatform,
		"platform_canonical": canonicalPlatform,
		"source":             p.Source,
		"method":             p.Method,
	}
	for k, v := range envelopeMeta {
		if k == "source" || k == "method" {
			continue
		}
		meta[k] = v
	}
	metaJSON, _ := json.Marshal(meta)

	threshold := thresholdFor(p.AccountType, cfg)
	if p.AERRate < threshold {
		return FilterResult{
			Passed:                     false,
			FilterOutcome:              "rate_below_threshold",
			PlatformSourceMetadataJSON: string(metaJSON),
			Product:                    p,
		}
	}

	return FilterResult{
		Passed:                     true,
		PlatformSourceMetadataJSON: string(metaJSON),
		Product:                    p,
	}
}

func thresholdFor(accountType store.AccountType, cfg config.IngestionConfig) float64 {
	switch accountType {
	case store.AccountEasyAccess:
		return cfg.RateThreshold.EasyAccess
	case store.AccountNotice:
		return cfg.RateThreshold.Notice
	case store.AccountFixedTerm:
		return cfg.RateThreshold.FixedTerm
	default:
		return 0
	}
}
