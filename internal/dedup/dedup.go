package dedup

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/ukcatalog/core/internal/config"
	"github.com/ukcatalog/core/internal/store"
)

// RejectedMeta is one entry in a dedup_audit row's rejected-products list.
type RejectedMeta struct {
	ProductID int64   `json:"product_id"`
	Platform  string  `json:"platform"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
}

// Result is the outcome of running stage E over one batch's candidate set.
type Result struct {
	Winners []store.Product
	Audits  []store.DedupAuditRow
}

type candidate struct {
	product store.Product
	id      int64
	score   float64
}

// Run groups candidates by business key, partitions each group by platform,
// and picks the highest-scoring candidate per (business_key, platform) pair.
// candidates must already carry business keys; ids holds the products_raw id
// for each candidate at the same index.
func Run(batchID string, candidates []store.Product, ids []int64, cfg config.DedupConfig) Result {
	byBusinessKey := map[string][]candidate{}
	for i, p := range candidates {
		byBusinessKey[p.BusinessKey] = append(byBusinessKey[p.BusinessKey], candidate{
			product: p,
			id:      ids[i],
			score:   QualityScore(p, cfg),
		})
	}

	businessKeys := make([]string, 0, len(byBusinessKey))
	for k := range byBusinessKey {
		businessKeys = append(businessKeys, k)
	}
	sort.Strings(businessKeys)

	result := Result{}
	for _, bk := range businessKeys {
		result.Audits = append(result.Audits, processGroup(batchID, bk, byBusinessKey[bk], cfg, &result.Winners))
	}
	return result
}

func processGroup(batchID, businessKey string, group []candidate, cfg config.DedupConfig, winners *[]store.Product) store.DedupAuditRow {
	byPlatform := map[string][]candidate{}
	for _, c := range group {
		byPlatform[c.product.Platform] = append(byPlatform[c.product.Platform], c)
	}

	platforms := make([]string, 0, len(byPlatform))
	for pf := range byPlatform {
		platforms = append(platforms, pf)
	}
	sort.Strings(platforms)

	scores := map[string]float64{}
	var rejected []RejectedMeta
	var winnerID *int64

	for _, pf := range platforms {
		entries := byPlatform[pf]
		sort.Slice(entries, func(i, j int) bool { return entries[i].score > entries[j].score })
		best := entries[0]
		scores[strconv.FormatInt(best.id, 10)] = best.score

		if best.score < cfg.MinQualityFloor {
			// every candidate for this platform falls below the floor:
			// DedupConflict, winner left nil for this platform slot.
			for _, e := range entries {
				rejected = append(rejected, RejectedMeta{ProductID: e.id, Platform: pf, Score: e.score, Reason: "below_quality_floor"})
			}
			continue
		}

		winner := best.product
		winner.QualityScore = best.score
		winner.BatchID = batchID
		*winners = append(*winners, winner)
		w := best.id
		winnerID = &w

		for _, e := range entries[1:] {
			rejected = append(rejected, RejectedMeta{ProductID: e.id, Platform: pf, Score: e.score, Reason: "lower_quality_score"})
		}
	}

	if divergentFRN(group) {
		rejected = append(rejected, RejectedMeta{Reason: "frn_divergent_across_platforms"})
	}

	platformsJSON, _ := json.Marshal(platforms)
	scoresJSON, _ := json.Marshal(scores)
	rejectedJSON, _ := json.Marshal(rejected)

	return store.DedupAuditRow{
		BatchID:                      batchID,
		GroupID:                      uuid.NewString(),
		BusinessKey:                  businessKey,
		PlatformsInGroupJSON:         string(platformsJSON),
		QualityScoresJSON:            string(scoresJSON),
		WinnerProductID:              winnerID,
		RejectedProductsMetadataJSON: string(rejectedJSON),
	}
}

// divergentFRN reports whether a group of same-business-key candidates
// disagrees on regulator_id across platforms; it does not abort anything,
// only feeds a warning entry into the audit JSON.
func divergentFRN(group []candidate) bool {
	seen := map[string]bool{}
	for _, c := range group {
		if c.product.RegulatorID != nil && *c.product.RegulatorID != "" {
			seen[*c.product.RegulatorID] = true
		}
	}
	return len(seen) > 1
}
