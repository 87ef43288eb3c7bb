// Package dedup implements stage E: grouping products that represent the
// same underlying offer across platforms, scoring candidates, and picking a
// winner per (business_key, platform) pair.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/ukcatalog/core/internal/store"
)

// rateBucketSize groups near-identical AER rates (e.g. 4.51% vs 4.50% quoted
// by two scrapers for the same underlying product) into one bucket so minor
// scrape-time rounding differences don't split an otherwise identical offer
// into two business keys.
const rateBucketSize = 0.05

// BusinessKey computes the platform-independent fingerprint of a product:
// a stable hash of (regulator_id or normalized bank name, account_type,
// term_months, notice_period_days, aer_rate bucket). Platform is
// deliberately excluded so the same product on different platforms
// produces the same key.
func BusinessKey(p store.Product) string {
	identity := p.BankName
	if p.RegulatorID != nil && *p.RegulatorID != "" {
		identity = *p.RegulatorID
	}

	term := -1
	if p.TermMonths != nil {
		term = *p.TermMonths
	}
	notice := -1
	if p.NoticePeriodDays != nil {
		notice = *p.NoticePeriodDays
	}
	bucket := math.Round(p.AERRate/rateBucketSize) * rateBucketSize

	raw := fmt.Sprintf("%s|%s|%d|%d|%.2f", identity, p.AccountType, term, notice, bucket)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:16])
}
