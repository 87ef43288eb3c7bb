package ingest

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/ukcatalog/core/internal/store"
)

// ValidationResult is the Stage A outcome for one ordinal record.
type ValidationResult struct {
	Ordinal              int
	Valid                bool
	ReasonCode           string
	ValidationDetailsJSON string
	Candidate            store.Product // populated only when Valid
}

// ValidateRecords runs Stage A over every record in the envelope.
func ValidateRecords(env *Envelope) []ValidationResult {
	out := make([]ValidationResult, 0, len(env.Products))
	for i, p := range env.Products {
		out = append(out, validateOne(i, env, p))
	}
	return out
}

func validateOne(ordinal int, env *Envelope, p feedProduct) ValidationResult {
	reason := ""
	switch {
	case p.BankName == "":
		reason = "bank_name_empty"
	case p.Platform == "":
		reason = "platform_empty"
	case p.AccountType == "":
		reason = "account_type_missing"
	case p.AERRate == nil || *p.AERRate <= 0:
		reason = "aer_rate_invalid"
	case p.MinDeposit != nil && *p.MinDeposit < 0:
		reason = "min_deposit_negative"
	case p.MinDeposit != nil && p.MaxDeposit != nil && *p.MaxDeposit <= *p.MinDeposit:
		reason = "max_deposit_not_greater_than_min"
	}

	details := map[string]any{"reason": reason}
	detailsJSON, _ := json.Marshal(details)

	if reason != "" {
		return ValidationResult{
			Ordinal:               ordinal,
			Valid:                 false,
			ReasonCode:            reason,
			ValidationDetailsJSON: string(detailsJSON),
		}
	}

	accountType := canonicalAccountType(p.AccountType)

	return ValidationResult{
		Ordinal:               ordinal,
		Valid:                 true,
		ValidationDetailsJSON: string(detailsJSON),
		Candidate: store.Product{
			Source:           env.Source,
			Method:           env.Method,
			RawPlatform:      p.Platform,
			Platform:         p.Platform, // canonicalized in Stage B
			BankName:         p.BankName,
			AccountType:      accountType,
			AERRate:          *p.AERRate,
			GrossRate:        p.GrossRate,
			TermMonths:       p.TermMonths,
			NoticePeriodDays: p.NoticePeriodDays,
			MinDeposit:       p.MinDeposit,
			MaxDeposit:       p.MaxDeposit,
			FSCSProtected:    p.FSCSProtected,
			SpecialFeatures:  p.SpecialFeatures,
			ScrapeDate:       canonicalScrapeDate(p.ScrapedAt),
		},
	}
}

// canonicalAccountType maps loose input strings onto the closed enum; an
// unrecognized value is left as-is (stage A already required it non-empty,
// and an unmapped value will simply fail the account_type CHECK constraint
// at the storage boundary, surfacing as a store error rather than silently
// coercing to a wrong bucket).
func canonicalAccountType(raw string) store.AccountType {
	switch normalizeLoose(raw) {
	case "easyaccess", "easy_access", "easy access":
		return store.AccountEasyAccess
	case "notice":
		return store.AccountNotice
	case "fixedterm", "fixed_term", "fixed term":
		return store.AccountFixedTerm
	default:
		return store.AccountType(raw)
	}
}

func normalizeLoose(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		out = append(out, r)
	}
	return string(out)
}

// scrapeDateLayouts are the free-form date formats feed files are observed
// to carry, tried in order until one parses.
var scrapeDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2 January 2006",
	"January 2, 2006",
}

// canonicalScrapeDate accepts common date-string variants and canonicalizes
// them to ISO-8601 (YYYY-MM-DD) on the way in, per spec; unparseable input is
// passed through unchanged so it isn't silently dropped, and surfaces later
// if it fails downstream consumers' expectations.
func canonicalScrapeDate(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	for _, layout := range scrapeDateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return raw
}
