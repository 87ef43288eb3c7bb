// Package compliance is the read-only depositor-protection engine: it
// aggregates exposures, applies effective limits, classifies breach
// severity, and can synthesize a diversification plan.
package compliance

import "github.com/ukcatalog/core/internal/store"

// Status is the closed classification of an institution's exposure.
type Status string

const (
	StatusCompliant Status = "compliant"
	StatusNearLimit Status = "near_limit"
	StatusTolerance Status = "tolerance"
	StatusViolation Status = "violation"
)

// Severity classifies how far a violation exceeds its effective limit.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

// Exposure is one institution's aggregated position.
type Exposure struct {
	RegulatorID     string
	Bank            string
	Aggregate       float64
	HasJoint        bool
	EffectiveLimit  float64
	ProtectionType  store.ProtectionType
	Status          Status
	ExcessAmount    float64
	Severity        Severity // empty unless Status == violation
}

// Allocation is one candidate product a breach's excess can be diversified into.
type Allocation struct {
	TargetProductID int64
	Rate            float64
	RateLoss        float64
	Amount          float64
}

// DiversificationPlan is the diversification outcome for one breaching institution.
type DiversificationPlan struct {
	SourceRegulatorID string
	Excess            float64
	Allocations       []Allocation
	Notes             []string
}

// Report is the top-level read-only compliance output; warnings never
// abort the report, they only annotate it.
type Report struct {
	Exposures []Exposure
	Warnings  []string
}
