package compliance

import "github.com/ukcatalog/core/internal/config"

// Classify applies the status/severity rules to one institution's
// aggregate exposure against its effective limit.
func Classify(aggregate, effectiveLimit float64, cfg config.ComplianceConfig) (Status, float64, Severity) {
	tolerance := cfg.ToleranceThreshold

	switch {
	case aggregate <= 0.8*effectiveLimit:
		return StatusCompliant, 0, ""
	case aggregate <= effectiveLimit:
		return StatusNearLimit, 0, ""
	case aggregate <= effectiveLimit+tolerance:
		return StatusTolerance, 0, ""
	default:
		excess := aggregate - (effectiveLimit + tolerance)
		if excess < 0 {
			excess = 0
		}
		return StatusViolation, excess, severityFor(excess, effectiveLimit)
	}
}

func severityFor(excess, effectiveLimit float64) Severity {
	if effectiveLimit <= 0 {
		return SeverityCritical
	}
	ratio := excess / effectiveLimit
	switch {
	case ratio >= 0.5:
		return SeverityCritical
	case ratio >= 0.1:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}
