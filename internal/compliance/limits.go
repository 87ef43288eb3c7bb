package compliance

import (
	"github.com/ukcatalog/core/internal/config"
	"github.com/ukcatalog/core/internal/store"
)

// EffectiveLimit computes the depositor-protection ceiling for an
// institution given its preferences, default statutory limit, and whether
// it holds any joint account. A personal_limit override takes precedence
// over the statutory default; a joint account present anywhere at the
// institution multiplies the applicable limit — this is the "maximum
// applicable effective limit" policy pinned for mixed joint/single
// portfolios, since the multiplier is always >= 1.
func EffectiveLimit(prefs *store.InstitutionPrefs, hasJoint bool, cfg config.ComplianceConfig) (float64, store.ProtectionType) {
	base := cfg.DefaultLimit
	protection := store.ProtectionStandard

	if prefs != nil {
		if prefs.PersonalLimit != nil {
			base = *prefs.PersonalLimit
			protection = store.ProtectionPersonalOverride
		}
		if prefs.ProtectionType == store.ProtectionGovernment {
			protection = store.ProtectionGovernment
		}
	}

	if hasJoint {
		base *= cfg.JointMultiplier
	}
	return base, protection
}
