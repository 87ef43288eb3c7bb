package compliance

import (
	"testing"

	"github.com/ukcatalog/core/internal/config"
	"github.com/ukcatalog/core/internal/store"
)

func testCfg() config.ComplianceConfig {
	return config.ComplianceConfig{
		DefaultLimit:             85000,
		JointMultiplier:          2,
		ToleranceThreshold:       500,
		DefaultRateLossTolerance: 0.5,
	}
}

func TestJointAccountDoublingCompliant(t *testing.T) {
	cfg := testCfg()
	limit, _ := EffectiveLimit(nil, true, cfg)
	if limit != 170000 {
		t.Fatalf("effective limit = %v, want 170000", limit)
	}

	status, excess, _ := Classify(120000, limit, cfg)
	if status != StatusCompliant {
		t.Errorf("status = %s, want compliant", status)
	}
	if excess != 0 {
		t.Errorf("excess = %v, want 0", excess)
	}
}

func TestJointAccountDoublingViolation(t *testing.T) {
	cfg := testCfg()
	limit, _ := EffectiveLimit(nil, true, cfg)

	status, excess, severity := Classify(180000, limit, cfg)
	if status != StatusViolation {
		t.Fatalf("status = %s, want violation", status)
	}
	if excess != 9500 {
		t.Errorf("excess = %v, want 9500", excess)
	}
	if severity != SeverityMedium {
		t.Errorf("severity = %s, want medium", severity)
	}
}

func TestToleranceBoundary(t *testing.T) {
	cfg := testCfg()
	effective := 85000.0

	status, _, _ := Classify(effective+cfg.ToleranceThreshold, effective, cfg)
	if status != StatusTolerance {
		t.Errorf("status at exact tolerance boundary = %s, want tolerance", status)
	}

	status2, _, _ := Classify(effective+cfg.ToleranceThreshold+0.01, effective, cfg)
	if status2 != StatusViolation {
		t.Errorf("status just past tolerance boundary = %s, want violation", status2)
	}
}

func TestPersonalLimitOverride(t *testing.T) {
	cfg := testCfg()
	personal := 250000.0
	prefs := &store.InstitutionPrefs{PersonalLimit: &personal}

	limit, protection := EffectiveLimit(prefs, false, cfg)
	if limit != personal {
		t.Errorf("limit = %v, want personal override %v", limit, personal)
	}
	if protection != store.ProtectionPersonalOverride {
		t.Errorf("protection = %s, want personal_override", protection)
	}

	limit2, _ := EffectiveLimit(nil, false, cfg)
	if limit2 != cfg.DefaultLimit {
		t.Errorf("limit without prefs = %v, want default %v", limit2, cfg.DefaultLimit)
	}
}
