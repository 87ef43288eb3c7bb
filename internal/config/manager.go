package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
)

// ConfigType enumerates the typed value kinds stored in the config table.
type ConfigType string

const (
	TypeString  ConfigType = "string"
	TypeNumber  ConfigType = "number"
	TypeBoolean ConfigType = "boolean"
	TypeJSON    ConfigType = "json"
)

// Row is one key/value/type triple from the config table.
type Row struct {
	Key   string
	Value string
	Type  ConfigType
}

// Store reads and writes the database-backed config table. It holds its own
// *sql.DB handle rather than depending on internal/store, so the config
// package stays a leaf dependency usable from store initialization itself.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) List(ctx context.Context) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT config_key, config_value, config_type FROM config`)
	if err != nil {
		return nil, fmt.Errorf("config: list: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Key, &r.Value, &r.Type); err != nil {
			return nil, fmt.Errorf("config: scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Set(ctx context.Context, key, value string, typ ConfigType) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (config_key, config_value, config_type)
		VALUES (?, ?, ?)
		ON CONFLICT(config_key) DO UPDATE SET config_value = excluded.config_value, config_type = excluded.config_type
	`, key, value, string(typ))
	if err != nil {
		return fmt.Errorf("config: set %s: %w", key, err)
	}
	return nil
}

// Manager caches a typed Config built from defaults/YAML/env overlaid with
// the database-backed config table, invalidating the cache only when the
// underlying row set has actually changed. This generalizes the refresh-on-
// version-change pattern used for the regulator lookup cache.
type Manager struct {
	store   *Store
	mu      sync.RWMutex
	base    *Config
	current *Config
	version string
}

func NewManager(store *Store, base *Config) *Manager {
	return &Manager{store: store, base: base}
}

// Get returns the cached effective config, refreshing it first if needed.
func (m *Manager) Get(ctx context.Context) (*Config, error) {
	if err := m.RefreshIfChanged(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, nil
}

// RefreshIfChanged recomputes the effective config only when the database
// row set's fingerprint differs from the last cached fingerprint.
func (m *Manager) RefreshIfChanged(ctx context.Context) error {
	rows, err := m.store.List(ctx)
	if err != nil {
		return err
	}
	fp := fingerprint(rows)

	m.mu.RLock()
	unchanged := m.current != nil && fp == m.version
	m.mu.RUnlock()
	if unchanged {
		return nil
	}

	effective := *m.base
	if err := applyRows(&effective, rows); err != nil {
		return fmt.Errorf("config: apply db overrides: %w", err)
	}

	m.mu.Lock()
	m.current = &effective
	m.version = fp
	m.mu.Unlock()
	return nil
}

func fingerprint(rows []Row) string {
	h := 0
	for _, r := range rows {
		for _, c := range r.Key + "=" + r.Value + ":" + string(r.Type) {
			h = h*31 + int(c)
		}
	}
	return strconv.Itoa(h)
}

// applyRows overlays dotted config_key rows (e.g. "ingestion.rate_threshold.easy_access")
// onto the typed Config struct, matching the keys enumerated in the external
// interface section of the spec.
func applyRows(c *Config, rows []Row) error {
	for _, r := range rows {
		if err := applyRow(c, r); err != nil {
			return err
		}
	}
	return nil
}

func applyRow(c *Config, r Row) error {
	switch r.Key {
	case "ingestion.rate_threshold.easy_access":
		return setFloat(&c.Ingestion.RateThreshold.EasyAccess, r.Value)
	case "ingestion.rate_threshold.notice":
		return setFloat(&c.Ingestion.RateThreshold.Notice, r.Value)
	case "ingestion.rate_threshold.fixed_term":
		return setFloat(&c.Ingestion.RateThreshold.FixedTerm, r.Value)
	case "matching.normalization_enabled":
		return setBool(&c.Matching.NormalizationEnabled, r.Value)
	case "matching.prefixes":
		return setStringSlice(&c.Matching.Prefixes, r.Value)
	case "matching.suffixes":
		return setStringSlice(&c.Matching.Suffixes, r.Value)
	case "matching.abbreviations":
		return setStringMap(&c.Matching.Abbreviations, r.Value)
	case "matching.enable_fuzzy":
		return setBool(&c.Matching.EnableFuzzy, r.Value)
	case "matching.fuzzy_threshold":
		return setFloat(&c.Matching.FuzzyThreshold, r.Value)
	case "matching.max_edit_distance":
		return setInt(&c.Matching.MaxEditDistance, r.Value)
	case "matching.enable_alias":
		return setBool(&c.Matching.EnableAlias, r.Value)
	case "matching.enable_research_queue":
		return setBool(&c.Matching.EnableResearchQueue, r.Value)
	case "matching.auto_flag_unmatched":
		return setBool(&c.Matching.AutoFlagUnmatched, r.Value)
	case "matching.research_queue_max_size":
		return setInt(&c.Matching.ResearchQueueMaxSize, r.Value)
	case "matching.confidence_threshold_high":
		return setFloat(&c.Matching.ConfidenceThresholdHigh, r.Value)
	case "matching.enable_audit_trail":
		return setBool(&c.Matching.EnableAuditTrail, r.Value)
	case "compliance.default_limit":
		return setFloat(&c.Compliance.DefaultLimit, r.Value)
	case "compliance.joint_multiplier":
		return setFloat(&c.Compliance.JointMultiplier, r.Value)
	case "compliance.tolerance_threshold":
		return setFloat(&c.Compliance.ToleranceThreshold, r.Value)
	case "compliance.default_rate_loss_tolerance":
		return setFloat(&c.Compliance.DefaultRateLossTolerance, r.Value)
	case "dedup.weight_frn":
		return setFloat(&c.Dedup.WeightFRN, r.Value)
	case "dedup.weight_completeness":
		return setFloat(&c.Dedup.WeightCompleteness, r.Value)
	case "dedup.weight_recency":
		return setFloat(&c.Dedup.WeightRecency, r.Value)
	case "dedup.weight_source_trust":
		return setFloat(&c.Dedup.WeightSourceTrust, r.Value)
	case "dedup.weight_features":
		return setFloat(&c.Dedup.WeightFeatures, r.Value)
	case "dedup.min_quality_floor":
		return setFloat(&c.Dedup.MinQualityFloor, r.Value)
	case "dedup.source_trust":
		var m map[string]float64
		if err := json.Unmarshal([]byte(r.Value), &m); err != nil {
			return fmt.Errorf("invalid json map %q: %w", r.Value, err)
		}
		c.Dedup.SourceTrust = m
	case "orchestrator.timeout_ms":
		return setInt(&c.Orchestrator.TimeoutMs, r.Value)
	case "orchestrator.worker_pool_size":
		return setInt(&c.Orchestrator.WorkerPoolSize, r.Value)
	case "orchestrator.max_retries":
		return setInt(&c.Orchestrator.MaxRetries, r.Value)
	}
	// Unknown keys are tolerated — forward-compatible with operator-added
	// config rows that a future release understands.
	return nil
}

func setFloat(dst *float64, raw string) error {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid float %q: %w", raw, err)
	}
	*dst = v
	return nil
}

func setInt(dst *int, raw string) error {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid int %q: %w", raw, err)
	}
	*dst = v
	return nil
}

func setBool(dst *bool, raw string) error {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid bool %q: %w", raw, err)
	}
	*dst = v
	return nil
}

func setStringSlice(dst *[]string, raw string) error {
	var v []string
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return fmt.Errorf("invalid json list %q: %w", raw, err)
	}
	*dst = v
	return nil
}

func setStringMap(dst *map[string]string, raw string) error {
	var v map[string]string
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return fmt.Errorf("invalid json map %q: %w", raw, err)
	}
	*dst = v
	return nil
}
