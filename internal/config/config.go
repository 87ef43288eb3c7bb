package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"
)

// =============================================================================
// UK Catalog Core - Configuration with Environment Overrides
// =============================================================================

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Store       StoreConfig       `yaml:"store"`
	Ingestion   IngestionConfig   `yaml:"ingestion"`
	Matching    MatchingConfig    `yaml:"matching"`
	Compliance  ComplianceConfig  `yaml:"compliance"`
	Dedup       DedupConfig       `yaml:"dedup"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
}

type ServerConfig struct {
	Port             string   `yaml:"port"`
	Env              string   `yaml:"env"`
	ReadTimeoutSec   int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec  int      `yaml:"write_timeout_sec"`
	IdleTimeoutSec   int      `yaml:"idle_timeout_sec"`
	ShutdownTimeout  int      `yaml:"shutdown_timeout_sec"`
	CORSAllowOrigins []string `yaml:"cors_allow_origins"`
}

// StoreConfig points at the local sqlite database file and its directory.
type StoreConfig struct {
	DataDir string `yaml:"data_dir"`
	DBFile  string `yaml:"db_file"`
}

type IngestionConfig struct {
	RateThreshold RateThresholdConfig `yaml:"rate_threshold"`
}

type RateThresholdConfig struct {
	EasyAccess float64 `yaml:"easy_access"`
	Notice     float64 `yaml:"notice"`
	FixedTerm  float64 `yaml:"fixed_term"`
}

type MatchingConfig struct {
	NormalizationEnabled    bool              `yaml:"normalization_enabled"`
	Prefixes                []string          `yaml:"prefixes"`
	Suffixes                []string          `yaml:"suffixes"`
	Abbreviations           map[string]string `yaml:"abbreviations"`
	EnableFuzzy             bool              `yaml:"enable_fuzzy"`
	FuzzyThreshold          float64           `yaml:"fuzzy_threshold"`
	MaxEditDistance         int               `yaml:"max_edit_distance"`
	EnableAlias             bool              `yaml:"enable_alias"`
	EnableResearchQueue     bool              `yaml:"enable_research_queue"`
	AutoFlagUnmatched       bool              `yaml:"auto_flag_unmatched"`
	ResearchQueueMaxSize    int               `yaml:"research_queue_max_size"`
	ConfidenceThresholdHigh float64           `yaml:"confidence_threshold_high"`
	EnableAuditTrail        bool              `yaml:"enable_audit_trail"`
}

type ComplianceConfig struct {
	DefaultLimit             float64 `yaml:"default_limit"`
	JointMultiplier          float64 `yaml:"joint_multiplier"`
	ToleranceThreshold       float64 `yaml:"tolerance_threshold"`
	DefaultRateLossTolerance float64 `yaml:"default_rate_loss_tolerance"`
}

type DedupConfig struct {
	WeightFRN          float64            `yaml:"weight_frn"`
	WeightCompleteness float64            `yaml:"weight_completeness"`
	WeightRecency      float64            `yaml:"weight_recency"`
	WeightSourceTrust  float64            `yaml:"weight_source_trust"`
	WeightFeatures     float64            `yaml:"weight_features"`
	MinQualityFloor    float64            `yaml:"min_quality_floor"`
	SourceTrust        map[string]float64 `yaml:"source_trust"`
}

type OrchestratorConfig struct {
	TimeoutMs      int `yaml:"timeout_ms"`
	WorkerPoolSize int `yaml:"worker_pool_size"`
	MaxRetries     int `yaml:"max_retries"`
}

// =============================================================================
// Singleton Pattern with Environment Overrides
// =============================================================================

var (
	instance *Config
	once     sync.Once
)

// Get returns the singleton config instance, loaded once from CONFIG_PATH.
func Get() *Config {
	once.Do(func() {
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load config file, using defaults", "error", err)
		}
		if cfg == nil {
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		instance = cfg
	})
	return instance
}

// LoadConfig loads config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Env = getEnv("CATALOG_ENV", c.Server.Env)
	if v := getEnvInt("SERVER_READ_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ReadTimeoutSec = v
	}
	if v := getEnvInt("SERVER_WRITE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.WriteTimeoutSec = v
	}
	if v := getEnvInt("SERVER_IDLE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.IdleTimeoutSec = v
	}
	if v := getEnvInt("SERVER_SHUTDOWN_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ShutdownTimeout = v
	}
	if origins := getEnv("CORS_ALLOW_ORIGINS", ""); origins != "" {
		c.Server.CORSAllowOrigins = splitCSV(origins)
	}

	c.Store.DataDir = getEnv("CATALOG_DATA_DIR", c.Store.DataDir)
	c.Store.DBFile = getEnv("CATALOG_DB_FILE", c.Store.DBFile)

	if v := getEnvFloat("INGESTION_RATE_THRESHOLD_EASY_ACCESS", 0); v > 0 {
		c.Ingestion.RateThreshold.EasyAccess = v
	}
	if v := getEnvFloat("INGESTION_RATE_THRESHOLD_NOTICE", 0); v > 0 {
		c.Ingestion.RateThreshold.Notice = v
	}
	if v := getEnvFloat("INGESTION_RATE_THRESHOLD_FIXED_TERM", 0); v > 0 {
		c.Ingestion.RateThreshold.FixedTerm = v
	}

	if v := getEnvFloat("MATCHING_FUZZY_THRESHOLD", 0); v > 0 {
		c.Matching.FuzzyThreshold = v
	}
	if v := getEnvInt("MATCHING_MAX_EDIT_DISTANCE", 0); v > 0 {
		c.Matching.MaxEditDistance = v
	}
	if v := getEnvFloat("MATCHING_CONFIDENCE_THRESHOLD_HIGH", 0); v > 0 {
		c.Matching.ConfidenceThresholdHigh = v
	}
	if v := getEnvInt("MATCHING_RESEARCH_QUEUE_MAX_SIZE", 0); v > 0 {
		c.Matching.ResearchQueueMaxSize = v
	}

	if v := getEnvFloat("COMPLIANCE_DEFAULT_LIMIT", 0); v > 0 {
		c.Compliance.DefaultLimit = v
	}
	if v := getEnvFloat("COMPLIANCE_JOINT_MULTIPLIER", 0); v > 0 {
		c.Compliance.JointMultiplier = v
	}
	if v := getEnvFloat("COMPLIANCE_TOLERANCE_THRESHOLD", 0); v > 0 {
		c.Compliance.ToleranceThreshold = v
	}
	if v := getEnvFloat("COMPLIANCE_DEFAULT_RATE_LOSS_TOLERANCE", 0); v > 0 {
		c.Compliance.DefaultRateLossTolerance = v
	}

	if v := getEnvInt("ORCHESTRATOR_TIMEOUT_MS", 0); v > 0 {
		c.Orchestrator.TimeoutMs = v
	}
	if v := getEnvInt("ORCHESTRATOR_WORKER_POOL_SIZE", 0); v > 0 {
		c.Orchestrator.WorkerPoolSize = v
	}

	c.applyDefaults()
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ReadTimeoutSec == 0 {
		c.Server.ReadTimeoutSec = 15
	}
	if c.Server.WriteTimeoutSec == 0 {
		c.Server.WriteTimeoutSec = 15
	}
	if c.Server.IdleTimeoutSec == 0 {
		c.Server.IdleTimeoutSec = 60
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30
	}
	if len(c.Server.CORSAllowOrigins) == 0 {
		c.Server.CORSAllowOrigins = []string{"*"}
	}
	if c.Store.DataDir == "" {
		c.Store.DataDir = "./data"
	}
	if c.Store.DBFile == "" {
		c.Store.DBFile = "catalog.db"
	}

	if c.Ingestion.RateThreshold.EasyAccess == 0 {
		c.Ingestion.RateThreshold.EasyAccess = 1.5
	}
	if c.Ingestion.RateThreshold.Notice == 0 {
		c.Ingestion.RateThreshold.Notice = 1.8
	}
	if c.Ingestion.RateThreshold.FixedTerm == 0 {
		c.Ingestion.RateThreshold.FixedTerm = 2.0
	}

	if len(c.Matching.Prefixes) == 0 {
		c.Matching.Prefixes = []string{"THE "}
	}
	if len(c.Matching.Suffixes) == 0 {
		c.Matching.Suffixes = []string{" PLC", " LIMITED", " LTD", " UK"}
	}
	if c.Matching.Abbreviations == nil {
		c.Matching.Abbreviations = map[string]string{"BS": "BUILDING SOCIETY"}
	}
	if c.Matching.FuzzyThreshold == 0 {
		c.Matching.FuzzyThreshold = 0.85
	}
	if c.Matching.MaxEditDistance == 0 {
		c.Matching.MaxEditDistance = 2
	}
	if c.Matching.ResearchQueueMaxSize == 0 {
		c.Matching.ResearchQueueMaxSize = 500
	}
	if c.Matching.ConfidenceThresholdHigh == 0 {
		c.Matching.ConfidenceThresholdHigh = 0.7
	}

	if c.Compliance.DefaultLimit == 0 {
		c.Compliance.DefaultLimit = 85000
	}
	if c.Compliance.JointMultiplier == 0 {
		c.Compliance.JointMultiplier = 2
	}
	if c.Compliance.ToleranceThreshold == 0 {
		c.Compliance.ToleranceThreshold = 500
	}
	if c.Compliance.DefaultRateLossTolerance == 0 {
		c.Compliance.DefaultRateLossTolerance = 0.5
	}

	if c.Dedup.WeightFRN == 0 {
		c.Dedup.WeightFRN = 0.4
	}
	if c.Dedup.WeightCompleteness == 0 {
		c.Dedup.WeightCompleteness = 0.2
	}
	if c.Dedup.WeightRecency == 0 {
		c.Dedup.WeightRecency = 0.2
	}
	if c.Dedup.WeightSourceTrust == 0 {
		c.Dedup.WeightSourceTrust = 0.15
	}
	if c.Dedup.WeightFeatures == 0 {
		c.Dedup.WeightFeatures = 0.05
	}
	if c.Dedup.MinQualityFloor == 0 {
		c.Dedup.MinQualityFloor = 0.1
	}
	if c.Dedup.SourceTrust == nil {
		c.Dedup.SourceTrust = map[string]float64{}
	}

	if c.Orchestrator.TimeoutMs == 0 {
		c.Orchestrator.TimeoutMs = 120_000
	}
	if c.Orchestrator.WorkerPoolSize == 0 {
		c.Orchestrator.WorkerPoolSize = 4
	}
	if c.Orchestrator.MaxRetries == 0 {
		c.Orchestrator.MaxRetries = 3
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitCSV(s string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// =============================================================================
// Convenience Methods
// =============================================================================

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func (c *Config) GetPort() string {
	if c.Server.Port == "" {
		return "8080"
	}
	return c.Server.Port
}
