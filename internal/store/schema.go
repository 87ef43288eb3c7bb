package store

// schema is applied at store-open time with CREATE TABLE IF NOT EXISTS,
// no migration framework, following the teacher's ad hoc approach to schema
// management.
const schema = `
CREATE TABLE IF NOT EXISTS batch_master (
	batch_id    TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME,
	file_path   TEXT NOT NULL,
	source      TEXT NOT NULL,
	method      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running'
);
CREATE INDEX IF NOT EXISTS idx_batch_master_source_method ON batch_master(source, method);

CREATE TABLE IF NOT EXISTS products_raw (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	source              TEXT NOT NULL,
	method              TEXT NOT NULL,
	platform            TEXT NOT NULL,
	raw_platform        TEXT NOT NULL,
	bank_name           TEXT NOT NULL,
	account_type        TEXT NOT NULL CHECK (account_type IN ('easy_access', 'notice', 'fixed_term')),
	aer_rate            REAL NOT NULL CHECK (aer_rate > 0),
	gross_rate          REAL,
	term_months         INTEGER,
	notice_period_days  INTEGER,
	min_deposit         REAL,
	max_deposit         REAL,
	fscs_protected      INTEGER NOT NULL DEFAULT 0,
	special_features    TEXT,
	scrape_date         TEXT NOT NULL,
	regulator_id        TEXT,
	confidence_score    REAL,
	business_key        TEXT,
	batch_id            TEXT NOT NULL REFERENCES batch_master(batch_id)
);
CREATE INDEX IF NOT EXISTS idx_products_raw_source_method ON products_raw(source, method);
CREATE INDEX IF NOT EXISTS idx_products_raw_business_key ON products_raw(business_key);

CREATE TABLE IF NOT EXISTS products (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	source              TEXT NOT NULL,
	method              TEXT NOT NULL,
	platform            TEXT NOT NULL,
	raw_platform        TEXT NOT NULL,
	bank_name           TEXT NOT NULL,
	account_type        TEXT NOT NULL CHECK (account_type IN ('easy_access', 'notice', 'fixed_term')),
	aer_rate            REAL NOT NULL CHECK (aer_rate > 0),
	gross_rate          REAL,
	term_months         INTEGER,
	notice_period_days  INTEGER,
	min_deposit         REAL,
	max_deposit         REAL,
	fscs_protected      INTEGER NOT NULL DEFAULT 0,
	special_features    TEXT,
	scrape_date         TEXT NOT NULL,
	regulator_id        TEXT,
	confidence_score    REAL,
	business_key        TEXT NOT NULL,
	quality_score       REAL NOT NULL,
	batch_id            TEXT NOT NULL REFERENCES batch_master(batch_id),
	UNIQUE(business_key, platform)
);
CREATE INDEX IF NOT EXISTS idx_products_regulator_id ON products(regulator_id);

CREATE TABLE IF NOT EXISTS regulator_lookup (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	search_name      TEXT NOT NULL,
	regulator_id     TEXT NOT NULL,
	canonical_name   TEXT NOT NULL,
	match_type       TEXT NOT NULL CHECK (match_type IN ('manual_override', 'direct_match', 'name_variation', 'shared_brand', 'alias')),
	confidence_score REAL NOT NULL DEFAULT 1.0,
	match_rank       INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_regulator_lookup_search_name ON regulator_lookup(search_name);

CREATE TABLE IF NOT EXISTS institution_prefs (
	regulator_id                       TEXT PRIMARY KEY,
	personal_limit                     REAL,
	easy_access_required_above_default INTEGER NOT NULL DEFAULT 0,
	trust_level                        TEXT,
	risk_notes                         TEXT,
	protection_type                    TEXT NOT NULL DEFAULT 'standard' CHECK (protection_type IN ('standard', 'personal_override', 'government_protected'))
);

CREATE TABLE IF NOT EXISTS research_queue (
	name             TEXT PRIMARY KEY,
	first_seen       DATETIME NOT NULL,
	last_seen        DATETIME NOT NULL,
	occurrence_count INTEGER NOT NULL DEFAULT 1,
	status           TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'resolved', 'dismissed'))
);

CREATE TABLE IF NOT EXISTS deposits (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	regulator_id    TEXT NOT NULL,
	bank            TEXT NOT NULL,
	balance         REAL NOT NULL,
	sub_type        TEXT,
	is_joint_account INTEGER NOT NULL DEFAULT 0,
	is_active       INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_deposits_regulator_id ON deposits(regulator_id);

CREATE TABLE IF NOT EXISTS config (
	config_key   TEXT PRIMARY KEY,
	config_value TEXT NOT NULL,
	config_type  TEXT NOT NULL CHECK (config_type IN ('string', 'number', 'boolean', 'json'))
);

CREATE TABLE IF NOT EXISTS ingestion_audit (
	id                              INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id                        TEXT NOT NULL REFERENCES batch_master(batch_id),
	record_ordinal                  INTEGER NOT NULL,
	validation_status               TEXT NOT NULL CHECK (validation_status IN ('valid', 'invalid')),
	validation_details_json         TEXT NOT NULL DEFAULT '{}',
	filter_outcome                  TEXT,
	platform_source_metadata_json   TEXT NOT NULL DEFAULT '{}',
	UNIQUE(batch_id, record_ordinal)
);

CREATE TABLE IF NOT EXISTS matching_audit (
	id                       INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id                 TEXT NOT NULL REFERENCES batch_master(batch_id),
	product_id               INTEGER,
	original_bank_name       TEXT NOT NULL,
	normalized_bank_name     TEXT NOT NULL,
	normalization_steps_json TEXT NOT NULL DEFAULT '[]',
	database_query_method    TEXT NOT NULL CHECK (database_query_method IN ('exact_match', 'fuzzy', 'alias', 'shared_brand', 'unknown')),
	match_type               TEXT,
	final_regulator_id       TEXT,
	final_confidence         REAL NOT NULL DEFAULT 0,
	decision_routing         TEXT NOT NULL CHECK (decision_routing IN ('accepted', 'needs_review')),
	manual_override_timestamp DATETIME
);
CREATE INDEX IF NOT EXISTS idx_matching_audit_batch_id ON matching_audit(batch_id);

CREATE TABLE IF NOT EXISTS dedup_audit (
	id                              INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id                        TEXT NOT NULL REFERENCES batch_master(batch_id),
	group_id                        TEXT NOT NULL,
	business_key                    TEXT NOT NULL,
	platforms_in_group_json         TEXT NOT NULL DEFAULT '[]',
	quality_scores_json             TEXT NOT NULL DEFAULT '{}',
	winner_product_id               INTEGER,
	rejected_products_metadata_json TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_dedup_audit_batch_id ON dedup_audit(batch_id);
`
