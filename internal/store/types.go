package store

import "time"

// AccountType is the closed enum of savings account shapes.
type AccountType string

const (
	AccountEasyAccess AccountType = "easy_access"
	AccountNotice     AccountType = "notice"
	AccountFixedTerm  AccountType = "fixed_term"
)

// Product is the in-memory representation shared by products_raw and
// products; JSON/NULL conversion happens only at the storage boundary so the
// rest of the codebase works with a plain typed struct.
type Product struct {
	ID                int64
	Source            string
	Method            string
	Platform          string
	RawPlatform       string
	BankName          string
	AccountType       AccountType
	AERRate           float64
	GrossRate         *float64
	TermMonths        *int
	NoticePeriodDays  *int
	MinDeposit        *float64
	MaxDeposit        *float64
	FSCSProtected     bool
	SpecialFeatures   *string
	ScrapeDate        string
	RegulatorID       *string
	ConfidenceScore   *float64
	BusinessKey       string
	QualityScore      float64
	BatchID           string
}

// BatchStatus is the closed enum for batch_master.status.
type BatchStatus string

const (
	BatchRunning          BatchStatus = "running"
	BatchCommitted        BatchStatus = "committed"
	BatchAlreadyCommitted BatchStatus = "already_committed"
	BatchCancelled        BatchStatus = "cancelled"
	BatchFailed           BatchStatus = "failed"
)

// Batch is one row of batch_master.
type Batch struct {
	BatchID    string
	StartedAt  time.Time
	FinishedAt *time.Time
	FilePath   string
	Source     string
	Method     string
	Status     BatchStatus
}
