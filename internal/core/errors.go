// Package core holds types and errors shared across the ingestion and
// compliance packages — the pieces that would otherwise create import
// cycles if they lived inside the stage packages that use them.
package core

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed taxonomy of failures the orchestrator surfaces,
// per the pipeline's error handling design. Callers switch on Kind rather
// than matching error strings.
type ErrorKind string

const (
	// EnvelopeInvalid means the file header is missing source/method/products.
	// Fatal to the batch; no raw writes happen.
	EnvelopeInvalid ErrorKind = "envelope_invalid"
	// RecordInvalid is per-record and never aborts the batch.
	RecordInvalid ErrorKind = "record_invalid"
	// FilterRejected is per-record and never aborts the batch.
	FilterRejected ErrorKind = "filter_rejected"
	// MatchingUnresolved leaves regulator_id null, optionally queued.
	MatchingUnresolved ErrorKind = "matching_unresolved"
	// DedupConflict means every candidate in a group fell below the quality floor.
	DedupConflict ErrorKind = "dedup_conflict"
	// ConfigInvalid is fatal before any batch runs.
	ConfigInvalid ErrorKind = "config_invalid"
	// StoreUnavailable is fatal, retried with backoff, then surfaced.
	StoreUnavailable ErrorKind = "store_unavailable"
	// BatchCancelled is user- or timeout-initiated.
	BatchCancelled ErrorKind = "batch_cancelled"
)

// PipelineError wraps an underlying error with its taxonomy kind and, for
// per-record errors, the ordinal of the offending record.
type PipelineError struct {
	Kind    ErrorKind
	Stage   string
	Ordinal int // -1 when not record-scoped
	Detail  string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Ordinal >= 0 {
		return fmt.Sprintf("%s[%s record %d]: %s", e.Stage, e.Kind, e.Ordinal, e.Detail)
	}
	return fmt.Sprintf("%s[%s]: %s", e.Stage, e.Kind, e.Detail)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewBatchError builds a whole-batch (non record-scoped) PipelineError.
func NewBatchError(stage string, kind ErrorKind, detail string, err error) *PipelineError {
	return &PipelineError{Stage: stage, Kind: kind, Ordinal: -1, Detail: detail, Err: err}
}

// NewRecordError builds a per-record PipelineError.
func NewRecordError(stage string, kind ErrorKind, ordinal int, detail string, err error) *PipelineError {
	return &PipelineError{Stage: stage, Kind: kind, Ordinal: ordinal, Detail: detail, Err: err}
}

// KindOf extracts the ErrorKind from err, if it (or something it wraps) is a
// *PipelineError.
func KindOf(err error) (ErrorKind, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}
