// Package orchestrator drives one batch through stages A-F: ingest,
// normalize/filter, accumulate, match, dedup, commit. It owns batch
// lifecycle (idempotent re-run detection, cancellation, bounded retry on
// store errors) and publishes progress events as each stage completes.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ukcatalog/core/internal/commit"
	"github.com/ukcatalog/core/internal/config"
	"github.com/ukcatalog/core/internal/core"
	"github.com/ukcatalog/core/internal/dedup"
	"github.com/ukcatalog/core/internal/events"
	"github.com/ukcatalog/core/internal/ingest"
	"github.com/ukcatalog/core/internal/matcher"
	"github.com/ukcatalog/core/internal/monitoring"
	"github.com/ukcatalog/core/internal/store"
	"github.com/ukcatalog/core/internal/workerpool"
)

// Stage identifies one of the six pipeline stages, used both for StopAfter
// control and for progress events.
type Stage string

const (
	StageIngest    Stage = "ingest"
	StageFilter    Stage = "filter"
	StageAccumulate Stage = "accumulate"
	StageMatch     Stage = "match"
	StageDedup     Stage = "dedup"
	StageCommit    Stage = "commit"
)

var stageOrder = []Stage{StageIngest, StageFilter, StageAccumulate, StageMatch, StageDedup, StageCommit}

// RunParams configures one orchestrator run.
type RunParams struct {
	FilePath  string
	StopAfter Stage // empty means run through StageCommit
}

// RunResult summarizes what happened for the caller (HTTP handler, CLI).
type RunResult struct {
	BatchID        string
	Status         store.BatchStatus
	RecordsRead    int
	RecordsValid   int
	RecordsPassed  int
	RecordsMatched int
	Winners        int
	ResearchQueued int
	StoppedAfter   Stage
}

// Orchestrator wires store, config, matcher cache, and event bus together
// to drive batch runs.
type Orchestrator struct {
	st         *store.Store
	cache      *matcher.Cache
	tracker    *progressTracker
	workers    int
	maxRetries int
	metrics    *monitoring.Metrics
}

func New(st *store.Store, cache *matcher.Cache, bus events.EventEmitter, cfg config.OrchestratorConfig) *Orchestrator {
	workers := cfg.WorkerPoolSize
	if workers < 1 {
		workers = 1
	}
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}
	return &Orchestrator{st: st, cache: cache, tracker: newProgressTracker(bus), workers: workers, maxRetries: retries}
}

// SetMetrics attaches a Prometheus metrics sink. Optional: every recording
// call is nil-checked, so an orchestrator built without one just skips them.
func (o *Orchestrator) SetMetrics(m *monitoring.Metrics) {
	o.metrics = m
}

// deterministicBatchID derives a stable batch id from the envelope's source,
// method, and file path so re-running the same feed file produces the same
// batch id and can be recognized as already committed.
func deterministicBatchID(source, method, filePath string) string {
	sum := sha256.Sum256([]byte(source + "|" + method + "|" + filePath))
	return "batch_" + hex.EncodeToString(sum[:8])
}

// Run drives one batch through stages A-F (or fewer, per StopAfter),
// publishing progress events after each stage. A deterministic re-run of an
// already-committed batch short-circuits without reprocessing.
func (o *Orchestrator) Run(ctx context.Context, cfg *config.Config, params RunParams) (*RunResult, error) {
	env, err := ingest.ReadEnvelope(params.FilePath)
	if err != nil {
		return nil, err
	}

	batchID := deterministicBatchID(env.Source, env.Method, params.FilePath)

	if existing, err := o.st.FindCommittedBatch(ctx, batchID); err != nil {
		return nil, core.NewBatchError("orchestrator", core.StoreUnavailable, "idempotency check failed", err)
	} else if existing != nil {
		o.tracker.update(Progress{BatchID: batchID, Stage: StageCommit, Percent: 100, Message: "batch already committed, skipping", Status: ProgressCompleted})
		return &RunResult{BatchID: batchID, Status: store.BatchAlreadyCommitted}, nil
	}

	if err := o.st.CreateBatch(ctx, store.Batch{
		BatchID: batchID, StartedAt: time.Now(), FilePath: params.FilePath,
		Source: env.Source, Method: env.Method, Status: store.BatchRunning,
	}); err != nil {
		return nil, core.NewBatchError("orchestrator", core.StoreUnavailable, "create batch row failed", err)
	}

	result := &RunResult{BatchID: batchID, Status: store.BatchRunning}

	started := time.Now()
	if err := o.runStages(ctx, cfg, env, batchID, params.StopAfter, result); err != nil {
		o.withRetry(ctx, func() error {
			return o.st.FinishBatch(context.Background(), batchID, store.BatchFailed, time.Now())
		})
		o.tracker.update(Progress{BatchID: batchID, Percent: 0, Message: err.Error(), Status: ProgressFailed})
		if o.metrics != nil {
			o.metrics.RecordStage(string(params.StopAfter), "error")
		}
		return result, err
	}
	if o.metrics != nil {
		o.metrics.RecordBatch(env.Source, env.Method, time.Since(started).Seconds())
	}

	return result, nil
}

func (o *Orchestrator) runStages(ctx context.Context, cfg *config.Config, env *ingest.Envelope, batchID string, stopAfter Stage, result *RunResult) error {
	select {
	case <-ctx.Done():
		return core.NewBatchError("orchestrator", core.BatchCancelled, "context cancelled before start", ctx.Err())
	default:
	}

	// Stage A: validate every record. Validation is cheap and order-
	// sensitive (ordinal is the record's position in the feed file), so it
	// runs directly rather than through the worker pool.
	validations := ingest.ValidateRecords(env)
	result.RecordsRead = len(env.Products)

	var ingestionAudits []store.IngestionAuditRow
	var candidates []store.Product
	for _, v := range validations {
		status := "valid"
		var filterOutcome *string
		platformSourceMetadataJSON := "{}"
		if o.metrics != nil {
			o.metrics.RecordIngested(env.Source, v.Valid)
		}
		if !v.Valid {
			status = "invalid"
		} else {
			result.RecordsValid++
			fr := ingest.NormalizeAndFilter(v.Candidate, cfg.Ingestion, env.MetadataRaw)
			platformSourceMetadataJSON = fr.PlatformSourceMetadataJSON
			if fr.Passed {
				result.RecordsPassed++
				candidates = append(candidates, fr.Product)
			} else {
				outcome := fr.FilterOutcome
				filterOutcome = &outcome
			}
		}
		ingestionAudits = append(ingestionAudits, store.IngestionAuditRow{
			BatchID: batchID, RecordOrdinal: v.Ordinal, ValidationStatus: status,
			ValidationDetailsJSON: v.ValidationDetailsJSON, FilterOutcome: filterOutcome,
			PlatformSourceMetadataJSON: platformSourceMetadataJSON,
		})
	}

	if err := o.withRetryErr(ctx, func() error {
		return o.st.WithTx(ctx, func(tx *sql.Tx) error {
			for _, a := range ingestionAudits {
				if err := store.InsertIngestionAudit(ctx, tx, a); err != nil {
					return err
				}
			}
			return nil
		})
	}); err != nil {
		return core.NewBatchError("ingest", core.StoreUnavailable, "writing ingestion audit failed", err)
	}
	o.tracker.update(Progress{BatchID: batchID, Stage: StageFilter, Percent: progressFor(StageFilter),
		Message: fmt.Sprintf("validated %d records, %d passed filters", result.RecordsValid, result.RecordsPassed), Status: ProgressRunning})
	if o.metrics != nil {
		o.metrics.RecordStage(string(StageFilter), "ok")
	}

	if stopAfter == StageIngest || stopAfter == StageFilter {
		return o.stopHere(ctx, batchID, stopAfter, result)
	}

	// Stage C: accumulate.
	var ids []int64
	if err := o.withRetryErr(ctx, func() error {
		return o.st.WithTx(ctx, func(tx *sql.Tx) error {
			var err error
			ids, err = ingest.Accumulate(ctx, tx, env.Source, env.Method, batchID, candidates)
			return err
		})
	}); err != nil {
		return core.NewBatchError("accumulate", core.StoreUnavailable, "accumulate stage failed", err)
	}
	o.tracker.update(Progress{BatchID: batchID, Stage: StageAccumulate, Percent: progressFor(StageAccumulate),
		Message: fmt.Sprintf("accumulated %d raw rows", len(ids)), Status: ProgressRunning})

	if stopAfter == StageAccumulate {
		return o.stopHere(ctx, batchID, stopAfter, result)
	}

	return o.runMatchDedupCommit(ctx, cfg, candidates, ids, batchID, stopAfter, result)
}

// RebuildFromRaw re-runs stages D-F (match, dedup, commit) over every row
// currently in products_raw, without reading any feed file. This lets an
// operator pick up a new matching configuration or lookup alias without
// re-ingesting source files.
func (o *Orchestrator) RebuildFromRaw(ctx context.Context, cfg *config.Config) (*RunResult, error) {
	candidates, err := o.st.ListAllRaw(ctx)
	if err != nil {
		return nil, core.NewBatchError("orchestrator", core.StoreUnavailable, "listing raw products failed", err)
	}
	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}

	sum := sha256.Sum256([]byte(fmt.Sprintf("rebuild-%d", time.Now().UnixNano())))
	batchID := "batch_" + hex.EncodeToString(sum[:8])
	if err := o.st.CreateBatch(ctx, store.Batch{
		BatchID: batchID, StartedAt: time.Now(), FilePath: "", Source: "rebuild_from_raw",
		Method: "rebuild", Status: store.BatchRunning,
	}); err != nil {
		return nil, core.NewBatchError("orchestrator", core.StoreUnavailable, "create batch row failed", err)
	}

	result := &RunResult{BatchID: batchID, Status: store.BatchRunning, RecordsRead: len(candidates), RecordsValid: len(candidates), RecordsPassed: len(candidates)}

	started := time.Now()
	if err := o.runMatchDedupCommit(ctx, cfg, candidates, ids, batchID, "", result); err != nil {
		o.withRetry(ctx, func() error {
			return o.st.FinishBatch(context.Background(), batchID, store.BatchFailed, time.Now())
		})
		o.tracker.update(Progress{BatchID: batchID, Percent: 0, Message: err.Error(), Status: ProgressFailed})
		if o.metrics != nil {
			o.metrics.RecordStage("rebuild", "error")
		}
		return result, err
	}
	if o.metrics != nil {
		o.metrics.RecordBatch("rebuild_from_raw", "rebuild", time.Since(started).Seconds())
	}
	return result, nil
}

// runMatchDedupCommit drives stages D-F against an already-accumulated
// candidate set, shared by both a fresh file-driven run and RebuildFromRaw.
func (o *Orchestrator) runMatchDedupCommit(ctx context.Context, cfg *config.Config, candidates []store.Product, ids []int64, batchID string, stopAfter Stage, result *RunResult) error {
	// Stage D: match, concurrently over candidates using the worker pool,
	// then serialize writes (raw updates + audit rows + research queue) in
	// original order inside one transaction.
	if err := o.cache.RefreshIfVersionChanged(ctx, o.st); err != nil {
		return core.NewBatchError("match", core.StoreUnavailable, "lookup cache refresh failed", err)
	}
	m := matcher.New(o.cache, cfg.Matching)
	resolutions := o.matchConcurrently(ctx, m, candidates)

	if err := o.withRetryErr(ctx, func() error {
		return o.st.WithTx(ctx, func(tx *sql.Tx) error {
			now := time.Now()
			for i, res := range resolutions {
				id := ids[i]
				var regulatorID *string
				var confidence *float64
				var matchType *string
				if res.Match != nil && res.DecisionRouting == "accepted" {
					regulatorID = &res.Match.RegulatorID
					c := res.Match.ConfidenceScore
					confidence = &c
					mt := string(res.Match.MatchType)
					matchType = &mt
					result.RecordsMatched++
				}
				if err := store.UpdateRawMatch(ctx, tx, id, regulatorID, confidence); err != nil {
					return err
				}

				var finalRegID *string
				finalConfidence := 0.0
				if res.Match != nil {
					finalRegID = &res.Match.RegulatorID
					finalConfidence = res.Match.ConfidenceScore
				}
				var manualOverrideTimestamp *string
				if res.Match != nil && res.Match.MatchType == store.MatchManualOverride {
					ts := now.UTC().Format(time.RFC3339)
					manualOverrideTimestamp = &ts
				}
				if err := store.InsertMatchingAudit(ctx, tx, store.MatchingAuditRow{
					BatchID: batchID, ProductID: &id, OriginalBankName: res.OriginalName,
					NormalizedBankName: res.NormalizedName, NormalizationStepsJSON: stepsJSON(res.NormalizationSteps),
					DatabaseQueryMethod: string(res.DatabaseQueryMethod), MatchType: matchType,
					FinalRegulatorID: finalRegID, FinalConfidence: finalConfidence, DecisionRouting: res.DecisionRouting,
					ManualOverrideTimestamp: manualOverrideTimestamp,
				}); err != nil {
					return err
				}

				if res.Match == nil && cfg.Matching.EnableResearchQueue && cfg.Matching.AutoFlagUnmatched {
					if err := o.enqueueResearch(ctx, tx, res.OriginalName, now, cfg.Matching); err != nil {
						return err
					}
					result.ResearchQueued++
				}
				if o.metrics != nil {
					o.metrics.RecordMatch(string(res.DatabaseQueryMethod), res.DecisionRouting)
				}
			}
			return nil
		})
	}); err != nil {
		return core.NewBatchError("match", core.StoreUnavailable, "match stage failed", err)
	}
	o.tracker.update(Progress{BatchID: batchID, Stage: StageDedup, Percent: progressFor(StageDedup),
		Message: fmt.Sprintf("matched %d/%d candidates", result.RecordsMatched, len(candidates)), Status: ProgressRunning})
	if o.metrics != nil {
		o.metrics.RecordStage(string(StageMatch), "ok")
	}

	if stopAfter == StageMatch {
		return o.stopHere(ctx, batchID, stopAfter, result)
	}

	// Stage E: dedup over the full accumulated raw table, not just this
	// batch's candidates. products_raw never shrinks between commits, so
	// committing only this batch's winners would make a second file's run
	// truncate the first file's products out of the catalog: stage F's
	// DELETE+INSERT replaces the whole table, and its input must therefore
	// be every row currently matched, not only the ones this batch touched.
	allRaw, err := o.st.ListAllRaw(ctx)
	if err != nil {
		return core.NewBatchError("dedup", core.StoreUnavailable, "listing raw products for dedup failed", err)
	}
	allIDs := make([]int64, len(allRaw))
	for i := range allRaw {
		allRaw[i].BusinessKey = dedup.BusinessKey(allRaw[i])
		allIDs[i] = allRaw[i].ID
	}
	dedupResult := dedup.Run(batchID, allRaw, allIDs, cfg.Dedup)
	result.Winners = len(dedupResult.Winners)
	o.tracker.update(Progress{BatchID: batchID, Stage: StageCommit, Percent: progressFor(StageCommit),
		Message: fmt.Sprintf("selected %d winners across %d groups", result.Winners, len(dedupResult.Audits)), Status: ProgressRunning})
	if o.metrics != nil {
		o.metrics.RecordStage(string(StageDedup), "ok")
	}

	if stopAfter == StageDedup {
		return o.stopHere(ctx, batchID, stopAfter, result)
	}

	// Stage F: commit.
	if err := o.withRetryErr(ctx, func() error {
		return commit.Run(ctx, o.st, batchID, dedupResult.Winners, dedupResult.Audits)
	}); err != nil {
		return err
	}
	result.Status = store.BatchCommitted
	o.tracker.update(Progress{BatchID: batchID, Stage: StageCommit, Percent: 100,
		Message: fmt.Sprintf("committed %d winners to catalog", result.Winners), Status: ProgressCompleted})
	if o.metrics != nil {
		o.metrics.RecordStage(string(StageCommit), "ok")
		if n, err := o.st.CountCatalog(ctx); err == nil {
			o.metrics.SetCatalogSize(n)
		}
	}
	return nil
}

// matchConcurrently runs Resolve for every candidate across the worker pool
// and returns results back in the original candidate order, regardless of
// which goroutine finished first.
func (o *Orchestrator) matchConcurrently(ctx context.Context, m *matcher.Matcher, candidates []store.Product) []matcher.Resolution {
	pool := workerpool.New(o.workers)
	pool.Run(ctx)

	go func() {
		for i, c := range candidates {
			pool.Submit(workerpool.Job{Seq: i, Work: func(ctx context.Context) (any, error) {
				return m.Resolve(c.BankName), nil
			}})
		}
		pool.Close()
	}()

	out := make([]matcher.Resolution, len(candidates))
	for r := range pool.Results() {
		out[r.Seq] = r.Value.(matcher.Resolution)
	}
	return out
}

func (o *Orchestrator) enqueueResearch(ctx context.Context, tx *sql.Tx, name string, now time.Time, cfg config.MatchingConfig) error {
	entry, err := o.st.GetResearchQueueEntry(ctx, tx, name)
	if err != nil {
		return err
	}
	if entry == nil {
		count, err := o.st.CountResearchQueue(ctx, tx)
		if err != nil {
			return err
		}
		if cfg.ResearchQueueMaxSize > 0 && count >= cfg.ResearchQueueMaxSize {
			slog.Warn("orchestrator: research queue at capacity, dropping new entry", "name", name)
			return nil
		}
		return o.st.InsertResearchQueueEntry(ctx, tx, name, now)
	}
	return o.st.BumpResearchQueueEntry(ctx, tx, name, now)
}

func stepsJSON(steps []string) string {
	b, err := json.Marshal(steps)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func progressFor(next Stage) int {
	for i, s := range stageOrder {
		if s == next {
			return (i * 100) / len(stageOrder)
		}
	}
	return 100
}

// stopHere records a StopAfter-requested halt: the batch is marked
// cancelled rather than committed, since nothing downstream of stopAfter
// ran.
func (o *Orchestrator) stopHere(ctx context.Context, batchID string, stopAfter Stage, result *RunResult) error {
	result.StoppedAfter = stopAfter
	result.Status = store.BatchCancelled
	o.tracker.update(Progress{BatchID: batchID, Stage: stopAfter, Percent: progressFor(stopAfter),
		Message: "stopped after " + string(stopAfter) + " as requested", Status: ProgressCancelled})
	return o.st.SetBatchStatus(ctx, batchID, store.BatchCancelled)
}

// withRetry runs fn with bounded retries on any error; the final error (if
// any) is swallowed since this helper is used for best-effort cleanup paths.
func (o *Orchestrator) withRetry(ctx context.Context, fn func() error) {
	_ = o.withRetryErr(ctx, fn)
}

// withRetryErr runs fn up to maxRetries times with linear backoff, stopping
// early on context cancellation.
func (o *Orchestrator) withRetryErr(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < o.maxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 50 * time.Millisecond):
		}
	}
	return err
}
