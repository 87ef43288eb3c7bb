package orchestrator

import (
	"sync"

	"github.com/ukcatalog/core/internal/events"
)

// ProgressStatus is the lifecycle status carried alongside a progress
// update, distinct from Stage (which names where in the pipeline the batch
// currently is).
type ProgressStatus string

const (
	ProgressRunning   ProgressStatus = "running"
	ProgressCompleted ProgressStatus = "completed"
	ProgressFailed    ProgressStatus = "failed"
	ProgressCancelled ProgressStatus = "cancelled"
)

// Progress is one point-in-time snapshot of a batch's run, matching the
// {batch_id, stage, percent, message} shape get_progress returns.
type Progress struct {
	BatchID string         `json:"batch_id"`
	Stage   Stage          `json:"stage"`
	Percent int            `json:"percent"`
	Message string         `json:"message"`
	Status  ProgressStatus `json:"status"`
}

// progressTracker holds the latest Progress per batch and fans every update
// out onto the event bus as catalog.batch.progress, the same local pub/sub
// handlers subscribe to for websocket streaming.
type progressTracker struct {
	mu      sync.RWMutex
	byBatch map[string]Progress
	bus     events.EventEmitter
}

func newProgressTracker(bus events.EventEmitter) *progressTracker {
	return &progressTracker{byBatch: make(map[string]Progress), bus: bus}
}

func (t *progressTracker) update(p Progress) {
	t.mu.Lock()
	t.byBatch[p.BatchID] = p
	t.mu.Unlock()

	if t.bus == nil {
		return
	}
	t.bus.Emit("catalog.batch.progress", "/orchestrator", p.BatchID, map[string]interface{}{
		"batch_id": p.BatchID,
		"stage":    string(p.Stage),
		"percent":  p.Percent,
		"message":  p.Message,
		"status":   string(p.Status),
	})
}

// Get returns the latest known progress for a batch, for get_progress.
func (t *progressTracker) Get(batchID string) (Progress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.byBatch[batchID]
	return p, ok
}

// Progress exposes the orchestrator's in-memory progress tracker to
// HTTP/CLI callers polling get_progress.
func (o *Orchestrator) Progress(batchID string) (Progress, bool) {
	return o.tracker.Get(batchID)
}
