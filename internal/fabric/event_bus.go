// Package fabric provides a pluggable event bus for compliance alerting,
// separate from internal/events' batch-progress CloudEvents bus: this one
// carries infrequent, high-value alerts (a new compliance breach) that an
// operator might want fanned out to a second process over Redis rather than
// only observed in-process. Only EventComplianceBreach is published in this
// repository; EventBatchCommitted and EventResearchQueueFull are defined but
// nothing raises them.
package fabric

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventType classifies event categories.
type EventType string

const (
	EventComplianceBreach   EventType = "compliance.breach.detected"
	EventBatchCommitted     EventType = "catalog.batch.committed"
	EventResearchQueueFull  EventType = "matching.research_queue.full"
)

// Event represents a domain event in the catalog system.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventHandler processes events of a subscribed type.
type EventHandler func(ctx context.Context, event *Event) error

// dedupeWindow bounds how often the same alert key is delivered. The
// compliance report handler raises one EventComplianceBreach per violating
// institution on every GET /api/v1/compliance/report call, so a dashboard
// polling that endpoint every few seconds would otherwise flood subscribers
// with the same breach over and over.
const dedupeWindow = 15 * time.Minute

// dedupeKey identifies an event for suppression: same type, and for
// breach alerts also the institution it concerns, so a breach at bank A
// never suppresses one raised moments later at bank B.
func dedupeKey(event *Event) string {
	if regID, ok := event.Payload["regulator_id"].(string); ok && regID != "" {
		return string(event.Type) + ":" + regID
	}
	return string(event.Type)
}

// alertDedupe tracks the last delivery time per key so repeats inside
// dedupeWindow can be suppressed instead of re-fanned-out. Shared by
// LocalEventBus and RedisEventBus.
type alertDedupe struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func newAlertDedupe() *alertDedupe {
	return &alertDedupe{last: make(map[string]time.Time)}
}

// allow reports whether an event with this key should be delivered now,
// recording the delivery time when it does.
func (d *alertDedupe) allow(key string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.last[key]; ok && now.Sub(last) < dedupeWindow {
		return false
	}
	d.last[key] = now
	return true
}

// EventBus provides publish/subscribe for domain events. This interface
// allows plugging in Redis Pub/Sub or a local in-process implementation.
type EventBus interface {
	// Publish sends an event to all subscribers of the event type.
	Publish(ctx context.Context, event *Event) error

	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) (unsubscribe func())

	// Close shuts down the event bus.
	Close() error
}

// ============================================================================
// LOCAL EVENT BUS (in-process, for single-pod deployments)
// ============================================================================

// LocalEventBus provides an in-memory pub/sub implementation.
// Suitable for single-process deployments; use RedisEventBus for multi-pod.
type LocalEventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]subscriberEntry
	dedupe      *alertDedupe
	closed      bool
}

type subscriberEntry struct {
	id      int
	handler EventHandler
}

var subscriberCounter int

// NewLocalEventBus creates a new in-memory event bus.
func NewLocalEventBus() *LocalEventBus {
	return &LocalEventBus{
		subscribers: make(map[EventType][]subscriberEntry),
		dedupe:      newAlertDedupe(),
	}
}

// Publish sends an event to all matching subscribers asynchronously, unless
// the same alert key was already delivered within dedupeWindow.
func (b *LocalEventBus) Publish(ctx context.Context, event *Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if !b.dedupe.allow(dedupeKey(event), event.Timestamp) {
		return nil
	}

	handlers := b.subscribers[event.Type]
	for _, entry := range handlers {
		h := entry.handler
		go func() {
			if err := h(ctx, event); err != nil {
				slog.Warn("[EventBus] Handler error for", "type", event.Type, "error", err)
			}
		}()
	}

	return nil
}

// Subscribe registers a handler for a specific event type.
func (b *LocalEventBus) Subscribe(eventType EventType, handler EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscriberCounter++
	id := subscriberCounter
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriberEntry{
		id:      id,
		handler: handler,
	})

	// Return unsubscribe function
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[eventType]
		for i, entry := range subs {
			if entry.id == id {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Close shuts down the event bus.
func (b *LocalEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subscribers = nil
	return nil
}
