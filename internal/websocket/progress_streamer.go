// Package websocket streams batch progress events to UI clients that want
// push updates instead of polling get_progress.
package websocket

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ukcatalog/core/internal/events"
)

// ProgressEvent is the wire shape of one progress push, matching the
// catalog.batch.progress payload.
type ProgressEvent struct {
	BatchID string `json:"batch_id"`
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type registration struct {
	batchID string
	conn    *websocket.Conn
}

// ProgressStreamer fans out progress events to every client subscribed to
// the matching batch id, generalized from a broadcast-to-everyone DAG
// streamer to a per-subject (batch id) one.
type ProgressStreamer struct {
	clients    map[string]map[*websocket.Conn]bool
	broadcast  chan ProgressEvent
	register   chan registration
	unregister chan registration
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	bus        *events.EventBus
}

func NewProgressStreamer() *ProgressStreamer {
	return &ProgressStreamer{
		clients:    make(map[string]map[*websocket.Conn]bool),
		broadcast:  make(chan ProgressEvent, 256),
		register:   make(chan registration),
		unregister: make(chan registration),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run drives the hub loop; call it once in its own goroutine.
func (p *ProgressStreamer) Run() {
	for {
		select {
		case reg := <-p.register:
			p.mu.Lock()
			if p.clients[reg.batchID] == nil {
				p.clients[reg.batchID] = make(map[*websocket.Conn]bool)
			}
			p.clients[reg.batchID][reg.conn] = true
			p.mu.Unlock()

		case reg := <-p.unregister:
			p.mu.Lock()
			if conns, ok := p.clients[reg.batchID]; ok {
				if _, ok := conns[reg.conn]; ok {
					delete(conns, reg.conn)
					reg.conn.Close()
				}
				if len(conns) == 0 {
					delete(p.clients, reg.batchID)
				}
			}
			p.mu.Unlock()

		case event := <-p.broadcast:
			p.mu.RLock()
			for conn := range p.clients[event.BatchID] {
				if err := conn.WriteJSON(event); err != nil {
					slog.Warn("websocket: write failed, dropping client", "batch_id", event.BatchID, "error", err)
					conn.Close()
					delete(p.clients[event.BatchID], conn)
				}
			}
			p.mu.RUnlock()
		}
	}
}

// HandleConn upgrades the request, replays any progress already recorded for
// this batch (so a client that connects mid-run isn't left waiting for the
// next stage to see where things stand), then registers the connection for
// live events, reading (and discarding) inbound frames only to detect client
// disconnects.
func (p *ProgressStreamer) HandleConn(batchID string, w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket: upgrade failed", "error", err)
		return
	}

	if p.bus != nil {
		for _, ce := range p.bus.History(batchID) {
			if err := conn.WriteJSON(progressEventFromCloudEvent(ce)); err != nil {
				conn.Close()
				return
			}
		}
	}

	p.register <- registration{batchID: batchID, conn: conn}

	go func() {
		defer func() { p.unregister <- registration{batchID: batchID, conn: conn} }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast pushes one progress event to every client watching its batch.
func (p *ProgressStreamer) Broadcast(event ProgressEvent) {
	p.broadcast <- event
}

// RelayFrom subscribes to catalog.batch.progress on bus and forwards every
// event onto connected websocket clients, decoupling the streamer from the
// orchestrator so either can be wired independently in tests. It also keeps
// a reference to bus so HandleConn can replay history to late subscribers.
func (p *ProgressStreamer) RelayFrom(bus *events.EventBus) {
	p.bus = bus
	ch := bus.Subscribe("catalog.batch.progress")
	go func() {
		for ce := range ch {
			event := progressEventFromCloudEvent(ce)
			p.Broadcast(event)
			if event.Status == "completed" || event.Status == "failed" {
				bus.ClearHistory(event.BatchID)
			}
		}
	}()
}

// progressEventFromCloudEvent extracts the wire fields from a raw CloudEvent,
// shared between live relay and replay so both produce identical payloads.
func progressEventFromCloudEvent(ce *events.CloudEvent) ProgressEvent {
	batchID, _ := ce.Data["batch_id"].(string)
	stage, _ := ce.Data["stage"].(string)
	message, _ := ce.Data["message"].(string)
	status, _ := ce.Data["status"].(string)
	percent := 0
	switch v := ce.Data["percent"].(type) {
	case int:
		percent = v
	case float64:
		percent = int(v)
	}
	return ProgressEvent{BatchID: batchID, Stage: stage, Percent: percent, Message: message, Status: status}
}
