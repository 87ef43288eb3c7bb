// Package api wires the HTTP control surface onto the orchestrator,
// compliance engine, and store: batch lifecycle, catalog queries, research
// queue listing, and compliance reporting/diversification.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ukcatalog/core/internal/compliance"
	"github.com/ukcatalog/core/internal/config"
	"github.com/ukcatalog/core/internal/fabric"
	"github.com/ukcatalog/core/internal/handlers"
	"github.com/ukcatalog/core/internal/monitoring"
	"github.com/ukcatalog/core/internal/orchestrator"
	"github.com/ukcatalog/core/internal/store"
	"github.com/ukcatalog/core/internal/websocket"
)

// Server exposes the orchestrator and compliance engine over REST/JSON plus
// a websocket progress stream.
type Server struct {
	st       *store.Store
	orch     *orchestrator.Orchestrator
	engine   *compliance.Engine
	cfg      *config.Config
	streamer *websocket.ProgressStreamer
	alerts   fabric.EventBus
	metrics  *monitoring.Metrics
}

func NewServer(st *store.Store, orch *orchestrator.Orchestrator, engine *compliance.Engine, cfg *config.Config, streamer *websocket.ProgressStreamer, alerts fabric.EventBus, metrics *monitoring.Metrics) *Server {
	return &Server{st: st, orch: orch, engine: engine, cfg: cfg, streamer: streamer, alerts: alerts, metrics: metrics}
}

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.Use(corsMiddleware(s.cfg.Server.CORSAllowOrigins))

	r.HandleFunc("/api/v1/batches", handlers.HandleProcessFile(s.orch, s.cfg)).Methods("POST")
	r.HandleFunc("/api/v1/batches/rebuild", handlers.HandleRebuildFromRaw(s.orch, s.cfg)).Methods("POST")
	r.HandleFunc("/api/v1/batches/{batchID}/progress", handlers.HandleGetProgress(s.orch)).Methods("GET")
	r.HandleFunc("/api/v1/batches/{batchID}/cancel", handlers.HandleCancel(s.st)).Methods("POST")
	r.HandleFunc("/api/v1/batches/{batchID}/audit", handlers.HandleGetAudit(s.st)).Methods("GET")
	r.HandleFunc("/api/v1/batches/{batchID}/stream", handlers.HandleProgressStream(s.streamer)).Methods("GET")

	r.HandleFunc("/api/v1/catalog", handlers.HandleQueryCatalog(s.st)).Methods("GET")
	r.HandleFunc("/api/v1/research-queue", handlers.HandleListResearchQueue(s.st, s.metrics)).Methods("GET")

	r.HandleFunc("/api/v1/compliance/report", handlers.HandleComplianceReport(s.engine, s.cfg, s.alerts, s.metrics)).Methods("GET")
	r.HandleFunc("/api/v1/compliance/diversify", handlers.HandleDiversify(s.engine, s.cfg)).Methods("POST")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}

func corsMiddleware(allowOrigins []string) mux.MiddlewareFunc {
	origin := "*"
	if len(allowOrigins) > 0 {
		origin = allowOrigins[0]
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Start runs the HTTP server on port, blocking until ListenAndServe returns.
// There is no graceful shutdown.
func (s *Server) Start(port string) error {
	addr := fmt.Sprintf(":%s", port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}
	slog.Info("api: listening", "addr", addr)
	return srv.ListenAndServe()
}
