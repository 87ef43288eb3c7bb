package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/ukcatalog/core/internal/api"
	"github.com/ukcatalog/core/internal/compliance"
	"github.com/ukcatalog/core/internal/config"
	"github.com/ukcatalog/core/internal/events"
	"github.com/ukcatalog/core/internal/fabric"
	"github.com/ukcatalog/core/internal/matcher"
	"github.com/ukcatalog/core/internal/monitoring"
	"github.com/ukcatalog/core/internal/orchestrator"
	"github.com/ukcatalog/core/internal/store"
	"github.com/ukcatalog/core/internal/websocket"
)

func main() {
	slog.Info("catalog-server: starting")

	cfg := config.Get()

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Store.DataDir, cfg.Store.DBFile)
	if err != nil {
		slog.Error("catalog-server: open store failed", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	bus := events.NewEventBus()
	var progressEmitter events.EventEmitter = bus
	if topic := os.Getenv("PUBSUB_TOPIC"); topic != "" {
		psBus, err := events.NewPubSubEventBus(os.Getenv("GCP_PROJECT_ID"), topic)
		if err != nil {
			slog.Warn("catalog-server: pubsub bus unavailable, using local only", "error", err)
		} else {
			bus = psBus.EventBus
			progressEmitter = psBus
		}
	}

	metrics := monitoring.NewMetrics()

	cache := matcher.NewCache()
	orch := orchestrator.New(st, cache, progressEmitter, cfg.Orchestrator)
	orch.SetMetrics(metrics)

	engine := compliance.New(st)

	streamer := websocket.NewProgressStreamer()
	go streamer.Run()
	streamer.RelayFrom(bus)

	var alerts fabric.EventBus = fabric.NewLocalEventBus()
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisClient := fabric.NewGoRedisPubSub(addr)
		alerts = fabric.NewRedisEventBus(redisClient, "")
	}

	server := api.NewServer(st, orch, engine, cfg, streamer, alerts, metrics)
	if err := server.Start(cfg.Server.Port); err != nil {
		slog.Error("catalog-server: server stopped", "error", err)
		os.Exit(1)
	}
}
