package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Minthug/chzzk-chat-analyzer/internal/analyzer"
	"github.com/Minthug/chzzk-chat-analyzer/internal/notify"
	"github.com/Minthug/chzzk-chat-analyzer/internal/persist"
	"github.com/Minthug/chzzk-chat-analyzer/internal/platform/config"
	"github.com/Minthug/chzzk-chat-analyzer/internal/platform/logger"
	"github.com/Minthug/chzzk-chat-analyzer/internal/platform/metrics"
	"github.com/Minthug/chzzk-chat-analyzer/internal/platform/ratelimit"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	dbPath := config.GetEnv("DB_PATH", "chat-analyzer.db")
	persistDelay := time.Duration(config.GetEnvInt("PERSIST_DELAY_MS", 500)) * time.Millisecond
	ingestRPS := config.GetEnvFloat("INGEST_RATE_RPS", 50)
	ingestBurst := config.GetEnvInt("INGEST_RATE_BURST", 100)

	lagSize := config.GetEnvInt("LAG_SIZE", analyzer.DefaultLagSize)
	cfg := analyzer.Config{
		WindowLengthSeconds:    config.GetEnvInt("WINDOW_LENGTH_SECONDS", analyzer.DefaultWindowLengthSeconds),
		ZThreshold:             config.GetEnvFloat("Z_THRESHOLD", analyzer.DefaultZThreshold),
		LagSize:                lagSize,
		Keywords:               config.GetEnvList("KEYWORDS"),
		WindowRetention:        config.GetEnvInt("WINDOW_RETENTION", analyzer.DefaultWindowRetention),
		KeywordWindowRetention: config.GetEnvInt("KEYWORD_WINDOW_RETENTION", 2*lagSize),
		SpikeHistoryLimit:      config.GetEnvInt("SPIKE_HISTORY_LIMIT", 0),
		SummaryTail:            config.GetEnvInt("SUMMARY_TAIL", analyzer.DefaultSummaryTail),
	}

	log := logger.New(logLevel, logFormat)

	svc, err := analyzer.NewService(analyzer.NewRegistry(), cfg, log)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	met := metrics.New()
	svc.Subscribe(analyzer.MetricsListener(met))
	svc.OnListenerFailure(met.IncListenerFailures)

	hub := notify.NewHub(log)
	svc.Subscribe(hub.Listener())

	var persister *persist.Persister
	if dbPath != "" {
		store, err := persist.New(dbPath)
		if err != nil {
			log.Error("open database", "path", dbPath, "error", err)
			os.Exit(1)
		}
		defer store.Close()

		restoreStreams(log, store, svc)
		persister = persist.NewPersister(store, svc, persistDelay, log)
		svc.Subscribe(persister.Listener())
	}

	h := analyzer.NewHandler(svc, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveStreams(svc.ActiveStreamCount()) }).ServeHTTP(w, r)
	})
	r.Get("/ws", hub.ServeHTTP)
	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(ingestRPS, ingestBurst))
		h.Routes(r)
	})

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"window_length_seconds", cfg.WindowLengthSeconds,
		"z_threshold", cfg.ZThreshold,
		"keywords", len(cfg.Keywords),
		"db_path", dbPath,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	if persister != nil {
		if err := persister.Close(ctx); err != nil {
			log.Error("persist flush error", "error", err)
		}
	}

	log.Info("server stopped")
}

// restoreStreams loads every stored snapshot back into svc. Window history
// is not restored; each stream resumes windowing from its next event.
func restoreStreams(log *slog.Logger, store *persist.SQLiteStore, svc *analyzer.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	snaps, err := store.Load(ctx)
	if err != nil {
		log.Error("load snapshots", "error", err)
		return
	}
	for _, snap := range snaps {
		if err := svc.RestoreHistorySummary(snap.StreamID, snap); err != nil {
			log.Warn("restore snapshot", "stream_id", string(snap.StreamID), "error", err)
		}
	}
	log.Info("snapshots restored", "streams", len(snaps))
}
