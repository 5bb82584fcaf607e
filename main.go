package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"tickcast/server/internal/config"
	"tickcast/server/internal/counter"
	"tickcast/server/internal/httpapi"
	"tickcast/server/internal/journal"
	"tickcast/server/internal/logging"
	"tickcast/server/internal/pubsub"
	"tickcast/server/internal/simulate"
	"tickcast/server/internal/wspush"
)

// journalingPublisher fans ticks into the registry and the on-disk journal.
type journalingPublisher struct {
	registry *pubsub.Registry
	journal  *journal.Writer
	logger   *logging.Logger
}

func (p journalingPublisher) Publish(event counter.TickEvent) {
	p.registry.Publish(event)
	if err := p.journal.AppendTick(event); err != nil {
		p.logger.Warn("journal tick dropped", logging.Error(err))
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("initialise logging: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.SchedulerThreads > 0 {
		// Pinning GOMAXPROCS to 1 recreates the single-threaded event
		// scheduler the blocking delay variant is meant to congest.
		runtime.GOMAXPROCS(cfg.SchedulerThreads)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shared := counter.New()
	registry := pubsub.NewRegistry(logger)
	simulator := simulate.New(cfg.DelayMode, shared, config.LookupDelay)

	var publisher counter.Publisher = registry
	var journalWriter *journal.Writer
	if cfg.JournalDir != "" {
		writer, _, err := journal.NewWriter(cfg.JournalDir, nil)
		if err != nil {
			logger.Error("open journal", logging.Error(err))
			return
		}
		journalWriter = writer
		defer func() { _ = journalWriter.Close() }()
		publisher = journalingPublisher{registry: registry, journal: writer, logger: logger}
		logger.Info("journal enabled", logging.String("dir", writer.Directory()))
	}

	ticker := counter.NewTicker(shared, publisher, config.TickInterval, logger)
	go ticker.Run(ctx)

	tracker := &httpapi.ConnTracker{}
	opts := httpapi.Options{
		Logger:          logger,
		Counter:         shared,
		Registry:        registry,
		Simulator:       simulator,
		ProcessingDelay: config.ProcessingDelay,
		ActiveConns:     tracker.Active,
	}
	if journalWriter != nil {
		opts.Latency = journalWriter
	}
	handlers := httpapi.NewHandlerSet(opts)

	hub := wspush.NewHub(wspush.Options{
		Logger:    logger,
		Registry:  registry,
		Simulator: simulator,
		OnClose:   tracker.Release,
	})

	mux := http.NewServeMux()
	handlers.Register(mux)
	mux.HandleFunc("/ws", hub.ServeWS)

	server := &http.Server{
		Addr:      cfg.Addr(),
		Handler:   httpapi.RequestMiddleware(logger)(mux),
		ConnState: tracker.OnStateChange,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("server listening",
		logging.String("addr", cfg.Addr()),
		logging.String("delay_mode", string(cfg.DelayMode)))
	// Error rather than Fatal so the journal and log defers still flush.
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", logging.Error(err))
		return
	}
	logger.Info("server stopped")
}
