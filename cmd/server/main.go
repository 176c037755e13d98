package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/poledger/internal/api"
	"github.com/dgallion1/poledger/internal/config"
	"github.com/dgallion1/poledger/internal/ocr"
	"github.com/dgallion1/poledger/internal/ocr/tesseract"
	"github.com/dgallion1/poledger/internal/pipeline"
	"github.com/dgallion1/poledger/internal/store"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Error("open store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}

	// Recognition engine for PDF uploads.
	tess := tesseract.New(tesseract.Options{DPI: cfg.OCRDPI, Languages: cfg.OCRLanguages})
	selected, err := ocr.Select(cfg.OCREngine, tess)
	if err != nil {
		log.Error("select ocr engine", "error", err)
		os.Exit(1)
	}
	stats := ocr.NewLatencyStats(cfg.StatsWindow)
	engine := &ocr.Instrumented{Engine: selected, Stats: stats}

	orch := pipeline.NewOrchestrator(cfg, pipeline.NewExtractor(cfg.MaxChunkSize, log), st, engine, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, st, engine, stats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		st.Close()
	}()

	log.Info("starting poledger",
		"port", cfg.Port,
		"ocr_engine", engine.Name(),
		"max_chunk_size", cfg.MaxChunkSize,
		"workers", cfg.WorkerCount,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-stopped
}
