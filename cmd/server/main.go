package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/pagekeep/internal/api"
	"github.com/dgallion1/pagekeep/internal/config"
	"github.com/dgallion1/pagekeep/internal/journal"
	"github.com/dgallion1/pagekeep/internal/move"
	"github.com/dgallion1/pagekeep/internal/page"
	"github.com/dgallion1/pagekeep/internal/stats"
	"github.com/dgallion1/pagekeep/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	dir, err := storage.NewDir(cfg.PageRoot)
	if err != nil {
		log.Error("storage unavailable", "error", err)
		os.Exit(1)
	}
	site := page.NewSite(dir, log)

	// The journal is optional; a nil interface disables it.
	var (
		jrnl  *journal.Journal
		rec   move.Recorder
		moves api.MoveLister
	)
	if cfg.MoveJournalPath != "" {
		jrnl, err = journal.Open(cfg.MoveJournalPath, log)
		if err != nil {
			log.Error("move journal unavailable", "error", err)
			os.Exit(1)
		}
		rec, moves = jrnl, jrnl
	}

	mover := move.NewEngine(site, log, rec)
	srv := api.NewServer(site, mover, moves, stats.NewRecorder(cfg.StatsWindow), log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		jrnl.Close()
	}()

	log.Info("starting pagekeep", "port", cfg.Port, "page_root", dir.Root(), "journal", cfg.MoveJournalPath != "")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
