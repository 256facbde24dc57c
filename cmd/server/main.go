package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mila411/pollen-storm/internal/catalog"
	"github.com/mila411/pollen-storm/internal/config"
	"github.com/mila411/pollen-storm/internal/hub"
	"github.com/mila411/pollen-storm/internal/logging"
	"github.com/mila411/pollen-storm/internal/resolver"
	"github.com/mila411/pollen-storm/internal/scheduler"
	"github.com/mila411/pollen-storm/internal/server"
	"github.com/mila411/pollen-storm/internal/upstream"
)

const predictionDays = 1

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupCatalog(cfg *config.Config) *catalog.Catalog {
	cat, err := catalog.Load(cfg.RegionsPath)
	if err != nil {
		slog.Error("Failed to load region catalog", "path", cfg.RegionsPath, "error", err)
		os.Exit(1)
	}
	return cat
}

func runGracefulShutdown(srv *server.Server, sched *scheduler.Scheduler, h *hub.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		sched.Stop()
		h.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	cat := setupCatalog(cfg)
	slog.Info("Region catalog loaded", "regions", cat.Len())

	client := upstream.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamTimeout, clock)
	cooldown := resolver.NewCooldown(cfg.FailureCooldown, clock)
	snapshots := resolver.NewSnapshots(client, cooldown, cfg.UpstreamTimeout, clock)
	predictions := resolver.NewPredictions(client, snapshots, cooldown, cfg.UpstreamTimeout, clock)

	h := hub.New(clock)
	sched := scheduler.New(cat, snapshots, predictions, h, cfg.CollectionInterval, cfg.PredictionInterval, predictionDays, clock)

	// Warm the hub's state before accepting connections so the first client
	// never sees an empty initial push.
	warmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	sched.CollectNow(warmCtx)
	sched.PredictNow(warmCtx)
	cancel()

	sched.Start()

	srv := server.NewServer(cfg, cat, snapshots, predictions, h)

	done := runGracefulShutdown(srv, sched, h)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
