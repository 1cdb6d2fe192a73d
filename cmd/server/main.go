package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transcode-orchestrator/internal/memengine"
	"transcode-orchestrator/internal/orchestrator"
	"transcode-orchestrator/internal/platform/config"
	"transcode-orchestrator/internal/platform/database"
	"transcode-orchestrator/internal/platform/logger"
	"transcode-orchestrator/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	var store orchestrator.Store
	if cfg.DatabasePath != "" {
		db, err := database.Open(cfg.DatabasePath, log)
		if err != nil {
			log.Error("opening database", "error", err)
			os.Exit(1)
		}
		gs, err := orchestrator.NewGormStore(db, log)
		if err != nil {
			log.Error("initializing job store", "error", err)
			os.Exit(1)
		}
		store = gs
	} else {
		store = orchestrator.NewInMemoryStore()
	}

	profiles := orchestrator.DefaultProfiles()
	if cfg.ProfilesFile != "" {
		p, err := orchestrator.LoadProfiles(cfg.ProfilesFile)
		if err != nil {
			log.Error("loading profiles", "error", err)
			os.Exit(1)
		}
		profiles = p
	}

	repo := orchestrator.NewJobRepository(store)
	svc := orchestrator.NewService(repo, memengine.New(), profiles, log, cfg.MaxActiveJobs)
	met := metrics.New()
	h := orchestrator.NewHandler(svc, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			met.SetActiveJobs(repo.ActiveJobCount())
			counts := repo.StateCounts()
			met.SetFinishedJobs(counts[orchestrator.JobFinished])
			met.SetFailedJobs(counts[orchestrator.JobFailed])
		}).ServeHTTP(w, r)
	})
	h.Routes(r)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"max_active_jobs", cfg.MaxActiveJobs,
		"database_path", cfg.DatabasePath,
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	svc.Shutdown()
	log.Info("server stopped")
}
