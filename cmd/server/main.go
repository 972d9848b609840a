package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garnizeh/opphub/api"
	dbfs "github.com/garnizeh/opphub/db"
	"github.com/garnizeh/opphub/internal/auth"
	"github.com/garnizeh/opphub/internal/config"
	"github.com/garnizeh/opphub/internal/db"
	"github.com/garnizeh/opphub/internal/hub"
	"github.com/garnizeh/opphub/internal/jobs"
	"github.com/garnizeh/opphub/internal/reminder"
	"github.com/garnizeh/opphub/internal/repository/sqlite"
	"github.com/garnizeh/opphub/internal/summary"
	"github.com/garnizeh/opphub/internal/validate"
	pmodels "github.com/garnizeh/opphub/pkg/models"
	"github.com/garnizeh/opphub/pkg/ollama"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(logger)
	api.SetLogger(logger)

	logger.Info("starting opportunity hub", "version", version, "built", buildTime)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer database.Close()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, database, dbfs.Migrations, dbfs.SeedFiles); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	}

	repo := sqlite.New(database, logger)
	repo.EnforceIndexes(cfg.Catalog.EnforceIndexes)
	for _, idx := range cfg.Indexes {
		if err := repo.DeclareIndex(ctx, idx.Collection, idx.Fields, idx.OrderBy); err != nil {
			log.Fatalf("Failed to declare index on %s: %v", idx.Collection, err)
		}
	}

	loader, err := validate.NewLoader(ctx, repo)
	if err != nil {
		log.Fatalf("Failed to load schemas: %v", err)
	}

	checks := map[string]api.Check{
		"database": func(ctx context.Context) error { return database.GetConn().PingContext(ctx) },
	}

	var summarizer summary.Summarizer = summary.Prefix{MaxLength: cfg.Summarizer.MaxLength}
	if cfg.Summarizer.Enabled {
		client, err := ollama.NewClient(ollama.Config{
			BaseURL:                 cfg.Summarizer.BaseURL,
			Model:                   cfg.Summarizer.Model,
			Timeout:                 cfg.Summarizer.Timeout,
			Retries:                 cfg.Summarizer.Retries,
			Backoff:                 cfg.Summarizer.Backoff,
			CircuitFailureThreshold: cfg.Summarizer.CircuitFailureThreshold,
			CircuitReset:            cfg.Summarizer.CircuitReset,
		}, nil, logger)
		if err != nil {
			log.Fatalf("Failed to create ollama client: %v", err)
		}
		defer client.Close()

		summarizer = summary.NewLLM(client, cfg.Summarizer.Model, cfg.Summarizer.MaxLength, logger)
		checks["summarizer"] = client.Health
	}

	// Summary jobs refresh the hub's catalog; h is bound before the pool starts.
	var h *hub.Hub
	pool := jobs.NewWorkerPool(repo, map[string]jobs.Handler{
		summary.JobType: summary.Handler(repo, summarizer, func(o pmodels.Opportunity) { h.Refresh(o) }, logger),
	}, jobs.Options{
		Workers:      cfg.Workers.Count,
		PollInterval: cfg.Workers.PollInterval,
		MaxAttempts:  cfg.Workers.MaxAttempts,
		Logger:       logger,
	})

	accounts := auth.NewService(repo, cfg.JWTSecret, cfg.TokenDuration, logger)
	h = hub.New(repo, hub.Options{
		FeaturedLimit: cfg.Catalog.FeaturedLimit,
		IsAdminEmail:  cfg.IsAdminEmail,
		Accounts:      accounts,
		Validator:     loader,
		Jobs:          pool,
		SummaryLength: cfg.Summarizer.MaxLength,
		Logger:        logger,
	})
	accounts.Subscribe(h.HandleAuthEvent)

	pool.Start(ctx)
	defer pool.Stop()

	if cfg.Reminders.Enabled {
		sched, err := reminder.New(repo, reminder.Options{
			Schedule: cfg.Reminders.Schedule,
			Window:   cfg.Reminders.Window,
			Logger:   logger,
		})
		if err != nil {
			log.Fatalf("Failed to create reminder scheduler: %v", err)
		}
		if err := sched.Start(ctx); err != nil {
			log.Fatalf("Failed to start reminder scheduler: %v", err)
		}
		defer sched.Stop(context.Background())
	}

	h.LoadCatalog(ctx)

	handler := api.SetupRoutes(api.Deps{
		Hub:      h,
		Auth:     accounts,
		Schemas:  repo,
		Reloader: loader,
		Jobs:     pool,
		Checks:   checks,
	}, version, buildTime)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
