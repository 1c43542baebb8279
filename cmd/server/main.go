package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/csvdiff/internal/compare"
	"github.com/JonMunkholm/csvdiff/internal/config"
	"github.com/JonMunkholm/csvdiff/internal/core"
	"github.com/JonMunkholm/csvdiff/internal/logging"
	"github.com/JonMunkholm/csvdiff/internal/store"
	"github.com/JonMunkholm/csvdiff/internal/table"
	"github.com/JonMunkholm/csvdiff/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()
	st, err := store.Open(ctx, storeConfig(cfg))
	if err != nil {
		slog.Error("failed to open comparison store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("comparison store ready", "driver", cfg.Store.Driver)

	opts, err := serviceOptions(cfg)
	if err != nil {
		slog.Error("invalid comparison defaults", "error", err)
		os.Exit(1)
	}
	limiter := core.NewLimiter(cfg.Compare.MaxConcurrent, cfg.Compare.MaxWaitTime)
	service := core.NewService(st, limiter, opts)

	server := web.NewServer(service, cfg)

	// Background jobs stop with the server
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartRetention(jobCtx, core.RetentionConfig{
		Days:     cfg.Store.RetentionDays,
		Interval: cfg.Store.PruneInterval,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let running comparisons finish and save their results
		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for comparisons to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("comparisons did not complete in time", "error", err)
			} else {
				slog.Info("all comparisons completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		cancelJobs()
		st.Close()
		os.Exit(1)
	}
	cancelJobs()
	slog.Info("server stopped")
}

func storeConfig(cfg *config.Config) store.Config {
	return store.Config{
		Driver:          cfg.Store.Driver,
		DatabaseURL:     cfg.Store.DatabaseURL,
		MaxConns:        cfg.Store.MaxConns,
		MinConns:        cfg.Store.MinConns,
		MaxConnLifetime: cfg.Store.MaxConnLifetime,
		MaxConnIdleTime: cfg.Store.MaxConnIdleTime,
		BoltPath:        cfg.Store.BoltPath,
	}
}

// serviceOptions turns the validated Compare section into service defaults.
func serviceOptions(cfg *config.Config) (core.Options, error) {
	policy, err := compare.ParseDuplicatePolicy(cfg.Compare.Duplicates)
	if err != nil {
		return core.Options{}, err
	}
	delim, err := table.ParseDelimiter(cfg.Compare.Delimiter)
	if err != nil {
		return core.Options{}, err
	}
	return core.Options{
		Timeout:    cfg.Compare.Timeout,
		Workers:    cfg.Compare.Workers,
		MaxRows:    cfg.Compare.MaxRows,
		Duplicates: policy,
		Delimiter:  delim,
		Encoding:   cfg.Compare.Encoding,

		NullTokens:   table.ExpandNullTokens(cfg.Compare.NullTokens),
		StripFormula: cfg.Compare.StripFormula,
	}, nil
}
