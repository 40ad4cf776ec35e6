package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mobidash/importd/internal/config"
	"github.com/mobidash/importd/internal/core"
	"github.com/mobidash/importd/internal/logging"
	"github.com/mobidash/importd/internal/repository/postgresql"
	"github.com/mobidash/importd/internal/sheetsync"
	"github.com/mobidash/importd/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Overload lets a local .env win over inherited environment variables.
	if err := godotenv.Overload(); err == nil {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgresql.NewConnection(ctx, slog.Default(), cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	slog.Info("connected to database", "name", cfg.Database.Name)

	logs := postgresql.NewImportLogRepository(pool)
	records := postgresql.NewRecordRepository(pool)
	sheetsStore := postgresql.NewSheetsConfigRepository(pool)

	service, err := core.NewService(logs, records, cfg.Uploads.Dir,
		core.WithMaxFileSize(cfg.Uploads.MaxFileSize),
		core.WithTxRunner(postgresql.NewTxManager(pool)))
	if err != nil {
		return fmt.Errorf("create import service: %w", err)
	}

	sheets := sheetsync.New(sheetsStore, service,
		sheetsync.WithHTTPClient(&http.Client{Timeout: cfg.Sheets.SyncTimeout}))

	server := web.NewServer(service, sheets, cfg)

	// Expire stale staged files once a day.
	go runCleanupLoop(ctx, service, cfg.Uploads.RetentionDays)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Addr())
	}()
	slog.Info("server listening", "addr", cfg.Server.Addr())

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		stop()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
	}

	slog.Info("server stopped")
	return nil
}

func runCleanupLoop(ctx context.Context, service *core.Service, retentionDays int) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := service.CleanupOldFiles(retentionDays)
			if err != nil {
				slog.Error("staged file cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("staged files cleaned up", "removed", removed)
			}
		}
	}
}
