// Package worker runs the background queue consumers that drive audits
// against the engine.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"a11yscan/internal/config"
	"a11yscan/internal/scan"
	"a11yscan/pkg/engine"
	"a11yscan/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"go.uber.org/zap/exp/zapslog"
)

// NewClientConfig assembles the River configuration for the audit queues:
// registered workers, per-kind queues and the finished-job retention windows.
func NewClientConfig(ctx context.Context,
	cfg *config.Config,
	engineClient engine.Client,
	scans scan.Service) *river.Config {
	options := Options{
		PollInterval: cfg.Engine.PollInterval,
		PollTimeout:  cfg.Engine.PollTimeout,
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewFullScanWorker(engineClient, scans, options))
	river.AddWorker(workers, NewQuickScanWorker(engineClient, scans, options))

	return &river.Config{
		Queues: map[string]river.QueueConfig{
			scan.QueueFull:  {MaxWorkers: cfg.Queue.MaxWorkers},
			scan.QueueQuick: {MaxWorkers: cfg.Queue.MaxWorkers},
		},
		Workers:                     workers,
		CompletedJobRetentionPeriod: scan.CompletedJobRetention,
		CancelledJobRetentionPeriod: scan.DiscardedJobRetention,
		DiscardedJobRetentionPeriod: scan.DiscardedJobRetention,
		Logger:                      slog.New(zapslog.NewHandler(logger.Get(ctx).Core())),
	}
}

// Start registers the audit workers and starts the River client against the
// given pool. Each scan kind consumes from its own queue so quick audits are
// never starved behind full ones.
func Start(ctx context.Context,
	cfg *config.Config,
	dbPool *pgxpool.Pool,
	engineClient engine.Client,
	scans scan.Service) (*river.Client[pgx.Tx], error) {
	riverClient, err := river.NewClient(riverpgxv5.New(dbPool),
		NewClientConfig(ctx, cfg, engineClient, scans))
	if err != nil {
		return nil, fmt.Errorf("could not create river queue client: %w", err)
	}

	if err := riverClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("could not start river queue client: %w", err)
	}

	return riverClient, nil
}
