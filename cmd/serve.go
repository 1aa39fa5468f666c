package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"a11yscan/internal/api"
	"a11yscan/internal/api/handler/v1handler"
	"a11yscan/internal/billing"
	"a11yscan/internal/config"
	"a11yscan/internal/plan"
	"a11yscan/internal/scan"
	"a11yscan/internal/sweep"
	"a11yscan/internal/worker"
	"a11yscan/pkg/engine"
	"a11yscan/pkg/engine/enginehttp"
	"a11yscan/pkg/logger"
	"a11yscan/pkg/mailer"
	"a11yscan/pkg/mailer/sendgridmail"
	"a11yscan/pkg/payments/mollieapi"
	"a11yscan/pkg/ratelimit"
	"a11yscan/pkg/storage/postgres"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// setupServer builds and starts the HTTP server, returning a stop function
// for graceful shutdown.
func setupServer(ctx context.Context, cfg *config.Config, deps api.Deps, limits ratelimit.Counter) func(ctx context.Context) {
	opts := api.NewOptions(cfg)
	opts.RateLimits.Counter = limits
	opts.RateLimits.ScanStartPerMinute = cfg.RateLimit.ScanStartPerMinute
	opts.RateLimits.WebhookPerMinute = cfg.RateLimit.WebhookPerMinute

	server, err := api.NewServer(deps, opts)
	if err != nil {
		logger.Fatal(ctx, "could not create webserver", zap.Error(err))
	}

	go func() {
		logger.Info(ctx, "starting webserver...")
		if err := server.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Error(ctx, "could not start webserver", zap.Error(err))
			}
		}
	}()

	return func(ctx context.Context) {
		logger.Info(ctx, "stopping webserver...")
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(ctx, "could not stop webserver", zap.Error(err))
		}
	}
}

// setupWorkers starts the River queue consumers and returns a stop function.
func setupWorkers(ctx context.Context,
	cfg *config.Config,
	strg *postgres.PgSQL,
	engineClient engine.Client,
	scans scan.Service) func(ctx context.Context) {
	riverClient, err := worker.Start(ctx, cfg, strg.Pool, engineClient, scans)
	if err != nil {
		logger.Fatal(ctx, "could not start queue workers", zap.Error(err))
	}

	return func(ctx context.Context) {
		logger.Info(ctx, "stopping queue workers...")
		if err := riverClient.Stop(ctx); err != nil {
			logger.Error(ctx, "could not stop queue workers", zap.Error(err))
		}
	}
}

// newMailer builds the outbound mail sender, or nil when sending is disabled.
func newMailer(cfg *config.Config) mailer.Sender {
	if cfg.Mail.SendgridKey == "" {
		return nil
	}

	return sendgridmail.New(cfg.Mail.SendgridKey, cfg.Mail.FromAddress, cfg.Mail.FromName)
}

func serveCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts API server and background workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

			strg, closeStrg := getPostgres(ctx, cfg)
			defer closeStrg()

			admission := plan.NewAdmission(strg)
			scans := scan.New(strg, admission, scan.NewOptions(cfg))
			engineClient := enginehttp.New(http.DefaultClient, cfg.Engine.BaseURL, cfg.Engine.Token)
			paymentsClient := mollieapi.New(http.DefaultClient, cfg.Payments.BaseURL, cfg.Payments.APIKey)
			sweepOpts := sweep.NewOptions(cfg)

			limiter := ratelimit.NewMemory()
			limiter.StartSweep(ctx, cfg.RateLimit.SweepInterval)

			stopWorkers := setupWorkers(ctx, cfg, strg, engineClient, scans)
			stopWebserver := setupServer(ctx, cfg, api.Deps{
				Deps: v1handler.Deps{
					Storage:   strg,
					Scans:     scans,
					Admission: admission,
					Billing:   billing.New(strg, paymentsClient),
					Scheduler: sweep.NewScheduler(strg, scans, sweepOpts),
					Expiry:    sweep.NewExpiry(strg, newMailer(cfg), sweepOpts),
				},
			}, limiter)

			// wait for interrupt
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
			defer cancel()

			stopWebserver(shutdownCtx)
			stopWorkers(shutdownCtx)
		},
	}

	return cmd
}
