package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/newsletterpost/internal/logging"
	"github.com/teemow/newsletterpost/internal/server"
	"github.com/teemow/newsletterpost/internal/watch"
)

type serveOptions struct {
	httpAddr       string
	metricsAddr    string
	metricsEnabled bool
	dryRun         bool
	renewWatch     bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server for Gmail push notifications",
		Long: `Start the HTTP server that receives Gmail Pub/Sub push notifications.

Every push to /mail_payload runs the pipeline once against the newest
message with the configured label. Messages that were already published
are skipped.

The server also keeps the Gmail watch registered when GOOGLE_PROJECT_ID
and GMAIL_TOPIC_NAME are set, and exposes /healthz, /readyz and
/healthz/detailed. Prometheus metrics are served on a dedicated port.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.httpAddr, "http-addr", "", "Webhook server address (default from HTTP_ADDR or :8000)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Metrics server address (default from METRICS_ADDR or :9090)")
	cmd.Flags().BoolVar(&opts.metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Generate posts without publishing them (also DRY_RUN)")
	cmd.Flags().BoolVar(&opts.renewWatch, "renew-watch", true, "Keep the Gmail watch registered while serving")

	return cmd
}

func runServe(cmd *cobra.Command, opts serveOptions) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := loadApp(shutdownCtx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	if cmd.Flags().Changed("http-addr") {
		a.cfg.HTTPAddr = opts.httpAddr
	}
	if cmd.Flags().Changed("metrics-addr") {
		a.cfg.MetricsAddr = opts.metricsAddr
	}
	if opts.dryRun {
		a.cfg.DryRun = true
	}

	if err := a.withPipeline(shutdownCtx); err != nil {
		return err
	}

	// Start metrics server if enabled
	var metricsServer *server.MetricsServer
	if opts.metricsEnabled && a.provider.Enabled() && a.provider.HasPrometheusExporter() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    a.cfg.MetricsAddr,
			Enabled:                 true,
			InstrumentationProvider: a.provider,
			Logger:                  a.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		// Wait for metrics server to be ready or fail
		select {
		case <-metricsReady:
			a.logger.Info("metrics server started", "addr", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}

		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				a.logger.Warn("error shutting down metrics server", logging.Err(err))
			}
		}()
	}

	serverContext := server.NewServerContext(shutdownCtx)

	var runner server.Runner = a.pipeline
	if a.cfg.DryRun {
		runner = dryRunner{p: a.pipeline}
		a.logger.Info("dry run enabled, posts will not be published")
	}

	srv, err := server.New(serverContext, server.Config{
		Addr:       a.cfg.HTTPAddr,
		Runner:     runner,
		PushToken:  a.cfg.PushToken,
		RateLimit:  a.cfg.PushRateLimit,
		RateBurst:  a.cfg.PushBurst,
		RunTimeout: a.cfg.RequestTimeout,
		Metrics:    a.metrics,
		Logger:     a.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if a.cfg.PushToken == "" {
		a.logger.Warn("PUSH_AUTH_TOKEN not set, /mail_payload accepts unauthenticated pushes")
	}

	if opts.renewWatch && a.cfg.WatchRenewInterval > 0 {
		if err := a.cfg.ValidateWatch(); err != nil {
			a.logger.Warn("gmail watch renewal disabled", logging.Err(err))
		} else {
			renewer, err := watch.NewRenewer(a.gmail, watch.Config{
				LabelName: a.cfg.LabelName,
				Topic:     a.cfg.TopicFullName(),
				Interval:  a.cfg.WatchRenewInterval,
				Logger:    a.logger,
				Metrics:   a.metrics,
			})
			if err != nil {
				return fmt.Errorf("failed to create watch renewer: %w", err)
			}
			go renewer.Run(serverContext.Context())
		}
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		a.logger.Info("shutdown signal received, stopping webhook server")
		ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("error shutting down webhook server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("webhook server stopped with error: %w", err)
		}
	}

	a.logger.Info("webhook server gracefully stopped")
	return nil
}
