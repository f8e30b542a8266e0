package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/AGES-Pro-Mata/frontend-sub002/internal/config"
	"github.com/AGES-Pro-Mata/frontend-sub002/pkg/api"
	"github.com/AGES-Pro-Mata/frontend-sub002/pkg/features/filters"
	"github.com/AGES-Pro-Mata/frontend-sub002/pkg/metrics"
	"github.com/AGES-Pro-Mata/frontend-sub002/pkg/persist"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a filter store over HTTP",
		Long: `Serve a filter store over HTTP and WebSocket.

Tracked keys (persist.keys) are restored from the configured backend on
start, flushed every persist.interval and saved once more on shutdown.

Examples:
  filterctl serve
  filterctl serve --addr=:9090
  FILTERCTL_PERSIST_BACKEND=sqlite filterctl serve -c filterctl.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.New(opts.configFile)
			if err != nil {
				return err
			}
			if addr != "" {
				v.Set("server.addr", addr)
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			logger := newLogger(cmd.ErrOrStderr(), cfg.Log)
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", cfg.Server.Addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
			}
			return runServe(ctx, cfg, logger, ln)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config)")

	return cmd
}

// runServe serves until ctx is done, then shuts down within
// cfg.Server.ShutdownTimeout.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger, ln net.Listener) error {
	store := filters.NewStore(filters.WithLogger(logger))
	apiOpts := []api.Option{api.WithLogger(logger)}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collector = metrics.New(metrics.WithRegistry(reg), metrics.WithNamespace(cfg.Metrics.Namespace))
		stopMetrics := collector.Instrument(store)
		defer stopMetrics()
		apiOpts = append(apiOpts, api.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	if origins := cfg.Server.AllowedOrigins; len(origins) > 0 {
		apiOpts = append(apiOpts, api.WithCheckOrigin(func(r *http.Request) bool {
			return slices.Contains(origins, "*") || slices.Contains(origins, r.Header.Get("Origin"))
		}))
	}

	storage, err := openStorage(ctx, cfg.Persist)
	if err != nil {
		return err
	}

	var (
		persister *persist.Persister
		flushWG   sync.WaitGroup
	)
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	if storage != nil {
		if collector != nil {
			storage = collector.InstrumentStorage(storage)
		}
		defer storage.Close()

		persister = persist.NewPersister(store, storage,
			persist.WithKeys(cfg.Persist.Keys...),
			persist.WithConcurrency(cfg.Persist.Concurrency),
			persist.WithPersisterLogger(logger),
		)
		defer persister.Close()

		if _, err := persister.Restore(ctx); err != nil {
			logger.Warn("restoring filter snapshots failed", "error", err)
		}

		flushWG.Add(1)
		go func() {
			defer flushWG.Done()
			if err := persister.Run(runCtx, cfg.Persist.Interval); err != nil {
				logger.Error("final filter flush failed", "error", err)
			}
		}()
	}

	handler := api.New(store, apiOpts...)
	srv := &http.Server{Handler: handler}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()
	logger.Info("filterctl listening",
		"addr", ln.Addr().String(),
		"backend", cfg.Persist.Backend,
		"tracked", len(cfg.Persist.Keys),
		"metrics", cfg.Metrics.Enabled,
	)

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()

	handler.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}

	// Run flushes once more when cancelled.
	cancelRun()
	flushWG.Wait()

	if persister != nil {
		if err := persister.Save(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
