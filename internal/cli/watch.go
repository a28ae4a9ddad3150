package cli

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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/splice/internal/intake"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	MetricsAddr string
	Workers     int
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Splice submission files dropped into a directory",
		Long: `Watch a directory for submission files and splice each one as it
arrives. Processed files move to done/, failed files to failed/. Files
already present at startup are processed first.

Runs until interrupted (Ctrl+C or SIGTERM); in-flight submissions finish
before exit.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides config)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent submissions (overrides config)")

	return cmd
}

func runWatch(cmd *cobra.Command, opts *WatchOptions, dir string) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, layout, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, configErrCode(err), "failed to load config", err)
	}
	if opts.MetricsAddr != "" {
		cfg.Metrics.Addr = opts.MetricsAddr
	}
	workers := cfg.GetWorkers()
	if opts.Workers > 0 {
		workers = opts.Workers
	}

	b, err := openBackend(cfg, layout)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBackend, "failed to open backend", err)
	}
	defer b.closeLogged()

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if cfg.Metrics.Addr != "" {
		stop, err := serveMetrics(cfg.Metrics.Addr, reg)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to serve metrics", err)
		}
		defer stop()
	}

	watcher := intake.NewWatcher(dir, b.handler(b.coordinator(reg)), intake.WithConcurrency(workers))

	formatter.VerboseLog("watching %s (press Ctrl+C to stop)", dir)

	if err := watcher.Run(ctx); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "watch failed", err)
	}

	slog.Info("watch stopped")
	return nil
}

// serveMetrics starts the /metrics endpoint and returns a func that shuts
// it down.
func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	// Surface immediate bind failures.
	select {
	case err := <-errCh:
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	case <-time.After(50 * time.Millisecond):
	}
	slog.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("metrics server shutdown", "error", err)
		}
		<-errCh
	}, nil
}
