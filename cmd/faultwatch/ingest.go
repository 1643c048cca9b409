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

	"github.com/spf13/cobra"

	"github.com/setevik/faultwatch/internal/source"
)

type ingestOptions struct {
	input       string
	restart     bool
	restartWait time.Duration
	maxRestarts int
	metricsAddr string
}

func ingestCmd() *cobra.Command {
	opts := &ingestOptions{}

	cmd := &cobra.Command{
		Use:   "ingest [-- command [args...]]",
		Short: "Process fault records until input ends",
		Long: `Read JSON fault records, one per line, and run each through deduplication
and throttling. Input comes from --input, from the stdout of a command given
after --, or from stdin. When input ends or faultwatch receives SIGINT or
SIGTERM, a summary of suppressed faults is sent.

Examples:
  # Read from stdin
  myapp | faultwatch ingest

  # Run the host and restart it when it exits
  faultwatch ingest --restart -- myapp --serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "-", "file of JSON fault records (- for stdin)")
	cmd.Flags().BoolVar(&opts.restart, "restart", false, "restart the command when it exits")
	cmd.Flags().DurationVar(&opts.restartWait, "restart-wait", 5*time.Second, "delay before restarting the command")
	cmd.Flags().IntVar(&opts.maxRestarts, "max-restarts", 0, "give up after this many restarts (0 = unlimited)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides metrics.addr)")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string, opts *ingestOptions) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	sender, err := a.sender()
	if err != nil {
		return err
	}
	if a.cfg.Notify.Destination == "" {
		slog.Warn("no notification destination configured, faults will only be counted")
	}

	src, closeInput, err := ingestSource(cmd, args, opts)
	if err != nil {
		return err
	}
	defer closeInput()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := opts.metricsAddr
	if addr == "" {
		addr = a.cfg.Metrics.Addr
	}
	if addr != "" {
		srv := &http.Server{Addr: addr, Handler: metricsMux(a), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "addr", addr, "error", err)
			}
		}()
		defer srv.Close()
		slog.Info("metrics server listening", "addr", addr)
	}

	slog.Info("faultwatch starting",
		"version", version,
		"instance", a.cfg.Instance.ID,
		"store", a.store.Location(),
		"throttle", a.cfg.ThrottleWindow(),
	)

	switch err := sdNotify("READY=1"); {
	case err == nil:
		go watchdog(ctx)
	case !errors.Is(err, errNoNotifySocket):
		slog.Warn("systemd readiness notification failed", "error", err)
	}

	err = a.newPipeline(sender).Run(ctx, src)

	_ = sdNotify("STOPPING=1")
	if a.store.Degraded() {
		slog.Warn("stats were kept in memory only for this run", "store", a.store.Location())
	}
	return err
}

// ingestSource picks the fault source from the arguments: a command after --,
// a file, or stdin.
func ingestSource(cmd *cobra.Command, args []string, opts *ingestOptions) (source.Source, func(), error) {
	noop := func() {}

	if len(args) > 0 {
		factory := func() source.Source { return source.NewCommandSource(args[0], args[1:]...) }
		if opts.restart {
			return source.NewSupervised(factory, opts.restartWait, opts.maxRestarts), noop, nil
		}
		return factory(), noop, nil
	}

	if opts.input == "" || opts.input == "-" {
		return source.NewReaderSource(cmd.InOrStdin(), "stdin"), noop, nil
	}

	f, err := os.Open(opts.input)
	if err != nil {
		return nil, nil, fmt.Errorf("opening input: %w", err)
	}
	return source.NewReaderSource(f, opts.input), func() { f.Close() }, nil
}

func metricsMux(a *app) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	return mux
}

// watchdog pings the systemd watchdog at half its interval until ctx ends.
func watchdog(ctx context.Context) {
	interval := watchdogInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	slog.Info("systemd watchdog enabled", "interval", interval)

	for {
		select {
		case <-ticker.C:
			if err := sdNotify("WATCHDOG=1"); err != nil {
				slog.Debug("systemd watchdog ping failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
