package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/rushorts/internal/logger"
	"github.com/forPelevin/rushorts/internal/metrics"
	"github.com/forPelevin/rushorts/internal/pipeline"
	"github.com/forPelevin/rushorts/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "watch <dir>",
		Short:        "Process every new video dropped into a directory",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch(cmd, args[0])
		},
	}
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	cmd.Flags().Int("concurrency", 1, "Videos processed at the same time")
	return cmd
}

func watch(cmd *cobra.Command, dir string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	addr, _ := cmd.Flags().GetString("metrics-addr")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	log := logger.New(cfg.Logging.Level)
	m := metrics.New(nil)

	r, err := pipeline.New(pipeline.Options{Config: cfg, Log: log, Metrics: m})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr != "" {
		srv := metricsServer(addr, m)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(ctx, "metrics server: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		log.Info(ctx, "serving metrics on %s/metrics", addr)
	}

	w, err := watcher.New(dir, func(ctx context.Context, path string) error {
		ctx, cancel := context.WithTimeout(ctx, runTimeout)
		defer cancel()
		res, err := r.Run(ctx, path)
		if err != nil {
			return err
		}
		log.Info(ctx, "%s: %d highlights, manifest %s", path, len(res.Manifest.Highlights), res.ManifestPath)
		return nil
	}, log, watcher.Options{MaxConcurrent: concurrency})
	if err != nil {
		return err
	}
	defer w.Stop()

	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func metricsServer(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
