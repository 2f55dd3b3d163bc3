package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/san-kum/dyncouple/internal/checkpoint"
	"github.com/san-kum/dyncouple/internal/config"
	"github.com/san-kum/dyncouple/internal/coordinator"
	"github.com/san-kum/dyncouple/internal/engine"
	"github.com/san-kum/dyncouple/internal/metrics"
	"github.com/san-kum/dyncouple/internal/storage"
	"github.com/san-kum/dyncouple/internal/telemetry"
	"github.com/san-kum/dyncouple/internal/tui"
)

const defaultDataDir = config.DefaultDataDir

func resolveDataDir(cfg *config.Config) string {
	if dataDir != "" {
		return dataDir
	}
	if cfg != nil && cfg.Output.Target != "" {
		return cfg.OutputTarget()
	}
	return defaultDataDir
}

func runCoupling(cmd *cobra.Command, path string, live bool) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := storage.New(resolveDataDir(cfg))
	if err := st.Init(); err != nil {
		return err
	}

	ckpts, err := checkpoint.OpenStore(ctx, cfg.Restart.Store, cfg.Dir(), "")
	if err != nil {
		return err
	}
	defer ckpts.Close()

	var (
		sink *storage.CSVSink
		rec  *checkpoint.Record
	)
	if restart != "" {
		id, err := restartRun(st, restart)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("restart-time") {
			rec, err = ckpts.Load(ctx, id, restartTime)
		} else {
			rec, err = ckpts.Latest(ctx, id)
		}
		if err != nil {
			return err
		}
		if sink, err = st.Resume(id, rec.OutputIndex, rec.Time); err != nil {
			return err
		}
	} else {
		abs, _ := filepath.Abs(path)
		sink, err = st.Create(storage.RunMetadata{
			ID:                  runID,
			Config:              abs,
			Engines:             cfg.Engines.Names(),
			Start:               cfg.Time.Start,
			Stop:                cfg.Time.Stop,
			Interval:            cfg.Output.Interval,
			CoordinateReference: cfg.Output.CoordinateReference,
		})
		if err != nil {
			return err
		}
	}

	var logOut io.Writer = os.Stderr
	if live {
		f, err := os.OpenFile(filepath.Join(sink.Dir(), "coordinator.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}
	logger := telemetry.FromEnv(logLevel, logFormat, logOut).With(telemetry.RunID(sink.ID()))

	mgrOpts := []checkpoint.Option{checkpoint.WithLogger(logger)}
	if cfg.Restart.Backup {
		mgrOpts = append(mgrOpts, checkpoint.WithBackup(sink))
	}
	mgr := checkpoint.NewManager(sink.ID(), cfg.Restart.CheckpointTimes, cfg.Restart.Resolved, ckpts, mgrOpts...)

	summary := metrics.Default()
	opts := []coordinator.Option{
		coordinator.WithLogger(logger),
		coordinator.WithSink(sink),
		coordinator.WithCheckpoints(mgr),
		coordinator.WithObserver(summary),
	}

	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, coordinator.WithObserver(metrics.NewCollector(reg)))
		srv := serveMetrics(metricsAddr, reg, logger)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	c, err := coordinator.New(cfg, engine.NewRegistry(), opts...)
	if err != nil {
		_ = sink.Close()
		return err
	}

	if rec != nil {
		if err := c.Start(); err != nil {
			_ = c.Close()
			return err
		}
		if err := c.Resume(rec); err != nil {
			_ = c.Close()
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "resumed %s at t=%g (round %d)\n", sink.ID(), rec.Time, rec.Iteration)
	}

	began := time.Now()
	var status coordinator.Status
	if live {
		title := filepath.Base(path)
		status, err = tui.Run(ctx, title, c, cfg.Time.Start, cfg.Time.Stop)
		if err != nil {
			return err
		}
	} else {
		fmt.Printf("running %s (%d engines)...\n", filepath.Base(path), len(cfg.Engines))
		status = <-coordinator.Supervise(ctx, c)
	}

	fmt.Printf("run id: %s\n", sink.ID())
	fmt.Printf("reached t=%g after %d rounds in %v\n", status.Time, status.Iteration, time.Since(began).Round(time.Millisecond))
	fmt.Printf("records: %d\n", c.OutputIndex())
	if times, err := ckpts.List(ctx, sink.ID()); err == nil && len(times) > 0 {
		fmt.Printf("checkpoints: %v\n", times)
	}

	values := summary.Values()
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, values[name])
	}

	if status.Panicked {
		logger.Error("stack", slog.String("stack", string(status.Stack)))
	}
	if errors.Is(status.Err, context.Canceled) {
		fmt.Println("interrupted; resume with --restart", sink.ID())
		return nil
	}
	return status.Err
}

// restartRun resolves "latest" to the most recent run in st.
func restartRun(st *storage.Store, id string) (string, error) {
	if id != "latest" {
		return id, nil
	}
	runs, err := st.List()
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", storage.ErrRunNotFound
	}
	return runs[len(runs)-1].ID, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", telemetry.Error(err))
		}
	}()
	logger.Info("serving metrics", slog.String("addr", addr))
	return srv
}
