// Command pharmd runs the pharmaceutical chain-of-custody service: the
// registry and ledger API, the custody report exporter, and the background
// expiry sweep.
package main

import (
	"context"
	"expvar"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pharmxchain/internal/adapters/reports"
	"pharmxchain/internal/adapters/rest"
	"pharmxchain/internal/blob"
	"pharmxchain/internal/config"
	"pharmxchain/internal/core"
	"pharmxchain/internal/directory"
	"pharmxchain/internal/logging"
)

func main() {
	configPath := flag.String("config", "config/pharmd.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.New(cfg.App.Env)

	engine := core.NewDefaultRulesEngine()
	store, err := openStore(cfg, engine)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore(store)
	log.Info("store opened", "driver", cfg.Storage.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	blobStore, err := openBlob(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	dir := directory.NewInMemory()

	opts := []core.Option{
		core.WithLogger(log),
		core.WithLowStockThreshold(cfg.Ledger.LowStockThreshold),
	}
	alertSinks := []core.AlertSink{core.LogAlertSink{Logger: log}}
	if cfg.Metrics.Enabled {
		prom := core.NewPrometheusMetricsRecorder(nil)
		opts = append(opts, core.WithMetrics(prom))
		alertSinks = append(alertSinks, prom)
	} else {
		// Without a scrape target, keep process-local counters on /debug/vars.
		opts = append(opts, core.WithMetrics(core.NewExpvarMetricsRecorder("pharmd_ledger")))
	}
	opts = append(opts, core.WithAlertSink(core.MultiAlertSink(alertSinks...)))
	if cfg.App.Env == "dev" {
		opts = append(opts, core.WithTracer(core.NewJSONTracer(os.Stdout)))
	}
	service := core.NewService(store, dir, opts...)

	exporter := reports.NewExporter(service, blobStore, log)
	exporter.Start()

	handler := rest.NewHandler(service)
	handler.Directory = dir
	handler.Exports = exporter

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", handler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if cfg.Metrics.Enabled {
		mux.Handle("/metrics", promhttp.Handler())
	} else {
		mux.Handle("/debug/vars", expvar.Handler())
	}

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			stop()
		}
	}()
	log.Info("http server started", "addr", cfg.HTTP.Addr)

	if interval, err := time.ParseDuration(cfg.Ledger.SweepInterval); err == nil && interval > 0 {
		go sweepLoop(ctx, service, log, interval)
		log.Info("expiry sweep scheduled", "interval", interval.String())
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = exporter.Stop(shutdownCtx)
	log.Info("graceful shutdown complete")
	return nil
}

func openStore(cfg config.Config, engine *core.RulesEngine) (core.PersistentStore, error) {
	return core.OpenPersistentStore(core.StorageDriver(cfg.Storage.Driver), cfg.Storage.SQLitePath, cfg.Storage.DSN, engine)
}

func closeStore(store core.PersistentStore) {
	if closer, ok := store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}

func openBlob(ctx context.Context, cfg config.Config) (blob.Store, error) {
	switch blob.Driver(cfg.Blob.Driver) {
	case blob.DriverFilesystem:
		return blob.NewFilesystem(cfg.Blob.FSRoot)
	case blob.DriverMemory:
		return blob.NewMemory(), nil
	case blob.DriverS3:
		return blob.OpenS3FromEnv(ctx)
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Blob.Driver)
	}
}

func sweepLoop(ctx context.Context, service *core.Service, log *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := service.SweepExpiredBatches(ctx); err != nil {
				log.Error("expiry sweep failed", "err", err)
			}
		}
	}
}
