package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Joseda-hg/taskform/internal/config"
	"github.com/Joseda-hg/taskform/internal/db"
	"github.com/Joseda-hg/taskform/internal/metrics"
	"github.com/Joseda-hg/taskform/internal/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPathFlag := flag.String("config", "", "config file path")
	dbPathFlag := flag.String("db", "", "sqlite db path")
	listenFlag := flag.String("listen", "", "listen address")
	flag.Parse()

	cfgPath, err := resolveConfigPath(*configPathFlag)
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := config.Prepare(cfgPath, func(cfg *config.Config) {
		if *dbPathFlag != "" {
			cfg.DBPath = *dbPathFlag
		}
		if cfg.DBPath == "" {
			cfg.DBPath = filepath.Join(filepath.Dir(cfgPath), "tasks.db")
		}
		if *listenFlag != "" {
			cfg.ListenAddr = *listenFlag
		}
	}, ".env")
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	store, err := openStore(cfg.DBPath)
	if err != nil {
		log.Fatal(err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mux := http.NewServeMux()
	mux.Handle("/api/", web.NewServer(store,
		web.WithLogger(logger),
		web.WithMetrics(metrics.NewPromServer(registry)),
	).Handler())
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("task server listening", "addr", cfg.ListenAddr, "db", cfg.DBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("task server stopped", "err", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
			"sqlite": func(ctx context.Context) error {
				return store.DB.Close()
			},
		},
	)

	exitCode := <-wait
	logger.Info("task server exited", "code", exitCode)
	os.Exit(exitCode)
}

func resolveConfigPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return config.DefaultConfigPath()
}

func openStore(dbPath string) (*db.Store, error) {
	if dbPath != ":memory:" {
		if err := config.EnsureDir(dbPath); err != nil {
			return nil, err
		}
	}

	sqlDB, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}

	return db.NewStore(sqlDB), nil
}
