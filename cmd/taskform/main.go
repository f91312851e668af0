package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Joseda-hg/taskform/internal/config"
	"github.com/Joseda-hg/taskform/internal/gateway"
	"github.com/Joseda-hg/taskform/internal/metrics"
	"github.com/Joseda-hg/taskform/internal/tui"
)

func main() {
	configPathFlag := flag.String("config", "", "config file path")
	apiFlag := flag.String("api", "", "task server base URL")
	timeoutFlag := flag.Duration("timeout", 0, "per-request timeout (0 disables)")
	flag.Parse()

	cfgPath, err := resolveConfigPath(*configPathFlag)
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := config.Prepare(cfgPath, func(cfg *config.Config) {
		if *apiFlag != "" {
			cfg.APIURL = *apiFlag
		}
		if *timeoutFlag != 0 {
			cfg.RequestTimeout = config.Duration(*timeoutFlag)
		}
	}, ".env")
	if err != nil {
		log.Fatal(err)
	}

	logger, closeLog, err := openLogger(filepath.Join(filepath.Dir(cfgPath), "taskform.log"), cfg.Level())
	if err != nil {
		log.Fatal(err)
	}
	defer closeLog()

	var gatewayMetrics metrics.GatewayMetrics = metrics.Nop{}
	if cfg.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		gatewayMetrics = metrics.NewPromGateway(registry)
		go serveMetrics(logger, cfg.MetricsAddr, registry)
	}

	client := gateway.New(cfg.APIURL,
		gateway.WithTimeout(cfg.RequestTimeout.Std()),
		gateway.WithMetrics(gatewayMetrics),
		gateway.WithLogger(logger),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting form", "api", cfg.APIURL, "timeout", cfg.RequestTimeout.Std())
	if err := tui.Run(ctx, client, tui.Options{
		FlashWindow: cfg.FlashWindow.Std(),
		Logger:      logger,
	}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveConfigPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return config.DefaultConfigPath()
}

// openLogger writes to a file so log lines never land on the terminal UI.
func openLogger(path string, level slog.Level) (*slog.Logger, func(), error) {
	if err := config.EnsureDir(path); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: level}))
	return logger, func() { _ = file.Close() }, nil
}

func serveMetrics(logger *slog.Logger, addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		logger.Warn("metrics listener stopped", "addr", addr, "err", err)
	}
}
