// Command symbolicator-api runs the HTTP symbolication service: it wires
// configuration, a sym file backend, a disk-backed symcache, a breakpad
// parser, metrics, and the acquire/symbolicate core into an http.Server,
// following the same Start/Shutdown shape as the teacher's uploader
// extension (uploader-extension/uploader.go) adapted to a standalone
// process instead of a collector extension.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"

	"github.com/honeycombio/crash-symbolicator/internal/acquire"
	"github.com/honeycombio/crash-symbolicator/internal/api"
	"github.com/honeycombio/crash-symbolicator/internal/breakpad"
	"github.com/honeycombio/crash-symbolicator/internal/cache"
	"github.com/honeycombio/crash-symbolicator/internal/config"
	"github.com/honeycombio/crash-symbolicator/internal/logging"
	metricsinternal "github.com/honeycombio/crash-symbolicator/internal/metrics"
	"github.com/honeycombio/crash-symbolicator/internal/store"
	"github.com/honeycombio/crash-symbolicator/internal/symbolicate"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, err := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	downloader, err := buildDownloader(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build downloader: %w", err)
	}

	diskCache, err := cache.NewDiskCache(cfg.CacheDir, cfg.CacheLRUSize)
	if err != nil {
		return fmt.Errorf("build cache: %w", err)
	}

	parser := breakpad.NewParser()

	meterProvider := metric.NewMeterProvider()
	defer meterProvider.Shutdown(context.Background()) //nolint:errcheck
	recorder, err := metricsinternal.New(meterProvider.Meter("crash-symbolicator"))
	if err != nil {
		return fmt.Errorf("build metrics: %w", err)
	}

	acquirer := acquire.New(downloader, diskCache, parser, recorder, logger)
	symbolicator := symbolicate.New(acquirer, recorder)
	core := api.NewCore(symbolicator, recorder, logger)

	mux := http.NewServeMux()
	api.Register(mux, core)

	handler := http.TimeoutHandler(mux, cfg.RequestTimeout, "request timed out")

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildDownloader(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Downloader, error) {
	switch cfg.SymStoreKey {
	case "local":
		return store.NewLocal(logger, cfg.Local)
	case "s3":
		return store.NewS3(ctx, logger, cfg.S3)
	case "gcs":
		return store.NewGCS(ctx, logger, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown sym_store %q", cfg.SymStoreKey)
	}
}
