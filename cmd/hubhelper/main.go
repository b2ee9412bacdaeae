package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hubhelper/internal/config"
	"hubhelper/internal/hub/client"
	"hubhelper/internal/hub/metrics"
	"hubhelper/internal/hub/publisher"
	"hubhelper/internal/hub/reader"
	"hubhelper/internal/hub/tracing"
	"hubhelper/internal/web"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	environ := os.Environ()

	cfg, err := config.Load(environ)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	settings, err := config.LoadSettings(cfg.SettingsFile, environ)
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return fmt.Errorf("failed to load settings: %w", err)
	}

	logger.Info("settings loaded",
		zap.String("hub", settings.EventHubName),
		zap.String("consumer_group", settings.ConsumerGroup),
	)

	metricsRegistry := metrics.NewRegistry()
	metricsRegistry.SetSystemInfo(version, time.Now().Format(time.RFC3339))
	metricsServer := metrics.NewServer(cfg.Metrics, metricsRegistry, logger)

	tracer, tracingCleanup, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingCleanup(shutdownCtx); err != nil {
			logger.Error("failed to cleanup tracing", zap.Error(err))
		}
	}()

	logger.Info("tracing initialized",
		zap.Bool("enabled", cfg.Tracing.Enabled),
		zap.String("service", cfg.Tracing.ServiceName),
		zap.String("otlp_endpoint", cfg.Tracing.OTLPEndpoint),
		zap.Float64("sample_rate", cfg.Tracing.SampleRate),
	)

	basePublisher, err := publisher.NewPublisher(client.NewProducerFactory(settings, cfg.Client), logger)
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}
	metricsPublisher := publisher.NewMetricsPublisher(basePublisher, metricsRegistry, settings.EventHubName)
	pub := publisher.NewTracedPublisher(metricsPublisher, tracer, settings.EventHubName)

	baseReader, err := reader.NewReader(client.NewConsumerFactory(settings, cfg.Client), cfg.Reader, logger)
	if err != nil {
		return fmt.Errorf("failed to create reader: %w", err)
	}
	metricsReader := reader.NewMetricsReader(baseReader, metricsRegistry, settings)
	rdr := reader.NewTracedReader(metricsReader, tracer, settings)

	handlers, err := web.NewHandlers(pub, rdr, metricsRegistry, logger)
	if err != nil {
		return fmt.Errorf("failed to create web handlers: %w", err)
	}
	webServer := web.NewServer(cfg.HTTP, handlers.Routes(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return metricsServer.Start(gctx)
	})
	g.Go(func() error {
		return webServer.Start(gctx)
	})

	metricsServer.SetReady(true)
	logger.Info("hubhelper started",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("metrics", fmt.Sprintf("http://localhost:%d/metrics", cfg.Metrics.Port)),
	)

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return err
	}

	logger.Info("hubhelper stopped")
	return nil
}
