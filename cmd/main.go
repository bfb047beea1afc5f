package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kumarabd/gokit/logger"
	"github.com/sentinel-ops/log-sentinel/internal/config"
	"github.com/sentinel-ops/log-sentinel/internal/metrics"
	"github.com/sentinel-ops/log-sentinel/pkg/aggregator"
	"github.com/sentinel-ops/log-sentinel/pkg/analyzer"
	"github.com/sentinel-ops/log-sentinel/pkg/batcher"
	"github.com/sentinel-ops/log-sentinel/pkg/cache"
	"github.com/sentinel-ops/log-sentinel/pkg/dispatcher"
	"github.com/sentinel-ops/log-sentinel/pkg/filter"
	"github.com/sentinel-ops/log-sentinel/pkg/model"
	"github.com/sentinel-ops/log-sentinel/pkg/pipeline"
	"github.com/sentinel-ops/log-sentinel/pkg/ratelimit"
	"github.com/sentinel-ops/log-sentinel/pkg/server"
	"github.com/sentinel-ops/log-sentinel/pkg/signature"
	"github.com/sentinel-ops/log-sentinel/pkg/watcher"
)

// main is the entry point of the application
func main() {
	// Initialize a new logger with the application name and syslog format
	log, err := logger.New(config.ApplicationName, logger.Options{
		Format: logger.SyslogLogFormat,
	})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	// Initialize a new configuration handler
	configHandler, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("")
		os.Exit(1)
	}

	// Initialize a new metrics handler with the application name
	metricsHandler, err := metrics.New(config.ApplicationName)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	// Resolve the kind of log being watched
	source, err := model.ParseLogSource(configHandler.Source)
	if err != nil {
		log.Error().Err(err).Msg("invalid log source")
		os.Exit(1)
	}

	// Load the signature set. A configured file that fails to load is a
	// startup error, never a silent fallback.
	var store *signature.Store
	if configHandler.SignatureFile != "" {
		store, err = signature.Load(configHandler.SignatureFile)
		if err != nil {
			log.Error().Err(err).Str("path", configHandler.SignatureFile).Msg("signature load failed")
			os.Exit(1)
		}
	} else {
		store, err = signature.New(signature.Defaults(), signature.DefaultErrorCodes())
		if err != nil {
			log.Error().Err(err).Msg("built-in signature set is invalid")
			os.Exit(1)
		}
	}
	suspicionFilter := filter.New(store)

	// Classifier backend, benign-verdict cache and analysis agent
	provider, err := analyzer.NewProvider(configHandler.Analyzer)
	if err != nil {
		log.Error().Err(err).Msg("classifier initialization failed")
		os.Exit(1)
	}
	verdicts, err := cache.New(configHandler.Analyzer.CacheTTL)
	if err != nil {
		log.Error().Err(err).Msg("verdict cache initialization failed")
		os.Exit(1)
	}
	agent := analyzer.NewAgent(configHandler.Analyzer, provider, verdicts, log, metricsHandler)
	log.Info().Str("provider", agent.ProviderName()).Msg("classifier initialized")

	// Alert rate limiter and dispatcher
	limiter, err := ratelimit.New(configHandler.RateLimit)
	if err != nil {
		log.Error().Err(err).Msg("rate limiter initialization failed")
		os.Exit(1)
	}
	sinks := dispatcher.BuildSinks(configHandler.Dispatch, log)
	dispatchHandler := dispatcher.New(configHandler.Dispatch, sinks, limiter, log, metricsHandler)
	log.Info().Int("sinks", len(sinks)).Msg("dispatcher initialized")

	// Batch scheduler between the filter and the classifier
	batchHandler := batcher.New(configHandler.Batch, agent, dispatchHandler, source, log)

	// Aggregator and file watcher feeding the pipeline
	agg, err := aggregator.New(configHandler.Aggregator)
	if err != nil {
		log.Error().Err(err).Msg("aggregator initialization failed")
		os.Exit(1)
	}
	watchHandler := watcher.New(configHandler.Watcher, log, metricsHandler)

	pipe := pipeline.New(watchHandler, agg, suspicionFilter, batchHandler,
		source, configHandler.Watcher.QueueSize, log, metricsHandler)
	log.Info().
		Str("path", configHandler.Watcher.Path).
		Str("source", source.String()).
		Msg("pipeline initialized")

	// Create and start the observability server
	srv := server.NewHTTP(configHandler.Server, log, metricsHandler, verdicts)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Run the pipeline with graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := make(chan error, 1)
	go func() {
		runErr <- pipe.Run(ctx)
	}()

	var exitErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case exitErr = <-runErr:
		if exitErr != nil {
			log.Error().Err(exitErr).Msg("pipeline terminated")
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Flush any pending batch before the process exits
	if err := pipe.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("pipeline close failed")
	}
	log.Info().Msg("pipeline stopped")

	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server stop failed")
	}
	log.Info().Msg("server stopped")

	if exitErr != nil {
		os.Exit(1)
	}
}
