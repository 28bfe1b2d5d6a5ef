// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

// Command server runs the sentinel detection and response service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sentinelhq/sentinel/internal/api"
	"github.com/sentinelhq/sentinel/internal/breaker"
	"github.com/sentinelhq/sentinel/internal/config"
	"github.com/sentinelhq/sentinel/internal/detection"
	"github.com/sentinelhq/sentinel/internal/geo"
	"github.com/sentinelhq/sentinel/internal/logging"
	"github.com/sentinelhq/sentinel/internal/logsink"
	"github.com/sentinelhq/sentinel/internal/metrics"
	"github.com/sentinelhq/sentinel/internal/monitor"
	"github.com/sentinelhq/sentinel/internal/ratelimit"
	"github.com/sentinelhq/sentinel/internal/simulation"
	"github.com/sentinelhq/sentinel/internal/supervisor"
	"github.com/sentinelhq/sentinel/internal/supervisor/services"
	ws "github.com/sentinelhq/sentinel/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("starting sentinel")

	// Geolocation is optional; without a database only local/unknown
	// classification is available.
	var locator geo.Locator
	if cfg.Geo.DatabasePath != "" {
		maxmind, err := geo.NewMaxMindLocator(cfg.Geo.DatabasePath)
		if err != nil {
			logging.Warn().Err(err).Str("path", cfg.Geo.DatabasePath).Msg("geolocation database unavailable, continuing without")
			locator = geo.NoopLocator{}
		} else {
			locator = maxmind
			defer maxmind.Close()
		}
	} else {
		logging.Info().Msg("no geolocation database configured")
		locator = geo.NoopLocator{}
	}

	sink, err := logsink.New(cfg.Audit.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open incident log")
	}

	hub := ws.NewHub()
	limiter := ratelimit.NewTable(cfg.RateLimit.BlockDuration)
	requests := metrics.NewWindow(cfg.Metrics.WindowMaxLen, cfg.Metrics.WindowMaxAge)
	procErrors := metrics.NewWindow(cfg.Metrics.WindowMaxLen, cfg.Metrics.WindowMaxAge)
	history := detection.NewHistory(cfg.Detection.HistoryLimit)

	guard := breaker.New[*detection.Detection](breaker.Config{
		Name:             "anomaly-stage",
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Window:           cfg.Breaker.Window,
		CoolDown:         cfg.Breaker.CoolDown,
	})

	pipeline := detection.NewPipeline(
		[]detection.Stage{
			detection.NewSQLInjectionStage(),
			detection.NewXSSStage(),
			detection.NewPathTraversalStage(),
			detection.NewBruteForceStage(detection.BruteForceConfig{
				Threshold: cfg.Detection.BruteForceThreshold,
				Window:    cfg.Detection.BruteForceWindow,
			}),
			detection.NewCardTestingStage(detection.CardTestingConfig{
				Threshold: cfg.Detection.CardTestingThreshold,
				Window:    cfg.Detection.CardTestingWindow,
			}),
		},
		detection.NewAnomalyStage(&detection.HeuristicClassifier{
			MaxPayloadBytes: cfg.Detection.MaxPayloadBytes,
		}),
		guard,
		procErrors,
	)

	processor := detection.NewProcessor(detection.ProcessorDeps{
		Pipeline: pipeline,
		Limiter:  limiter,
		Hub:      hub,
		Sink:     sink,
		Locator:  locator,
		Requests: requests,
		Errors:   procErrors,
		History:  history,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	registry := monitor.NewRegistry(
		tree,
		monitor.NewHTTPBackend(cfg.Monitor.CheckTimeout),
		hub,
		processor,
		cfg.Monitor.StopTimeout,
	)

	var runner *simulation.Runner
	if cfg.Simulation.Enabled {
		runner = simulation.NewRunner(processor, hub)
	}

	reporter := &metrics.Reporter{
		Requests:      requests,
		Errors:        procErrors,
		ObserverCount: hub.ObserverCount,
		ActiveBlocks:  limiter.ActiveCount,
		BreakerStatus: func() string { return string(guard.Snapshot().Status) },
		Broadcast:     hub.Broadcast,
		Interval:      cfg.Metrics.BroadcastInterval,
	}

	handler := api.NewHandler(processor, registry, runner, hub, limiter, cfg.Server.MaxBodyBytes)
	mw := api.NewMiddleware(&api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Security.CORSOrigins,
		RateLimitRequests:  cfg.Security.RateLimitReqs,
		RateLimitWindow:    cfg.Security.RateLimitWindow,
		RateLimitDisabled:  cfg.Security.RateLimitDisabled,
	})
	router := api.NewRouter(handler, mw, limiter)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree.AddMessagingService(services.NewHubService(hub))
	tree.AddMessagingService(reporter)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
		cancel()
	}

	// Monitor tasks are removed explicitly so each one is awaited.
	if err := registry.StopAll(); err != nil {
		logging.Warn().Err(err).Msg("monitor shutdown reported errors")
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("service failed to stop within timeout")
	}

	logging.Info().Msg("sentinel stopped")
}
