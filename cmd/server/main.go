// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

// Package main is the entry point for the InnSight server.
//
// InnSight ingests hotel reviews over a REST API and analyzes their
// sentiment asynchronously through an event pipeline. The server binary
// runs the full system in one process:
//
//  1. Configuration: layered settings from env vars and config.yaml (Koanf v2)
//  2. Database: DuckDB store for hotels, reviews, and analysis outcomes
//  3. Broker: embedded NATS JetStream server (or an external one via nats.url)
//  4. Stream: REVIEWS stream provisioning with deduplication window
//  5. Pipeline: analysis workers and result consumers on a Watermill router
//  6. HTTP API: hotel and review endpoints, health, and Prometheus metrics
//
// Components run under a suture supervision tree; a crashing component
// is restarted with backoff while the rest keep serving.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - INNSIGHT_* environment variables
//   - Config file (config.yaml, or INNSIGHT_CONFIG)
//   - Built-in defaults
//
// Set INNSIGHT_NATS_EMBEDDED_SERVER=false and INNSIGHT_NATS_URL to use
// an external JetStream server; pair this with worker binaries for a
// horizontally scaled deployment.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests, the router finishes in-flight messages, and the
// broker and database close last.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	natsgo "github.com/nats-io/nats.go"

	"github.com/innsight/innsight/internal/api"
	"github.com/innsight/innsight/internal/config"
	"github.com/innsight/innsight/internal/database"
	"github.com/innsight/innsight/internal/eventpipeline"
	"github.com/innsight/innsight/internal/logging"
	"github.com/innsight/innsight/internal/sentiment"
	"github.com/innsight/innsight/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("server failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Bool("embedded_broker", cfg.NATS.EmbeddedServer).
		Msg("starting innsight server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(database.Config{
		Path:      cfg.Database.Path,
		MaxMemory: cfg.Database.MaxMemory,
		Threads:   cfg.Database.Threads,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	// Broker: embedded JetStream server unless an external one is
	// configured.
	natsURL := cfg.NATS.URL
	if cfg.NATS.EmbeddedServer {
		serverCfg := eventpipeline.DefaultServerConfig()
		serverCfg.StoreDir = cfg.NATS.StoreDir
		serverCfg.JetStreamMaxMem = cfg.NATS.MaxMemory
		serverCfg.JetStreamMaxStore = cfg.NATS.MaxStore

		broker, err := eventpipeline.NewEmbeddedServer(&serverCfg)
		if err != nil {
			return fmt.Errorf("start embedded broker: %w", err)
		}
		natsURL = broker.ClientURL()
		tree.AddBrokerService(supervisor.NewBrokerService(broker, 10*time.Second))
	}

	// Stream provisioning happens before any publisher or subscriber
	// connects; both sides assume the stream exists.
	nc, err := natsgo.Connect(natsURL)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	streamCfg := eventpipeline.DefaultStreamConfig()
	streamCfg.MaxAge = cfg.NATS.StreamRetention
	streamManager, err := eventpipeline.NewStreamManager(nc, &streamCfg)
	if err != nil {
		return fmt.Errorf("create stream manager: %w", err)
	}
	if _, err := streamManager.EnsureStream(ctx); err != nil {
		return fmt.Errorf("provision stream: %w", err)
	}

	wmLogger := eventpipeline.NewWatermillLogger()

	publisher, err := eventpipeline.NewPublisher(eventpipeline.DefaultPublisherConfig(natsURL), wmLogger)
	if err != nil {
		return fmt.Errorf("create publisher: %w", err)
	}
	defer publisher.Close()
	publisher.SetCircuitBreaker(eventpipeline.NewCircuitBreaker(
		eventpipeline.DefaultCircuitBreakerConfig("event-publisher")))

	router, err := buildPipeline(cfg, natsURL, db, publisher, wmLogger)
	if err != nil {
		return err
	}
	defer router.Close()
	tree.AddPipelineService(supervisor.NewRouterService(router))

	// HTTP API.
	handler := api.NewHandler(db, publisher, cfg.Server.MaxWait)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(handler, cfg.Server),
		ReadHeaderTimeout: 10 * time.Second,
		// ?wait= requests block up to MaxWait, so the write timeout
		// must exceed it.
		WriteTimeout: cfg.Server.MaxWait + cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}
	tree.AddAPIService(supervisor.NewHTTPService(httpServer, cfg.Server.Timeout))

	logging.Info().Str("addr", httpServer.Addr).Msg("innsight server ready")

	err = tree.Serve(ctx)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervision tree: %w", err)
	}
	logging.Info().Msg("innsight server stopped")
	return nil
}

// buildPipeline assembles the analysis workers and result consumers on
// one Watermill router. Both handler groups share the poison publisher
// so dead letters from either land on the dlq.* subjects of the review
// stream.
func buildPipeline(
	cfg *config.Config,
	natsURL string,
	db *database.DB,
	publisher *eventpipeline.Publisher,
	wmLogger watermill.LoggerAdapter,
) (*eventpipeline.Router, error) {
	router, err := eventpipeline.NewRouter(nil, publisher.WatermillPublisher(), wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	policy := retryPolicy(cfg.Pipeline)

	analyzer := sentiment.NewLexicon(sentiment.Config{
		MaxTextLength: cfg.Sentiment.MaxTextLength,
		ModelWeight:   cfg.Sentiment.ModelWeight,
		RatingWeight:  cfg.Sentiment.RatingWeight,
	})
	analysisHandler, err := eventpipeline.NewAnalysisHandler(analyzer, eventpipeline.AnalysisHandlerConfig{
		MaxAttempts:    cfg.Pipeline.MaxAttempts,
		AnalyzeTimeout: cfg.Pipeline.AnalyzeTimeout,
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create analysis handler: %w", err)
	}

	workerSubCfg := subscriberConfig(eventpipeline.WorkerSubscriberConfig(natsURL), cfg.NATS)
	workerSub, err := eventpipeline.NewSubscriber(&workerSubCfg, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create worker subscriber: %w", err)
	}

	router.AddWorkerHandler(
		"analysis-worker",
		eventpipeline.TopicReviewCreated,
		workerSub.WatermillSubscriber(),
		eventpipeline.TopicAnalysisCompleted,
		publisher.WatermillPublisher(),
		policy,
		analysisHandler.Handle,
	)

	resultHandler, err := eventpipeline.NewResultHandler(db, eventpipeline.ResultHandlerConfig{
		ApplyTimeout: cfg.Pipeline.ApplyTimeout,
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create result handler: %w", err)
	}

	consumerSubCfg := subscriberConfig(eventpipeline.ConsumerSubscriberConfig(natsURL), cfg.NATS)
	consumerSub, err := eventpipeline.NewSubscriber(&consumerSubCfg, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create consumer subscriber: %w", err)
	}

	router.AddConsumerHandler(
		"result-consumer",
		eventpipeline.TopicAnalysisCompleted,
		consumerSub.WatermillSubscriber(),
		policy,
		resultHandler.Handle,
	)

	return router, nil
}

// retryPolicy maps the pipeline configuration onto a retry policy.
func retryPolicy(cfg config.PipelineConfig) *eventpipeline.RetryPolicy {
	policy := eventpipeline.NewRetryPolicyWithSeed(0)
	policy.MaxAttempts = cfg.MaxAttempts
	policy.InitialBackoff = cfg.InitialBackoff
	policy.MaxBackoff = cfg.MaxBackoff
	policy.BackoffMultiplier = cfg.BackoffMultiplier
	policy.JitterFraction = cfg.JitterFraction
	return policy
}

// subscriberConfig overlays configured delivery knobs on a per-role
// subscriber base.
func subscriberConfig(base eventpipeline.SubscriberConfig, cfg config.NATSConfig) eventpipeline.SubscriberConfig {
	if cfg.Subscribers > 0 {
		base.SubscribersCount = cfg.Subscribers
	}
	if cfg.AckWait > 0 {
		base.AckWaitTimeout = cfg.AckWait
	}
	if cfg.MaxDeliver > 0 {
		base.MaxDeliver = cfg.MaxDeliver
	}
	if cfg.MaxAckPending > 0 {
		base.MaxAckPending = cfg.MaxAckPending
	}
	return base
}
