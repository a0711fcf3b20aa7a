// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

// Package main is the entry point for the InnSight analysis worker.
//
// The worker binary runs the stateless analysis stage of the pipeline:
// it consumes review.created, runs sentiment analysis, and publishes
// analysis.completed. It never touches the review store; DuckDB allows
// a single writer process, so the result consumer that applies outcomes
// stays in the server binary. Because analysis is stateless, any number
// of worker processes can compete on the same durable queue group.
//
// Workers connect to an external NATS JetStream server (nats.url) and
// expect the server binary to have provisioned the REVIEWS stream; the
// worker still ensures it on startup so either process can start first.
//
// A small operational HTTP listener exposes /healthz and /metrics.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/go-chi/chi/v5"
	natsgo "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/innsight/innsight/internal/config"
	"github.com/innsight/innsight/internal/eventpipeline"
	"github.com/innsight/innsight/internal/logging"
	"github.com/innsight/innsight/internal/sentiment"
	"github.com/innsight/innsight/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("worker failed")
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
		Str("nats_url", cfg.NATS.URL).
		Int("subscribers", cfg.NATS.Subscribers).
		Msg("starting innsight worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nc, err := natsgo.Connect(cfg.NATS.URL)
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

	publisher, err := eventpipeline.NewPublisher(eventpipeline.DefaultPublisherConfig(cfg.NATS.URL), wmLogger)
	if err != nil {
		return fmt.Errorf("create publisher: %w", err)
	}
	defer publisher.Close()
	publisher.SetCircuitBreaker(eventpipeline.NewCircuitBreaker(
		eventpipeline.DefaultCircuitBreakerConfig("event-publisher")))

	router, err := buildAnalysisPipeline(cfg, publisher, wmLogger)
	if err != nil {
		return err
	}
	defer router.Close()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(supervisor.NewRouterService(router))

	opsServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           opsHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	tree.AddAPIService(supervisor.NewHTTPService(opsServer, cfg.Server.Timeout))

	logging.Info().Msg("innsight worker ready")

	err = tree.Serve(ctx)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervision tree: %w", err)
	}
	logging.Info().Msg("innsight worker stopped")
	return nil
}

// opsHandler serves health and metrics only; the REST API lives in the
// server binary.
func opsHandler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// buildAnalysisPipeline wires the analysis worker handler on its own
// router. Dead letters go through the shared poison publisher to dlq.*
// subjects on the review stream.
func buildAnalysisPipeline(
	cfg *config.Config,
	publisher *eventpipeline.Publisher,
	wmLogger watermill.LoggerAdapter,
) (*eventpipeline.Router, error) {
	router, err := eventpipeline.NewRouter(nil, publisher.WatermillPublisher(), wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	policy := eventpipeline.NewRetryPolicyWithSeed(0)
	policy.MaxAttempts = cfg.Pipeline.MaxAttempts
	policy.InitialBackoff = cfg.Pipeline.InitialBackoff
	policy.MaxBackoff = cfg.Pipeline.MaxBackoff
	policy.BackoffMultiplier = cfg.Pipeline.BackoffMultiplier
	policy.JitterFraction = cfg.Pipeline.JitterFraction

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

	subCfg := eventpipeline.WorkerSubscriberConfig(cfg.NATS.URL)
	if cfg.NATS.Subscribers > 0 {
		subCfg.SubscribersCount = cfg.NATS.Subscribers
	}
	if cfg.NATS.AckWait > 0 {
		subCfg.AckWaitTimeout = cfg.NATS.AckWait
	}
	if cfg.NATS.MaxDeliver > 0 {
		subCfg.MaxDeliver = cfg.NATS.MaxDeliver
	}
	if cfg.NATS.MaxAckPending > 0 {
		subCfg.MaxAckPending = cfg.NATS.MaxAckPending
	}
	sub, err := eventpipeline.NewSubscriber(&subCfg, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create worker subscriber: %w", err)
	}

	router.AddWorkerHandler(
		"analysis-worker",
		eventpipeline.TopicReviewCreated,
		sub.WatermillSubscriber(),
		eventpipeline.TopicAnalysisCompleted,
		publisher.WatermillPublisher(),
		policy,
		analysisHandler.Handle,
	)

	return router, nil
}
