// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

package eventpipeline

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// Router wraps the Watermill router with the pipeline's middleware
// stack. Per delivery the flow is:
//
//	quarantine -> retry -> recoverer -> handler
//
// The recoverer converts handler panics to errors so the retry policy
// sees them; retry re-invokes the handler with backoff until the policy
// gives up; quarantine, outermost, routes whatever retry gave up on to
// the paired dead-letter subject and acknowledges the original. A nil
// handler error acknowledges the delivery after any produced messages
// are published.
type Router struct {
	router    *message.Router
	config    RouterConfig
	logger    watermill.LoggerAdapter
	poisonPub message.Publisher
	handlers  map[string]*message.Handler
}

// NewRouter creates a router. poisonPublisher must be a confirmed
// publisher on the review stream so dead letters are durable before
// the original is acknowledged; a nil poisonPublisher disables
// quarantine and failed messages stay with the broker's redelivery.
func NewRouter(cfg *RouterConfig, poisonPublisher message.Publisher, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	if cfg == nil {
		defaultCfg := DefaultRouterConfig()
		cfg = &defaultCfg
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	return &Router{
		router:    wmRouter,
		config:    *cfg,
		logger:    logger,
		poisonPub: poisonPublisher,
		handlers:  make(map[string]*message.Handler),
	}, nil
}

// AddWorkerHandler registers a handler that consumes subscribeTopic and
// publishes its produced messages to publishTopic before the input is
// acknowledged.
func (r *Router) AddWorkerHandler(
	name string,
	subscribeTopic string,
	subscriber message.Subscriber,
	publishTopic string,
	publisher message.Publisher,
	policy *RetryPolicy,
	handler message.HandlerFunc,
) *message.Handler {
	h := r.router.AddHandler(
		name,
		subscribeTopic,
		subscriber,
		publishTopic,
		publisher,
		handler,
	)
	h.AddMiddleware(r.handlerMiddleware(subscribeTopic, name, policy)...)
	r.handlers[name] = h
	return h
}

// AddConsumerHandler registers a handler that produces no output
// messages, with the same retry and recovery stack as worker handlers.
func (r *Router) AddConsumerHandler(
	name string,
	subscribeTopic string,
	subscriber message.Subscriber,
	policy *RetryPolicy,
	handler message.NoPublishHandlerFunc,
) *message.Handler {
	h := r.router.AddConsumerHandler(
		name,
		subscribeTopic,
		subscriber,
		handler,
	)
	h.AddMiddleware(r.handlerMiddleware(subscribeTopic, name, policy)...)
	r.handlers[name] = h
	return h
}

// handlerMiddleware builds the per-handler stack. Middleware executes
// in the order added, first outermost: quarantine sees only failures
// retry gave up on, and the recoverer converts panics to errors the
// retry policy can act on.
func (r *Router) handlerMiddleware(subscribeTopic, name string, policy *RetryPolicy) []message.HandlerMiddleware {
	stack := make([]message.HandlerMiddleware, 0, 3)
	if r.poisonPub != nil {
		stack = append(stack, QuarantineMiddleware(r.poisonPub, subscribeTopic))
	}
	stack = append(stack, policy.Middleware(name), middleware.Recoverer)
	return stack
}

// Run starts the router and blocks until context cancellation or
// Close.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running returns a channel that closes once the router is running.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close gracefully stops the router, waiting up to CloseTimeout for
// in-flight handlers.
func (r *Router) Close() error {
	return r.router.Close()
}
