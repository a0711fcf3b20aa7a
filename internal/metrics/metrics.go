// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

// Package metrics provides Prometheus instrumentation for the review
// pipeline: publishes, analyses, result applies, retries, and dead-letter
// routing. Metrics are registered with the default registry and exposed
// on the API's /metrics endpoint.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsPublished counts events durably accepted by the broker, by topic.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "innsight_events_published_total",
			Help: "Total number of events confirmed by the broker",
		},
		[]string{"topic"},
	)

	// PublishFailures counts publishes rejected or failed at the broker.
	PublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "innsight_publish_failures_total",
			Help: "Total number of failed event publishes",
		},
		[]string{"topic"},
	)

	// AnalysesTotal counts completed sentiment analyses by outcome
	// (success, error).
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "innsight_analyses_total",
			Help: "Total number of sentiment analyses by outcome",
		},
		[]string{"outcome"},
	)

	// AnalysisDuration observes sentiment inference latency.
	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "innsight_analysis_duration_seconds",
			Help:    "Duration of sentiment analysis calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// AppliesTotal counts result-consumer apply attempts by result
	// (applied, duplicate, failed).
	AppliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "innsight_outcome_applies_total",
			Help: "Total number of analysis outcome applies by result",
		},
		[]string{"result"},
	)

	// RetriesTotal counts handler retry attempts by handler name.
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "innsight_retries_total",
			Help: "Total number of message processing retries",
		},
		[]string{"handler"},
	)

	// DeadLettersTotal counts messages routed to quarantine by topic and
	// reason (malformed, exhausted).
	DeadLettersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "innsight_dead_letters_total",
			Help: "Total number of messages routed to dead-letter topics",
		},
		[]string{"topic", "reason"},
	)

	// ReviewsCreated counts reviews accepted by the API.
	ReviewsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "innsight_reviews_created_total",
			Help: "Total number of reviews accepted",
		},
	)

	// HTTPRequestsTotal counts API requests by method, route pattern,
	// and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "innsight_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes API request latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "innsight_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// DBQueryErrors counts store operation failures.
	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "innsight_db_query_errors_total",
			Help: "Total number of store query errors",
		},
		[]string{"operation"},
	)
)

// RecordPublish records a confirmed publish to the given topic.
func RecordPublish(topic string) {
	EventsPublished.WithLabelValues(topic).Inc()
}

// RecordPublishFailure records a failed publish to the given topic.
func RecordPublishFailure(topic string) {
	PublishFailures.WithLabelValues(topic).Inc()
}

// RecordAnalysis records a completed analysis with the given outcome.
func RecordAnalysis(outcome string, seconds float64) {
	AnalysesTotal.WithLabelValues(outcome).Inc()
	AnalysisDuration.Observe(seconds)
}

// RecordApply records an outcome apply with the given result.
func RecordApply(result string) {
	AppliesTotal.WithLabelValues(result).Inc()
}

// RecordRetry records a retry for the named handler.
func RecordRetry(handler string) {
	RetriesTotal.WithLabelValues(handler).Inc()
}

// RecordDeadLetter records a message quarantined from the given topic.
func RecordDeadLetter(topic, reason string) {
	DeadLettersTotal.WithLabelValues(topic, reason).Inc()
}

// RecordHTTPRequest records one served API request.
func RecordHTTPRequest(method, route string, status int, seconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(route).Observe(seconds)
}
