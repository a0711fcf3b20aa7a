// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

// Package eventpipeline implements the asynchronous review-analysis
// pipeline on Watermill and NATS JetStream.
//
// The pipeline decouples accepting a review (the API write path) from
// computing its sentiment (the worker compute path) through two durable
// subjects on a single JetStream stream:
//
//	┌─────────┐  ReviewCreated   ┌──────────────────┐  AnalysisCompleted  ┌─────────────────┐
//	│   API   │ ───────────────► │ Analysis Workers │ ──────────────────► │ Result Consumers│
//	│ (store) │  review.created  │ (competing)      │ analysis.completed  │ (competing)     │
//	└─────────┘                  └──────────────────┘                     └────────┬────────┘
//	                                                                               │ CAS apply
//	                                                                               ▼
//	                                                                        ┌─────────────┐
//	                                                                        │ Review Store│
//	                                                                        └─────────────┘
//
// # Reliability model
//
// JetStream provides at-least-once delivery: a message is redelivered if
// the consuming instance crashes before acknowledging. The pipeline is
// built so redelivery is always safe:
//
//   - Workers never touch shared state. They recompute the (pure)
//     sentiment function and publish AnalysisCompleted; the original
//     delivery is acknowledged only after the result publish is durably
//     confirmed by the broker. A crash in between yields a duplicate
//     AnalysisCompleted, never a lost one.
//   - Result consumers apply outcomes through the store's conditional
//     update (compare-and-set on the review's current status). The first
//     apply wins; duplicates and stale deliveries report no-match and
//     are acknowledged without mutation.
//   - No ordering is assumed across subjects or redeliveries; all
//     correctness comes from idempotent recomputation upstream and the
//     CAS discipline downstream.
//
// # Failure handling
//
// Errors are classified with RetryableError and PermanentError.
// Retryable failures (inference timeout, store unavailable) are retried
// in process with exponential backoff and jitter up to
// RetryPolicy.MaxAttempts. Workers that exhaust their attempts publish
// an error outcome so the review terminates as FAILED instead of
// retrying forever. Permanent failures (undecodable payloads) skip
// retry entirely. Whatever still fails after that is routed, unmodified,
// to the subject's paired dead-letter subject (dlq.<subject>) for
// operator inspection; dead letters are never silently dropped.
//
// # Key components
//
//   - EmbeddedServer: optional in-process NATS JetStream server
//   - StreamManager: provisions the REVIEWS stream and its subjects
//   - Publisher: confirmed JetStream publishes behind a circuit breaker
//   - Subscriber: durable queue-group consumer for competing instances
//   - Router: Watermill router wiring recovery, retry, and quarantine
//   - AnalysisHandler: review.created -> sentiment -> analysis.completed
//   - ResultHandler: analysis.completed -> conditional store apply
package eventpipeline
