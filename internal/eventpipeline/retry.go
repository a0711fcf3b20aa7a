// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

package eventpipeline

import (
	"errors"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/innsight/innsight/internal/logging"
	"github.com/innsight/innsight/internal/metrics"
)

// RetryPolicy bounds in-process reprocessing of a delivery. Backoff
// grows exponentially from InitialBackoff up to MaxBackoff, with
// symmetric random jitter to avoid retry synchronization across
// competing consumers.
type RetryPolicy struct {
	// MaxAttempts is the total number of handler invocations allowed
	// per delivery, the first included.
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration

	// BackoffMultiplier is the exponential growth factor.
	BackoffMultiplier float64

	// JitterFraction spreads each backoff by +/- this fraction.
	JitterFraction float64

	rngMu sync.Mutex
	rng   *rand.Rand
}

// DefaultRetryPolicy returns production retry defaults.
func DefaultRetryPolicy() *RetryPolicy {
	return NewRetryPolicyWithSeed(0)
}

// NewRetryPolicyWithSeed creates a RetryPolicy with a specific random
// seed. A zero seed selects a time-based seed; a non-zero seed makes
// jitter reproducible for tests.
func NewRetryPolicyWithSeed(seed int64) *RetryPolicy {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RetryPolicy{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
		//nolint:gosec // G404: non-cryptographic jitter
		rng: rand.New(rand.NewSource(seed)),
	}
}

// CalculateBackoff returns the delay to wait after the given attempt
// (1-based) before invoking the handler again.
func (p *RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	p.rngMu.Lock()
	jitter := backoff * p.JitterFraction * (p.rng.Float64()*2 - 1)
	p.rngMu.Unlock()

	return time.Duration(backoff + jitter)
}

// ShouldRetry reports whether a failure on the given attempt (1-based)
// warrants another invocation. Permanent errors are never retried.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if attempt >= p.MaxAttempts {
		return false
	}
	if IsPermanentError(err) {
		return false
	}
	return true
}

// AttemptFromMessage reads the attempt counter stamped by the retry
// middleware. Messages that did not pass through the middleware report
// attempt 1.
func AttemptFromMessage(msg *message.Message) int {
	raw := msg.Metadata.Get(MetadataAttempt)
	if raw == "" {
		return 1
	}
	attempt, err := strconv.Atoi(raw)
	if err != nil || attempt < 1 {
		return 1
	}
	return attempt
}

// Middleware returns a Watermill handler middleware that re-invokes the
// wrapped handler on retryable failures, with backoff, until the policy
// is exhausted. Before each invocation it stamps the current attempt
// number into the message metadata so handlers can report it.
//
// The attempt counter is scoped to one broker delivery. If the process
// crashes mid-delivery, JetStream redelivers and the counter restarts;
// the consumer's MaxDeliver bounds that outer loop.
func (p *RetryPolicy) Middleware(handlerName string) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			for attempt := 1; ; attempt++ {
				msg.Metadata.Set(MetadataAttempt, strconv.Itoa(attempt))

				produced, err := h(msg)
				if err == nil {
					return produced, nil
				}

				if !p.ShouldRetry(err, attempt) {
					logging.Error().
						Err(err).
						Str("handler", handlerName).
						Str("message_uuid", msg.UUID).
						Int("attempt", attempt).
						Bool("permanent", IsPermanentError(err)).
						Msg("Giving up on message")
					return nil, err
				}

				metrics.RecordRetry(handlerName)
				backoff := p.CalculateBackoff(attempt)
				logging.Warn().
					Err(err).
					Str("handler", handlerName).
					Str("message_uuid", msg.UUID).
					Int("attempt", attempt).
					Dur("backoff", backoff).
					Msg("Retrying message")

				select {
				case <-msg.Context().Done():
					return nil, errors.Join(err, msg.Context().Err())
				case <-time.After(backoff):
				}
			}
		}
	}
}
