// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

package eventpipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/innsight/innsight/internal/metrics"
	"github.com/innsight/innsight/internal/sentiment"
)

// AnalysisHandler consumes review.created and produces
// analysis.completed. It is stateless: the review content travels in
// the event and the sentiment function is pure, so reprocessing a
// redelivered message yields the same outcome and touches nothing
// shared. The router publishes the produced outcome and only then
// acknowledges the input, so a crash between publish and ack costs a
// duplicate outcome (absorbed downstream by the store's conditional
// apply), never a lost one.
type AnalysisHandler struct {
	analyzer       sentiment.Analyzer
	serializer     *Serializer
	maxAttempts    int
	analyzeTimeout time.Duration
	logger         watermill.LoggerAdapter
}

// AnalysisHandlerConfig holds worker handler settings.
type AnalysisHandlerConfig struct {
	// MaxAttempts mirrors the retry policy bound. On the final attempt
	// the handler converts an analysis failure into an error outcome so
	// the review terminates as FAILED instead of dead-lettering the
	// whole event.
	MaxAttempts int

	// AnalyzeTimeout bounds a single inference call.
	AnalyzeTimeout time.Duration
}

// DefaultAnalysisHandlerConfig returns production worker defaults.
func DefaultAnalysisHandlerConfig() AnalysisHandlerConfig {
	return AnalysisHandlerConfig{
		MaxAttempts:    3,
		AnalyzeTimeout: 10 * time.Second,
	}
}

// NewAnalysisHandler creates a worker handler around the given
// analyzer.
func NewAnalysisHandler(analyzer sentiment.Analyzer, cfg AnalysisHandlerConfig, logger watermill.LoggerAdapter) (*AnalysisHandler, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be >= 1, got %d", cfg.MaxAttempts)
	}
	if cfg.AnalyzeTimeout <= 0 {
		return nil, fmt.Errorf("analyze timeout must be positive, got %v", cfg.AnalyzeTimeout)
	}
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	return &AnalysisHandler{
		analyzer:       analyzer,
		serializer:     NewSerializer(),
		maxAttempts:    cfg.MaxAttempts,
		analyzeTimeout: cfg.AnalyzeTimeout,
		logger:         logger,
	}, nil
}

// Handle processes one review.created delivery and returns the
// analysis.completed message to publish.
func (h *AnalysisHandler) Handle(msg *message.Message) ([]*message.Message, error) {
	event, err := h.serializer.UnmarshalReviewCreated(msg.Payload)
	if err != nil {
		// Redelivery cannot fix a malformed payload.
		return nil, NewPermanentError("malformed review.created payload", err)
	}

	attempt := AttemptFromMessage(msg)

	ctx, cancel := context.WithTimeout(msg.Context(), h.analyzeTimeout)
	defer cancel()

	start := time.Now()
	result, err := h.analyzer.Analyze(ctx, analysisText(event), event.Rating)
	elapsed := time.Since(start)

	if err != nil {
		if attempt < h.maxAttempts {
			return nil, NewRetryableError("sentiment analysis failed", err)
		}

		// Final attempt. Terminate the review as FAILED rather than
		// dead-lettering a well-formed event.
		metrics.RecordAnalysis("error", elapsed.Seconds())
		h.logger.Error("Analysis failed on final attempt", err, watermill.LogFields{
			"review_id": event.ReviewID,
			"attempt":   attempt,
		})

		out, buildErr := NewAnalysisCompletedMessage(&AnalysisCompleted{
			ReviewID:      event.ReviewID,
			Outcome:       Outcome{Error: err.Error()},
			AttemptNumber: attempt,
		})
		if buildErr != nil {
			return nil, NewRetryableError("build failure outcome", buildErr)
		}
		return []*message.Message{out}, nil
	}

	metrics.RecordAnalysis("success", elapsed.Seconds())
	h.logger.Debug("Analysis completed", watermill.LogFields{
		"review_id": event.ReviewID,
		"score":     result.Score,
		"label":     string(result.Label),
		"attempt":   attempt,
	})

	out, err := NewAnalysisCompletedMessage(&AnalysisCompleted{
		ReviewID: event.ReviewID,
		Outcome: Outcome{
			Score: result.Score,
			Label: result.Label,
		},
		AttemptNumber: attempt,
	})
	if err != nil {
		return nil, NewRetryableError("build success outcome", err)
	}

	return []*message.Message{out}, nil
}

// analysisText joins the optional title with the review body.
func analysisText(event *ReviewCreated) string {
	if event.Title == "" {
		return event.Content
	}
	return event.Title + "\n" + event.Content
}
