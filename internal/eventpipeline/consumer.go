// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

package eventpipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/innsight/innsight/internal/database"
	"github.com/innsight/innsight/internal/metrics"
	"github.com/innsight/innsight/internal/models"
)

// ReviewStore is the slice of the store the result consumer needs.
// *database.DB satisfies it.
type ReviewStore interface {
	GetReview(ctx context.Context, id string) (*models.Review, error)
	ApplyOutcome(ctx context.Context, reviewID string, expectedStatusIn []models.ReviewStatus, outcome models.ReviewOutcome) (bool, error)
}

// ResultHandler consumes analysis.completed and applies outcomes to
// the review store. The apply is a conditional update on the review's
// current status, which makes redelivered and duplicated outcomes
// harmless: the first apply wins, later ones report no-match against a
// terminal status and are acknowledged without mutation.
type ResultHandler struct {
	store        ReviewStore
	serializer   *Serializer
	applyTimeout time.Duration
	logger       watermill.LoggerAdapter
}

// ResultHandlerConfig holds result consumer settings.
type ResultHandlerConfig struct {
	// ApplyTimeout bounds a single store apply.
	ApplyTimeout time.Duration
}

// DefaultResultHandlerConfig returns production consumer defaults.
func DefaultResultHandlerConfig() ResultHandlerConfig {
	return ResultHandlerConfig{
		ApplyTimeout: 5 * time.Second,
	}
}

// NewResultHandler creates a result consumer handler around the given
// store.
func NewResultHandler(store ReviewStore, cfg ResultHandlerConfig, logger watermill.LoggerAdapter) (*ResultHandler, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.ApplyTimeout <= 0 {
		return nil, fmt.Errorf("apply timeout must be positive, got %v", cfg.ApplyTimeout)
	}
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	return &ResultHandler{
		store:        store,
		serializer:   NewSerializer(),
		applyTimeout: cfg.ApplyTimeout,
		logger:       logger,
	}, nil
}

// Handle processes one analysis.completed delivery.
func (h *ResultHandler) Handle(msg *message.Message) error {
	event, err := h.serializer.UnmarshalAnalysisCompleted(msg.Payload)
	if err != nil {
		return NewPermanentError("malformed analysis.completed payload", err)
	}

	ctx, cancel := context.WithTimeout(msg.Context(), h.applyTimeout)
	defer cancel()

	applied, err := h.store.ApplyOutcome(
		ctx,
		event.ReviewID,
		[]models.ReviewStatus{models.StatusPending, models.StatusProcessing},
		event.ToReviewOutcome(),
	)
	if err != nil {
		metrics.RecordApply("failed")
		return NewRetryableError("apply outcome to store", err)
	}

	if applied {
		metrics.RecordApply("applied")
		h.logger.Info("Outcome applied", watermill.LogFields{
			"review_id": event.ReviewID,
			"status":    string(event.ToReviewOutcome().Status),
			"attempts":  event.AttemptNumber,
		})
		return nil
	}

	// No row matched the expected statuses. Distinguish the benign
	// duplicate from the genuinely broken reference.
	review, err := h.store.GetReview(ctx, event.ReviewID)
	if errors.Is(err, database.ErrNotFound) {
		return NewPermanentError("outcome references unknown review", fmt.Errorf("review %s not found", event.ReviewID))
	}
	if err != nil {
		metrics.RecordApply("failed")
		return NewRetryableError("read review after no-match apply", err)
	}

	if review.Status.Terminal() {
		metrics.RecordApply("duplicate")
		h.logger.Debug("Duplicate outcome skipped", watermill.LogFields{
			"review_id": event.ReviewID,
			"status":    string(review.Status),
		})
		return nil
	}

	// Non-terminal and yet not applied: a writer changed the row
	// between the update and the read. Safe to retry, the apply is
	// idempotent.
	return NewRetryableError("conditional apply did not match", fmt.Errorf("review %s in status %s", event.ReviewID, review.Status))
}
