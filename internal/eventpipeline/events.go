// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

package eventpipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/innsight/innsight/internal/models"
)

// Subjects carried by the REVIEWS stream. Each processing subject is
// paired with a dead-letter subject under the dlq. prefix.
const (
	TopicReviewCreated     = "review.created"
	TopicAnalysisCompleted = "analysis.completed"

	// DLQTopicPrefix namespaces dead-letter subjects so the stream can
	// capture all of them with a single dlq.> subject filter.
	DLQTopicPrefix = "dlq."
)

// DLQTopicFor returns the dead-letter subject paired with topic.
func DLQTopicFor(topic string) string {
	return DLQTopicPrefix + topic
}

// Metadata keys attached to pipeline messages.
const (
	// MetadataEventID carries the producer-assigned event identity used
	// for broker-side duplicate suppression.
	MetadataEventID = "event_id"

	// MetadataAttempt is set by the retry middleware before each handler
	// invocation, starting at 1.
	MetadataAttempt = "attempt"

	// Dead-letter provenance, stamped by the quarantine middleware.
	MetadataDLQReason        = "dlq_reason"
	MetadataDLQOriginalTopic = "dlq_original_topic"
	MetadataDLQTime          = "dlq_time"
)

const (
	ratingMin = 1
	ratingMax = 5
)

// ReviewCreated announces that a review was accepted and persisted in
// the PENDING state. It is self-contained: workers analyze the embedded
// content without reading the store, so a delivery is processable even
// if the store is briefly unavailable.
type ReviewCreated struct {
	ReviewID    string    `json:"review_id"`
	HotelID     string    `json:"hotel_id"`
	Title       string    `json:"title,omitempty"`
	Content     string    `json:"content"`
	Rating      int       `json:"rating"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Validate reports whether the event is well formed. A validation
// failure on a decoded message is permanent: redelivery cannot fix a
// malformed payload.
func (e *ReviewCreated) Validate() error {
	if err := validateID(e.ReviewID, "review_id"); err != nil {
		return err
	}
	if err := validateID(e.HotelID, "hotel_id"); err != nil {
		return err
	}
	if strings.TrimSpace(e.Content) == "" {
		return fmt.Errorf("content must not be empty")
	}
	if e.Rating < ratingMin || e.Rating > ratingMax {
		return fmt.Errorf("rating %d outside [%d,%d]", e.Rating, ratingMin, ratingMax)
	}
	if e.SubmittedAt.IsZero() {
		return fmt.Errorf("submitted_at must be set")
	}
	return nil
}

// Outcome is the result half of an AnalysisCompleted event. Error is
// the discriminator: empty means success and Score/Label are
// meaningful, non-empty means the analysis failed terminally.
type Outcome struct {
	Score float64               `json:"score"`
	Label models.SentimentLabel `json:"label,omitempty"`
	Error string                `json:"error,omitempty"`
}

// Failed reports whether the outcome is an error outcome.
func (o Outcome) Failed() bool {
	return o.Error != ""
}

// AnalysisCompleted reports the terminal result of analyzing one
// review, successful or not. AttemptNumber records how many worker
// invocations the review consumed before this outcome was produced.
type AnalysisCompleted struct {
	ReviewID      string  `json:"review_id"`
	Outcome       Outcome `json:"outcome"`
	AttemptNumber int     `json:"attempt_number"`
}

// Validate reports whether the event is well formed.
func (e *AnalysisCompleted) Validate() error {
	if err := validateID(e.ReviewID, "review_id"); err != nil {
		return err
	}
	if e.AttemptNumber < 1 {
		return fmt.Errorf("attempt_number %d must be >= 1", e.AttemptNumber)
	}
	if e.Outcome.Failed() {
		return nil
	}
	if !e.Outcome.Label.Valid() {
		return fmt.Errorf("unknown sentiment label %q", e.Outcome.Label)
	}
	if e.Outcome.Score < -1 || e.Outcome.Score > 1 {
		return fmt.Errorf("score %v outside [-1,1]", e.Outcome.Score)
	}
	return nil
}

// ToReviewOutcome maps the event onto the store's outcome record.
func (e *AnalysisCompleted) ToReviewOutcome() models.ReviewOutcome {
	if e.Outcome.Failed() {
		return models.ReviewOutcome{
			Status:   models.StatusFailed,
			Error:    e.Outcome.Error,
			Attempts: e.AttemptNumber,
		}
	}
	return models.ReviewOutcome{
		Status:   models.StatusCompleted,
		Score:    e.Outcome.Score,
		Label:    e.Outcome.Label,
		Attempts: e.AttemptNumber,
	}
}

func validateID(id, field string) error {
	if id == "" {
		return fmt.Errorf("%s must not be empty", field)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%s is not a valid UUID: %w", field, err)
	}
	return nil
}
