// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

package models

import (
	"time"
)

// ReviewStatus is the lifecycle state of a review in the analysis pipeline.
//
// State machine:
//
//	PENDING ──► PROCESSING ──► COMPLETED
//	    │            │
//	    └────────────┴───────► FAILED
//
// PENDING is set on creation by the API. PROCESSING is an ephemeral claim
// state; workers never persist it because they have no store access.
// COMPLETED and FAILED are terminal: once a review reaches either state,
// no further transition is permitted. The store enforces this through a
// conditional update keyed on the current status.
type ReviewStatus string

const (
	// StatusPending means the review is accepted and awaiting analysis.
	StatusPending ReviewStatus = "PENDING"
	// StatusProcessing means a worker delivery has claimed the review.
	StatusProcessing ReviewStatus = "PROCESSING"
	// StatusCompleted means sentiment analysis succeeded and results are stored.
	StatusCompleted ReviewStatus = "COMPLETED"
	// StatusFailed means analysis failed terminally; ErrorMessage is set.
	StatusFailed ReviewStatus = "FAILED"
)

// Terminal reports whether the status permits no further transitions.
func (s ReviewStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether the status is one of the known lifecycle states.
func (s ReviewStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// SentimentLabel classifies the overall sentiment of a review.
type SentimentLabel string

const (
	// SentimentPositive indicates a blended score above +0.3.
	SentimentPositive SentimentLabel = "positive"
	// SentimentNeutral indicates a blended score within [-0.3, +0.3].
	SentimentNeutral SentimentLabel = "neutral"
	// SentimentNegative indicates a blended score below -0.3.
	SentimentNegative SentimentLabel = "negative"
)

// Valid reports whether the label is one of the known classifications.
func (l SentimentLabel) Valid() bool {
	switch l {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	default:
		return false
	}
}

// Review is a user-submitted hotel review and the canonical record of its
// analysis outcome. After creation only the pipeline mutates it, and only
// the status, sentiment, attempt, and error fields.
type Review struct {
	ID      string `json:"id"`
	HotelID string `json:"hotel_id"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
	Rating  int    `json:"rating"`

	Status ReviewStatus `json:"status"`

	// SentimentScore and SentimentLabel are set iff Status is COMPLETED.
	SentimentScore *float64        `json:"sentiment_score,omitempty"`
	SentimentLabel *SentimentLabel `json:"sentiment_label,omitempty"`

	// ProcessingAttempts counts worker deliveries for this review.
	ProcessingAttempts int `json:"processing_attempts"`

	// ErrorMessage is set iff Status is FAILED.
	ErrorMessage *string `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReviewOutcome carries the terminal result applied to a review by the
// result consumer. Exactly one of (Score, Label) or Error is meaningful,
// selected by Status.
type ReviewOutcome struct {
	Status   ReviewStatus
	Score    float64
	Label    SentimentLabel
	Error    string
	Attempts int
}
