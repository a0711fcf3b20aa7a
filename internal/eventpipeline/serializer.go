// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

package eventpipeline

import (
	"fmt"

	"github.com/goccy/go-json"
)

// validatable is implemented by all pipeline events.
type validatable interface {
	Validate() error
}

// Serializer handles event encoding and decoding for NATS messages.
// Encoding validates first so malformed events never reach the wire;
// decoding validates after so malformed payloads are rejected at the
// edge instead of deep inside a handler.
type Serializer struct{}

// NewSerializer creates a new serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Marshal converts an event to JSON bytes, validating it first.
func (s *Serializer) Marshal(event validatable) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	return data, nil
}

// UnmarshalReviewCreated decodes and validates a ReviewCreated payload.
func (s *Serializer) UnmarshalReviewCreated(data []byte) (*ReviewCreated, error) {
	var event ReviewCreated
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal review.created: %w", err)
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate review.created: %w", err)
	}
	return &event, nil
}

// UnmarshalAnalysisCompleted decodes and validates an AnalysisCompleted
// payload.
func (s *Serializer) UnmarshalAnalysisCompleted(data []byte) (*AnalysisCompleted, error) {
	var event AnalysisCompleted
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal analysis.completed: %w", err)
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate analysis.completed: %w", err)
	}
	return &event, nil
}
