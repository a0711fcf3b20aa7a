// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Request bodies are validated with go-playground/validator before any
// store or broker work happens, so malformed submissions never enter
// the pipeline.

// CreateHotelRequest is the request body for POST /api/v1/hotels.
type CreateHotelRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
	City string `json:"city" validate:"omitempty,max=100"`
}

// CreateReviewRequest is the request body for
// POST /api/v1/hotels/{hotelID}/reviews.
type CreateReviewRequest struct {
	Title   string `json:"title"   validate:"omitempty,max=200"`
	Content string `json:"content" validate:"required,min=1,max=10000"`
	Rating  int    `json:"rating"  validate:"required,min=1,max=5"`
}

// ListRequest holds validated list query parameters.
type ListRequest struct {
	Limit int `validate:"min=1,max=500"`
}

var validate = validator.New()

// validateRequest validates a struct and converts validator errors
// into client-facing field messages.
func validateRequest(v interface{}) []string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return []string{err.Error()}
	}

	details := make([]string, 0, len(invalid))
	for _, fe := range invalid {
		details = append(details, fieldMessage(fe))
	}
	return details
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}
