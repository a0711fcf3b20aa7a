// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

package eventpipeline

import (
	"errors"
	"strings"
)

// ErrorCategory classifies failures for dead-letter routing and metrics.
type ErrorCategory int

const (
	// ErrorCategoryUnknown is the default for unclassified errors.
	ErrorCategoryUnknown ErrorCategory = iota
	// ErrorCategoryConnection indicates broker or network failures.
	ErrorCategoryConnection
	// ErrorCategoryTimeout indicates an operation deadline expired.
	ErrorCategoryTimeout
	// ErrorCategoryValidation indicates a malformed or invalid payload.
	ErrorCategoryValidation
	// ErrorCategoryDatabase indicates a review store failure.
	ErrorCategoryDatabase
	// ErrorCategoryAnalysis indicates the sentiment analyzer failed.
	ErrorCategoryAnalysis
)

// String returns the metric label for the category.
func (c ErrorCategory) String() string {
	switch c {
	case ErrorCategoryConnection:
		return "connection"
	case ErrorCategoryTimeout:
		return "timeout"
	case ErrorCategoryValidation:
		return "validation"
	case ErrorCategoryDatabase:
		return "database"
	case ErrorCategoryAnalysis:
		return "analysis"
	default:
		return "unknown"
	}
}

// RetryableError marks a transient failure worth retrying, such as a
// store outage or an analyzer timeout.
type RetryableError struct {
	Message  string
	Cause    error
	Category ErrorCategory
}

// NewRetryableError creates a retryable error, inferring its category
// from the message.
func NewRetryableError(message string, cause error) *RetryableError {
	return &RetryableError{
		Message:  message,
		Cause:    cause,
		Category: categorizeErrorMessage(message),
	}
}

func (e *RetryableError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RetryableError) Unwrap() error {
	return e.Cause
}

// PermanentError marks a failure that retrying cannot fix, such as an
// undecodable payload or a reference to a review that does not exist.
type PermanentError struct {
	Message  string
	Cause    error
	Category ErrorCategory
}

// NewPermanentError creates a permanent error, inferring its category
// from the message. Uncategorizable permanent errors default to
// validation since that is what they almost always are.
func NewPermanentError(message string, cause error) *PermanentError {
	category := categorizeErrorMessage(message)
	if category == ErrorCategoryUnknown {
		category = ErrorCategoryValidation
	}
	return &PermanentError{
		Message:  message,
		Cause:    cause,
		Category: category,
	}
}

func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *PermanentError) Unwrap() error {
	return e.Cause
}

// IsRetryableError reports whether err wraps a RetryableError.
func IsRetryableError(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// IsPermanentError reports whether err wraps a PermanentError.
func IsPermanentError(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}

// CategoryOf extracts the error category, or ErrorCategoryUnknown for
// unclassified errors.
func CategoryOf(err error) ErrorCategory {
	var retryErr *RetryableError
	if errors.As(err, &retryErr) {
		return retryErr.Category
	}
	var permErr *PermanentError
	if errors.As(err, &permErr) {
		return permErr.Category
	}
	return ErrorCategoryUnknown
}

func categorizeErrorMessage(message string) ErrorCategory {
	switch {
	case containsAny(message, "connection", "connect", "refused", "reset", "network", "broker"):
		return ErrorCategoryConnection
	case containsAny(message, "timeout", "deadline", "timed out"):
		return ErrorCategoryTimeout
	case containsAny(message, "invalid", "validation", "malformed", "decode", "parse"):
		return ErrorCategoryValidation
	case containsAny(message, "database", "store", "sql", "query"):
		return ErrorCategoryDatabase
	case containsAny(message, "sentiment", "analyz", "inference"):
		return ErrorCategoryAnalysis
	default:
		return ErrorCategoryUnknown
	}
}

func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
