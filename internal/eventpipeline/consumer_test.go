// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

package eventpipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/innsight/innsight/internal/database"
	"github.com/innsight/innsight/internal/models"
)

// fakeReviewStore scripts ApplyOutcome and GetReview responses and
// records the calls it receives.
type fakeReviewStore struct {
	applied  bool
	applyErr error
	review   *models.Review
	getErr   error

	applyCalls []models.ReviewOutcome
	getCalls   int
}

func (f *fakeReviewStore) ApplyOutcome(ctx context.Context, reviewID string, expectedStatusIn []models.ReviewStatus, outcome models.ReviewOutcome) (bool, error) {
	f.applyCalls = append(f.applyCalls, outcome)
	return f.applied, f.applyErr
}

func (f *fakeReviewStore) GetReview(ctx context.Context, id string) (*models.Review, error) {
	f.getCalls++
	return f.review, f.getErr
}

func newTestResultHandler(t *testing.T, store ReviewStore) *ResultHandler {
	t.Helper()

	h, err := NewResultHandler(store, DefaultResultHandlerConfig(), nil)
	if err != nil {
		t.Fatalf("NewResultHandler() error = %v", err)
	}
	return h
}

func analysisCompletedMessage(t *testing.T, event AnalysisCompleted) *message.Message {
	t.Helper()

	data, err := NewSerializer().Marshal(&event)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	return message.NewMessage(uuid.NewString(), data)
}

func successEvent() AnalysisCompleted {
	return AnalysisCompleted{
		ReviewID:      uuid.NewString(),
		Outcome:       Outcome{Score: 0.6, Label: models.SentimentPositive},
		AttemptNumber: 1,
	}
}

func TestResultHandlerAppliesOutcome(t *testing.T) {
	t.Parallel()

	store := &fakeReviewStore{applied: true}
	h := newTestResultHandler(t, store)

	event := successEvent()
	if err := h.Handle(analysisCompletedMessage(t, event)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(store.applyCalls) != 1 {
		t.Fatalf("ApplyOutcome called %d times, want 1", len(store.applyCalls))
	}
	got := store.applyCalls[0]
	if got.Status != models.StatusCompleted {
		t.Errorf("applied status = %s, want %s", got.Status, models.StatusCompleted)
	}
	if got.Score != 0.6 || got.Label != models.SentimentPositive {
		t.Errorf("applied outcome = %+v", got)
	}
	if store.getCalls != 0 {
		t.Errorf("GetReview called %d times on applied outcome, want 0", store.getCalls)
	}
}

func TestResultHandlerAppliesFailureOutcome(t *testing.T) {
	t.Parallel()

	store := &fakeReviewStore{applied: true}
	h := newTestResultHandler(t, store)

	event := AnalysisCompleted{
		ReviewID:      uuid.NewString(),
		Outcome:       Outcome{Error: "inference timed out"},
		AttemptNumber: 3,
	}
	if err := h.Handle(analysisCompletedMessage(t, event)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := store.applyCalls[0]
	if got.Status != models.StatusFailed {
		t.Errorf("applied status = %s, want %s", got.Status, models.StatusFailed)
	}
	if got.Error != "inference timed out" {
		t.Errorf("applied error = %q", got.Error)
	}
	if got.Attempts != 3 {
		t.Errorf("applied attempts = %d, want 3", got.Attempts)
	}
}

func TestResultHandlerMalformedPayloadIsPermanent(t *testing.T) {
	t.Parallel()

	store := &fakeReviewStore{}
	h := newTestResultHandler(t, store)

	err := h.Handle(message.NewMessage("bad", []byte("not json")))
	if !IsPermanentError(err) {
		t.Fatalf("error = %v, want permanent", err)
	}
	if len(store.applyCalls) != 0 {
		t.Error("store must not be touched for malformed payloads")
	}
}

func TestResultHandlerStoreErrorIsRetryable(t *testing.T) {
	t.Parallel()

	store := &fakeReviewStore{applyErr: errors.New("database locked")}
	h := newTestResultHandler(t, store)

	err := h.Handle(analysisCompletedMessage(t, successEvent()))
	if !IsRetryableError(err) {
		t.Fatalf("error = %v, want retryable", err)
	}
}

func TestResultHandlerDuplicateIsAcknowledged(t *testing.T) {
	t.Parallel()

	store := &fakeReviewStore{
		applied: false,
		review:  &models.Review{Status: models.StatusCompleted},
	}
	h := newTestResultHandler(t, store)

	if err := h.Handle(analysisCompletedMessage(t, successEvent())); err != nil {
		t.Fatalf("Handle() error = %v, duplicate must be a no-op", err)
	}
	if store.getCalls != 1 {
		t.Errorf("GetReview called %d times, want 1", store.getCalls)
	}
}

func TestResultHandlerUnknownReviewIsPermanent(t *testing.T) {
	t.Parallel()

	store := &fakeReviewStore{
		applied: false,
		getErr:  database.ErrNotFound,
	}
	h := newTestResultHandler(t, store)

	err := h.Handle(analysisCompletedMessage(t, successEvent()))
	if !IsPermanentError(err) {
		t.Fatalf("error = %v, want permanent", err)
	}
}

func TestResultHandlerNonTerminalNoMatchIsRetryable(t *testing.T) {
	t.Parallel()

	store := &fakeReviewStore{
		applied: false,
		review:  &models.Review{Status: models.StatusPending},
	}
	h := newTestResultHandler(t, store)

	err := h.Handle(analysisCompletedMessage(t, successEvent()))
	if !IsRetryableError(err) {
		t.Fatalf("error = %v, want retryable", err)
	}
}
