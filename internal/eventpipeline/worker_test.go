// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

package eventpipeline

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/innsight/innsight/internal/models"
	"github.com/innsight/innsight/internal/sentiment"
)

func newTestAnalysisHandler(t *testing.T, analyzer sentiment.Analyzer) *AnalysisHandler {
	t.Helper()

	h, err := NewAnalysisHandler(analyzer, DefaultAnalysisHandlerConfig(), nil)
	if err != nil {
		t.Fatalf("NewAnalysisHandler() error = %v", err)
	}
	return h
}

func reviewCreatedMessage(t *testing.T, event ReviewCreated) *message.Message {
	t.Helper()

	data, err := NewSerializer().Marshal(&event)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	return message.NewMessage(event.ReviewID, data)
}

func decodeAnalysisCompleted(t *testing.T, msg *message.Message) *AnalysisCompleted {
	t.Helper()

	event, err := NewSerializer().UnmarshalAnalysisCompleted(msg.Payload)
	if err != nil {
		t.Fatalf("UnmarshalAnalysisCompleted() error = %v", err)
	}
	return event
}

func TestAnalysisHandlerSuccess(t *testing.T) {
	t.Parallel()

	analyzer := sentiment.Func(func(ctx context.Context, text string, rating int) (sentiment.Result, error) {
		return sentiment.Result{Score: 0.75, Label: models.SentimentPositive}, nil
	})
	h := newTestAnalysisHandler(t, analyzer)

	event := validReviewCreated()
	produced, err := h.Handle(reviewCreatedMessage(t, event))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(produced) != 1 {
		t.Fatalf("produced %d messages, want 1", len(produced))
	}

	out := decodeAnalysisCompleted(t, produced[0])
	if out.ReviewID != event.ReviewID {
		t.Errorf("ReviewID = %s, want %s", out.ReviewID, event.ReviewID)
	}
	if out.Outcome.Failed() {
		t.Errorf("unexpected error outcome: %s", out.Outcome.Error)
	}
	if out.Outcome.Score != 0.75 {
		t.Errorf("Score = %v, want 0.75", out.Outcome.Score)
	}
	if out.Outcome.Label != models.SentimentPositive {
		t.Errorf("Label = %s, want %s", out.Outcome.Label, models.SentimentPositive)
	}
	if out.AttemptNumber != 1 {
		t.Errorf("AttemptNumber = %d, want 1", out.AttemptNumber)
	}
}

func TestAnalysisHandlerMalformedPayloadIsPermanent(t *testing.T) {
	t.Parallel()

	analyzer := sentiment.Func(func(ctx context.Context, text string, rating int) (sentiment.Result, error) {
		t.Error("analyzer must not run for malformed payloads")
		return sentiment.Result{}, nil
	})
	h := newTestAnalysisHandler(t, analyzer)

	_, err := h.Handle(message.NewMessage("bad", []byte("{broken")))
	if !IsPermanentError(err) {
		t.Fatalf("error = %v, want permanent", err)
	}
}

func TestAnalysisHandlerRetryableBeforeFinalAttempt(t *testing.T) {
	t.Parallel()

	analyzer := sentiment.Func(func(ctx context.Context, text string, rating int) (sentiment.Result, error) {
		return sentiment.Result{}, errors.New("model busy")
	})
	h := newTestAnalysisHandler(t, analyzer)

	msg := reviewCreatedMessage(t, validReviewCreated())
	msg.Metadata.Set(MetadataAttempt, "1")

	produced, err := h.Handle(msg)
	if !IsRetryableError(err) {
		t.Fatalf("error = %v, want retryable", err)
	}
	if len(produced) != 0 {
		t.Errorf("produced %d messages on retryable failure, want 0", len(produced))
	}
}

func TestAnalysisHandlerFinalAttemptEmitsErrorOutcome(t *testing.T) {
	t.Parallel()

	analyzer := sentiment.Func(func(ctx context.Context, text string, rating int) (sentiment.Result, error) {
		return sentiment.Result{}, errors.New("model busy")
	})
	h := newTestAnalysisHandler(t, analyzer)

	event := validReviewCreated()
	msg := reviewCreatedMessage(t, event)
	msg.Metadata.Set(MetadataAttempt, strconv.Itoa(DefaultAnalysisHandlerConfig().MaxAttempts))

	produced, err := h.Handle(msg)
	if err != nil {
		t.Fatalf("Handle() error = %v, want nil on final attempt", err)
	}
	if len(produced) != 1 {
		t.Fatalf("produced %d messages, want 1", len(produced))
	}

	out := decodeAnalysisCompleted(t, produced[0])
	if !out.Outcome.Failed() {
		t.Fatal("expected error outcome")
	}
	if out.ReviewID != event.ReviewID {
		t.Errorf("ReviewID = %s, want %s", out.ReviewID, event.ReviewID)
	}
	if out.AttemptNumber != DefaultAnalysisHandlerConfig().MaxAttempts {
		t.Errorf("AttemptNumber = %d, want %d", out.AttemptNumber, DefaultAnalysisHandlerConfig().MaxAttempts)
	}
}

func TestAnalysisHandlerDeterministicAcrossRedelivery(t *testing.T) {
	t.Parallel()

	cfg := sentiment.DefaultConfig()
	h := newTestAnalysisHandler(t, sentiment.NewLexicon(cfg))

	event := validReviewCreated()

	first, err := h.Handle(reviewCreatedMessage(t, event))
	if err != nil {
		t.Fatalf("first Handle() error = %v", err)
	}
	second, err := h.Handle(reviewCreatedMessage(t, event))
	if err != nil {
		t.Fatalf("second Handle() error = %v", err)
	}

	a := decodeAnalysisCompleted(t, first[0])
	b := decodeAnalysisCompleted(t, second[0])
	if a.Outcome != b.Outcome {
		t.Errorf("outcomes differ across redelivery: %+v vs %+v", a.Outcome, b.Outcome)
	}
}

func TestAnalysisHandlerTextIncludesTitle(t *testing.T) {
	t.Parallel()

	var seen string
	analyzer := sentiment.Func(func(ctx context.Context, text string, rating int) (sentiment.Result, error) {
		seen = text
		return sentiment.Result{Score: 0, Label: models.SentimentNeutral}, nil
	})
	h := newTestAnalysisHandler(t, analyzer)

	event := validReviewCreated()
	event.Title = "Lovely weekend"
	if _, err := h.Handle(reviewCreatedMessage(t, event)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	want := "Lovely weekend\n" + event.Content
	if seen != want {
		t.Errorf("analyzer text = %q, want %q", seen, want)
	}
}
