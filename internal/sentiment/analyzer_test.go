// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

package sentiment

import (
	"context"
	"strings"
	"testing"

	"github.com/innsight/innsight/internal/models"
)

func TestLexicon_Analyze(t *testing.T) {
	t.Parallel()

	a := NewLexicon(DefaultConfig())

	tests := []struct {
		name      string
		text      string
		rating    int
		wantLabel models.SentimentLabel
	}{
		{
			name:      "glowing review with five stars",
			text:      "Amazing stay, wonderful staff and a spotless room",
			rating:    5,
			wantLabel: models.SentimentPositive,
		},
		{
			name:      "scathing review with one star",
			text:      "Dirty room, rude staff, the worst hotel experience",
			rating:    1,
			wantLabel: models.SentimentNegative,
		},
		{
			name:      "flat review with three stars",
			text:      "The room had a bed and a window",
			rating:    3,
			wantLabel: models.SentimentNeutral,
		},
		{
			name:      "negated praise reads negative",
			text:      "Not clean and not comfortable at all",
			rating:    2,
			wantLabel: models.SentimentNegative,
		},
		{
			name:      "empty text falls back to rating",
			text:      "",
			rating:    5,
			wantLabel: models.SentimentPositive, // 0.6*0 + 0.4*1 = 0.4
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := a.Analyze(context.Background(), tt.text, tt.rating)
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if got.Label != tt.wantLabel {
				t.Errorf("Analyze() label = %s (score %.3f), want %s", got.Label, got.Score, tt.wantLabel)
			}
			if got.Score < -1 || got.Score > 1 {
				t.Errorf("Analyze() score %.3f out of [-1, 1]", got.Score)
			}
		})
	}
}

func TestLexicon_Analyze_Deterministic(t *testing.T) {
	t.Parallel()

	a := NewLexicon(DefaultConfig())
	first, err := a.Analyze(context.Background(), "Amazing stay", 5)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		got, err := a.Analyze(context.Background(), "Amazing stay", 5)
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if got != first {
			t.Fatalf("Analyze() not deterministic: %+v != %+v", got, first)
		}
	}
}

func TestLexicon_Analyze_TruncatesLongText(t *testing.T) {
	t.Parallel()

	a := NewLexicon(Config{MaxTextLength: 16, ModelWeight: 1.0, RatingWeight: 0.0})

	// Sentiment words beyond the truncation point must not count.
	text := "neutral padding " + strings.Repeat("terrible ", 50)
	got, err := a.Analyze(context.Background(), text, 3)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got.Label != models.SentimentNeutral {
		t.Errorf("Analyze() label = %s, want neutral after truncation", got.Label)
	}
}

func TestLexicon_Analyze_CanceledContext(t *testing.T) {
	t.Parallel()

	a := NewLexicon(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.Analyze(ctx, "Amazing stay", 5); err == nil {
		t.Error("Analyze() with canceled context: expected error, got nil")
	}
}

func TestLabelFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		want  models.SentimentLabel
	}{
		{0.9, models.SentimentPositive},
		{0.31, models.SentimentPositive},
		{0.3, models.SentimentNeutral},
		{0.0, models.SentimentNeutral},
		{-0.3, models.SentimentNeutral},
		{-0.31, models.SentimentNegative},
		{-1.0, models.SentimentNegative},
	}

	for _, tt := range tests {
		if got := LabelFor(tt.score); got != tt.want {
			t.Errorf("LabelFor(%.2f) = %s, want %s", tt.score, got, tt.want)
		}
	}
}
