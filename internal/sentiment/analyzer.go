// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

// Package sentiment provides the review sentiment analyzer.
//
// The analyzer is a pure function of its inputs: it touches no shared
// state and performs no I/O, which is what makes reprocessing a review
// after a worker crash safe. The pipeline treats it as an opaque
// text -> {score, label} contract; the default implementation is a
// lexicon scorer blended with the submitted star rating.
package sentiment

import (
	"context"
	"strings"
	"unicode"

	"github.com/innsight/innsight/internal/models"
)

// Result is the outcome of a sentiment analysis.
type Result struct {
	// Score is the blended sentiment in [-1, 1].
	Score float64
	// Label classifies Score: positive above +0.3, negative below -0.3,
	// neutral otherwise.
	Label models.SentimentLabel
}

// Analyzer computes a sentiment score for review text.
// Implementations must be safe for concurrent use and free of side
// effects; they may fail transiently (e.g. a remote model timing out).
type Analyzer interface {
	Analyze(ctx context.Context, text string, rating int) (Result, error)
}

// Func adapts a plain function to the Analyzer interface.
type Func func(ctx context.Context, text string, rating int) (Result, error)

// Analyze implements Analyzer.
func (f Func) Analyze(ctx context.Context, text string, rating int) (Result, error) {
	return f(ctx, text, rating)
}

// Config holds lexicon analyzer settings.
type Config struct {
	// MaxTextLength truncates input before scoring, in runes.
	MaxTextLength int

	// ModelWeight and RatingWeight blend the lexicon score with the
	// rating-derived score ((rating-3)/2). They should sum to 1.0.
	ModelWeight  float64
	RatingWeight float64
}

// DefaultConfig returns production defaults for the lexicon analyzer.
func DefaultConfig() Config {
	return Config{
		MaxTextLength: 512,
		ModelWeight:   0.6,
		RatingWeight:  0.4,
	}
}

// Lexicon is a deterministic lexicon-based Analyzer.
// The text score is the normalized balance of positive and negative
// vocabulary hits; negators ("not", "never", ...) flip the polarity of
// the following sentiment word.
type Lexicon struct {
	config Config
}

// NewLexicon creates a lexicon analyzer with the given config.
// Zero-valued config fields fall back to defaults.
func NewLexicon(cfg Config) *Lexicon {
	def := DefaultConfig()
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = def.MaxTextLength
	}
	if cfg.ModelWeight == 0 && cfg.RatingWeight == 0 {
		cfg.ModelWeight = def.ModelWeight
		cfg.RatingWeight = def.RatingWeight
	}
	return &Lexicon{config: cfg}
}

// positiveWords and negativeWords cover common hotel-review vocabulary.
var positiveWords = map[string]struct{}{
	"amazing": {}, "awesome": {}, "beautiful": {}, "best": {}, "clean": {},
	"comfortable": {}, "cozy": {}, "delicious": {}, "excellent": {},
	"fantastic": {}, "friendly": {}, "good": {}, "great": {}, "helpful": {},
	"lovely": {}, "nice": {}, "perfect": {}, "pleasant": {}, "quiet": {},
	"recommend": {}, "spacious": {}, "spotless": {}, "stunning": {},
	"superb": {}, "wonderful": {},
}

var negativeWords = map[string]struct{}{
	"awful": {}, "bad": {}, "broken": {}, "dirty": {}, "disappointing": {},
	"disgusting": {}, "horrible": {}, "loud": {}, "mediocre": {}, "noisy": {},
	"overpriced": {}, "poor": {}, "rude": {}, "slow": {}, "smelly": {},
	"terrible": {}, "uncomfortable": {}, "unfriendly": {}, "unhelpful": {},
	"worst": {},
}

var negators = map[string]struct{}{
	"not": {}, "never": {}, "no": {}, "hardly": {}, "barely": {},
}

// Analyze scores the text and blends it with the rating.
// The rating contributes (rating-3)/2, mapping stars 1..5 onto [-1, 1].
func (a *Lexicon) Analyze(ctx context.Context, text string, rating int) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	textScore := a.scoreText(truncateRunes(text, a.config.MaxTextLength))
	ratingScore := float64(rating-3) / 2

	score := textScore*a.config.ModelWeight + ratingScore*a.config.RatingWeight
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}

	return Result{Score: score, Label: LabelFor(score)}, nil
}

// scoreText returns the lexicon balance in [-1, 1].
func (a *Lexicon) scoreText(text string) float64 {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	var hits, balance int
	negate := false
	for _, w := range words {
		if _, ok := negators[w]; ok {
			negate = true
			continue
		}

		polarity := 0
		if _, ok := positiveWords[w]; ok {
			polarity = 1
		} else if _, ok := negativeWords[w]; ok {
			polarity = -1
		}

		if polarity != 0 {
			if negate {
				polarity = -polarity
			}
			hits++
			balance += polarity
		}
		negate = false
	}

	if hits == 0 {
		return 0
	}
	return float64(balance) / float64(hits)
}

// LabelFor classifies a blended score using the ±0.3 thresholds.
func LabelFor(score float64) models.SentimentLabel {
	switch {
	case score > 0.3:
		return models.SentimentPositive
	case score < -0.3:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// truncateRunes bounds s to n runes without splitting a rune.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
