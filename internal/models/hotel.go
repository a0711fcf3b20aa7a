// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

package models

import "time"

// Hotel is a property that reviews are attached to.
// Hotels are plain CRUD records; the pipeline never mutates them.
type Hotel struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HotelSummary aggregates review statistics for a hotel.
type HotelSummary struct {
	Hotel
	ReviewCount      int     `json:"review_count"`
	AverageRating    float64 `json:"average_rating"`
	AverageSentiment float64 `json:"average_sentiment"`
	CompletedReviews int     `json:"completed_reviews"`
}
