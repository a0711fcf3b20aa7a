// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/innsight/innsight/internal/metrics"
	"github.com/innsight/innsight/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// CreateReview inserts a new review with status PENDING.
func (db *DB) CreateReview(ctx context.Context, r *models.Review) error {
	now := db.now()
	r.Status = models.StatusPending
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO reviews (id, hotel_id, title, content, rating, status, processing_attempts, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		r.ID, r.HotelID, r.Title, r.Content, r.Rating, string(r.Status), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("create_review").Inc()
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// GetReview fetches a review by id. Returns ErrNotFound if missing.
func (db *DB) GetReview(ctx context.Context, id string) (*models.Review, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, hotel_id, title, content, rating, status, sentiment_score, sentiment_label,
		        processing_attempts, error_message, created_at, updated_at
		 FROM reviews WHERE id = ?`, id)

	var (
		r      models.Review
		status string
		score  sql.NullFloat64
		label  sql.NullString
		errMsg sql.NullString
	)
	err := row.Scan(&r.ID, &r.HotelID, &r.Title, &r.Content, &r.Rating, &status,
		&score, &label, &r.ProcessingAttempts, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("get_review").Inc()
		return nil, fmt.Errorf("query review: %w", err)
	}

	r.Status = models.ReviewStatus(status)
	if score.Valid {
		r.SentimentScore = &score.Float64
	}
	if label.Valid {
		l := models.SentimentLabel(label.String)
		r.SentimentLabel = &l
	}
	if errMsg.Valid {
		r.ErrorMessage = &errMsg.String
	}
	return &r, nil
}

// ApplyOutcome performs the conditional terminal transition for a review.
//
// The update only takes effect when the stored status is one of
// expectedStatusIn; it returns whether the condition matched. This is the
// compare-and-set that makes duplicate and out-of-order deliveries safe:
// the first successful apply wins and every later apply reports
// applied=false without touching the row.
func (db *DB) ApplyOutcome(ctx context.Context, reviewID string, expectedStatusIn []models.ReviewStatus, outcome models.ReviewOutcome) (bool, error) {
	if !outcome.Status.Terminal() {
		return false, fmt.Errorf("outcome status %s is not terminal", outcome.Status)
	}
	if len(expectedStatusIn) == 0 {
		return false, fmt.Errorf("expected status set is empty")
	}

	placeholders := make([]string, len(expectedStatusIn))
	args := make([]interface{}, 0, len(expectedStatusIn)+8)

	now := db.now()
	var query string
	if outcome.Status == models.StatusCompleted {
		query = `UPDATE reviews
		         SET status = ?, sentiment_score = ?, sentiment_label = ?, error_message = NULL,
		             processing_attempts = ?, updated_at = ?
		         WHERE id = ? AND status IN (%s)`
		args = append(args, string(outcome.Status), outcome.Score, string(outcome.Label), outcome.Attempts, now, reviewID)
	} else {
		query = `UPDATE reviews
		         SET status = ?, sentiment_score = NULL, sentiment_label = NULL, error_message = ?,
		             processing_attempts = ?, updated_at = ?
		         WHERE id = ? AND status IN (%s)`
		args = append(args, string(outcome.Status), outcome.Error, outcome.Attempts, now, reviewID)
	}

	for i, s := range expectedStatusIn {
		placeholders[i] = "?"
		args = append(args, string(s))
	}
	query = fmt.Sprintf(query, strings.Join(placeholders, ", "))

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("apply_outcome").Inc()
		return false, fmt.Errorf("apply outcome: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// ListReviewsByHotel returns reviews for a hotel, newest first.
func (db *DB) ListReviewsByHotel(ctx context.Context, hotelID string, limit int) ([]*models.Review, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, hotel_id, title, content, rating, status, sentiment_score, sentiment_label,
		        processing_attempts, error_message, created_at, updated_at
		 FROM reviews WHERE hotel_id = ? ORDER BY created_at DESC LIMIT ?`, hotelID, limit)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("list_reviews").Inc()
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*models.Review
	for rows.Next() {
		var (
			r      models.Review
			status string
			score  sql.NullFloat64
			label  sql.NullString
			errMsg sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.HotelID, &r.Title, &r.Content, &r.Rating, &status,
			&score, &label, &r.ProcessingAttempts, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		r.Status = models.ReviewStatus(status)
		if score.Valid {
			r.SentimentScore = &score.Float64
		}
		if label.Valid {
			l := models.SentimentLabel(label.String)
			r.SentimentLabel = &l
		}
		if errMsg.Valid {
			r.ErrorMessage = &errMsg.String
		}
		reviews = append(reviews, &r)
	}
	return reviews, rows.Err()
}
