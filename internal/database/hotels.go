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

	"github.com/innsight/innsight/internal/metrics"
	"github.com/innsight/innsight/internal/models"
)

// CreateHotel inserts a new hotel.
func (db *DB) CreateHotel(ctx context.Context, h *models.Hotel) error {
	h.CreatedAt = db.now()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO hotels (id, name, city, created_at) VALUES (?, ?, ?, ?)`,
		h.ID, h.Name, h.City, h.CreatedAt)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("create_hotel").Inc()
		return fmt.Errorf("insert hotel: %w", err)
	}
	return nil
}

// GetHotel fetches a hotel with aggregated review statistics.
// Returns ErrNotFound if the hotel does not exist.
func (db *DB) GetHotel(ctx context.Context, id string) (*models.HotelSummary, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT h.id, h.name, h.city, h.created_at,
		        COUNT(r.id),
		        COALESCE(AVG(r.rating), 0),
		        COALESCE(AVG(r.sentiment_score) FILTER (WHERE r.status = 'COMPLETED'), 0),
		        COUNT(r.id) FILTER (WHERE r.status = 'COMPLETED')
		 FROM hotels h
		 LEFT JOIN reviews r ON r.hotel_id = h.id
		 WHERE h.id = ?
		 GROUP BY h.id, h.name, h.city, h.created_at`, id)

	var (
		s    models.HotelSummary
		city sql.NullString
	)
	err := row.Scan(&s.ID, &s.Name, &city, &s.CreatedAt,
		&s.ReviewCount, &s.AverageRating, &s.AverageSentiment, &s.CompletedReviews)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("get_hotel").Inc()
		return nil, fmt.Errorf("query hotel: %w", err)
	}
	s.City = city.String
	return &s, nil
}

// ListHotels returns all hotels ordered by name.
func (db *DB) ListHotels(ctx context.Context) ([]*models.Hotel, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, city, created_at FROM hotels ORDER BY name`)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("list_hotels").Inc()
		return nil, fmt.Errorf("query hotels: %w", err)
	}
	defer rows.Close()

	var hotels []*models.Hotel
	for rows.Next() {
		var (
			h    models.Hotel
			city sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.Name, &city, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan hotel: %w", err)
		}
		h.City = city.String
		hotels = append(hotels, &h)
	}
	return hotels, rows.Err()
}
