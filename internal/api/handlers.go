// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/innsight/innsight/internal/database"
	"github.com/innsight/innsight/internal/eventpipeline"
	"github.com/innsight/innsight/internal/logging"
	"github.com/innsight/innsight/internal/metrics"
	"github.com/innsight/innsight/internal/models"
)

// defaultListLimit caps review listings when the client supplies no limit.
const defaultListLimit = 50

// waitPollInterval is how often GetReview re-reads the store while a
// ?wait= request is pending.
const waitPollInterval = 100 * time.Millisecond

// Store is the persistence surface the handlers need. *database.DB
// satisfies it.
type Store interface {
	CreateHotel(ctx context.Context, h *models.Hotel) error
	GetHotel(ctx context.Context, id string) (*models.HotelSummary, error)
	ListHotels(ctx context.Context) ([]*models.Hotel, error)

	CreateReview(ctx context.Context, r *models.Review) error
	GetReview(ctx context.Context, id string) (*models.Review, error)
	ListReviewsByHotel(ctx context.Context, hotelID string, limit int) ([]*models.Review, error)
	ApplyOutcome(ctx context.Context, reviewID string, expectedStatusIn []models.ReviewStatus, outcome models.ReviewOutcome) (bool, error)
}

// EventPublisher enqueues review-created events for asynchronous
// analysis. *eventpipeline.Publisher satisfies it.
type EventPublisher interface {
	PublishReviewCreated(ctx context.Context, event *eventpipeline.ReviewCreated) error
}

// Handler serves the REST API. Review submission is asynchronous: the
// review is persisted as PENDING, an event is published, and the
// response is 202 Accepted. Clients observe completion by polling the
// review resource, optionally with ?wait=.
type Handler struct {
	store     Store
	publisher EventPublisher
	maxWait   time.Duration
}

// NewHandler creates an API handler. maxWait bounds the ?wait= parameter
// on review reads; zero disables waiting.
func NewHandler(store Store, publisher EventPublisher, maxWait time.Duration) *Handler {
	return &Handler{
		store:     store,
		publisher: publisher,
		maxWait:   maxWait,
	}
}

// CreateHotel handles POST /api/v1/hotels.
func (h *Handler) CreateHotel(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req CreateHotelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}
	if details := validateRequest(req); details != nil {
		rw.ValidationError("request validation failed", details)
		return
	}

	hotel := &models.Hotel{
		ID:   uuid.New().String(),
		Name: req.Name,
		City: req.City,
	}
	if err := h.store.CreateHotel(r.Context(), hotel); err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Created(hotel)
}

// GetHotel handles GET /api/v1/hotels/{hotelID}. The response includes
// aggregated review statistics.
func (h *Handler) GetHotel(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id := chi.URLParam(r, "hotelID")
	summary, err := h.store.GetHotel(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("hotel not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(summary)
}

// ListHotels handles GET /api/v1/hotels.
func (h *Handler) ListHotels(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	hotels, err := h.store.ListHotels(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(hotels)
}

// ListHotelReviews handles GET /api/v1/hotels/{hotelID}/reviews.
func (h *Handler) ListHotelReviews(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	hotelID := chi.URLParam(r, "hotelID")
	if _, err := h.store.GetHotel(r.Context(), hotelID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("hotel not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			rw.BadRequest("limit must be an integer")
			return
		}
		limit = n
	}
	if details := validateRequest(ListRequest{Limit: limit}); details != nil {
		rw.ValidationError("request validation failed", details)
		return
	}

	reviews, err := h.store.ListReviewsByHotel(r.Context(), hotelID, limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(reviews)
}

// CreateReview handles POST /api/v1/hotels/{hotelID}/reviews. The review
// is persisted as PENDING before the event is published, so a consumer
// that wins the race against this response still finds the row. If the
// publish fails the review is marked FAILED rather than left silently
// stuck in PENDING.
func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	hotelID := chi.URLParam(r, "hotelID")
	if _, err := h.store.GetHotel(r.Context(), hotelID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("hotel not found")
			return
		}
		rw.DatabaseError(err)
		return
	}

	var req CreateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}
	if details := validateRequest(req); details != nil {
		rw.ValidationError("request validation failed", details)
		return
	}

	review := &models.Review{
		ID:      uuid.New().String(),
		HotelID: hotelID,
		Title:   req.Title,
		Content: req.Content,
		Rating:  req.Rating,
		Status:  models.StatusPending,
	}
	if err := h.store.CreateReview(r.Context(), review); err != nil {
		rw.DatabaseError(err)
		return
	}

	event := &eventpipeline.ReviewCreated{
		ReviewID:    review.ID,
		HotelID:     review.HotelID,
		Title:       review.Title,
		Content:     review.Content,
		Rating:      review.Rating,
		SubmittedAt: review.CreatedAt,
	}
	if err := h.publisher.PublishReviewCreated(r.Context(), event); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("review_id", review.ID).Msg("publish review created failed")
		h.failUnpublished(r.Context(), review.ID)
		rw.ServiceUnavailable("review accepted but analysis could not be enqueued")
		return
	}

	metrics.ReviewsCreated.Inc()
	rw.Accepted(review)
}

// failUnpublished marks a freshly created review FAILED after its event
// could not be published. Best effort: the review is still PENDING so the
// conditional update cannot race a consumer, but a store error here only
// gets logged.
func (h *Handler) failUnpublished(ctx context.Context, reviewID string) {
	_, err := h.store.ApplyOutcome(ctx, reviewID,
		[]models.ReviewStatus{models.StatusPending},
		models.ReviewOutcome{
			Status: models.StatusFailed,
			Error:  "failed to enqueue analysis",
		})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("review_id", reviewID).Msg("mark unpublished review failed")
	}
}

// GetReview handles GET /api/v1/reviews/{reviewID}. An optional ?wait=
// duration makes the request block until the review reaches a terminal
// status or the wait expires, whichever comes first. The wait is clamped
// to the configured maximum and expiry is not an error: the current
// state is returned either way.
func (h *Handler) GetReview(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id := chi.URLParam(r, "reviewID")

	wait, ok := h.parseWait(r)
	if !ok {
		rw.BadRequest("wait must be a duration such as 5s")
		return
	}

	review, err := h.store.GetReview(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("review not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	if wait > 0 && !review.Status.Terminal() {
		review = h.awaitTerminal(r.Context(), id, review, wait)
	}
	rw.Success(review)
}

// parseWait reads and clamps the ?wait= query parameter. The second
// return value is false when the parameter is present but malformed.
func (h *Handler) parseWait(r *http.Request) (time.Duration, bool) {
	raw := r.URL.Query().Get("wait")
	if raw == "" {
		return 0, true
	}
	wait, err := time.ParseDuration(raw)
	if err != nil || wait < 0 {
		return 0, false
	}
	if wait > h.maxWait {
		wait = h.maxWait
	}
	return wait, true
}

// awaitTerminal polls the store until the review reaches a terminal
// status, the wait expires, or the request is cancelled. It returns the
// most recent state seen; transient read errors keep the last good one.
func (h *Handler) awaitTerminal(ctx context.Context, id string, last *models.Review, wait time.Duration) *models.Review {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	tick := time.NewTicker(waitPollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return last
		case <-deadline.C:
			return last
		case <-tick.C:
			review, err := h.store.GetReview(ctx, id)
			if err != nil {
				continue
			}
			last = review
			if review.Status.Terminal() {
				return review
			}
		}
	}
}

// Healthz handles GET /healthz with a liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.Success(map[string]string{"status": "ok"})
}
