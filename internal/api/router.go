// InnSight - Hotel Review Sentiment Analytics
// Copyright 2026 InnSight contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/innsight/innsight

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/innsight/innsight/internal/config"
)

// NewRouter assembles the HTTP routing tree. Operational endpoints
// (/healthz, /metrics) sit outside the rate limiter so probes and
// scrapers are never throttled by API traffic.
func NewRouter(handler *Handler, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(cfg.CORSOrigins))
	r.Use(RequestLogging)

	r.Get("/healthz", handler.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(cfg))
		r.Use(RequestMetrics)

		r.Route("/hotels", func(r chi.Router) {
			r.Post("/", handler.CreateHotel)
			r.Get("/", handler.ListHotels)

			r.Route("/{hotelID}", func(r chi.Router) {
				r.Get("/", handler.GetHotel)
				r.Get("/reviews", handler.ListHotelReviews)
				r.Post("/reviews", handler.CreateReview)
			})
		})

		r.Get("/reviews/{reviewID}", handler.GetReview)
	})

	return r
}
