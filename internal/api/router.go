// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes builds the full HTTP handler: REST endpoints, the WebSocket
// upgrade, health, and Prometheus metrics.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogging())
	r.Use(CORS(h.cfg.Security.CORSOrigins))

	r.Get("/healthz", h.Health)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/ws", h.WebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/dashboard", h.Dashboard)
		r.Get("/pieces", h.ListPieces)
		r.Get("/orders", h.ListOrders)

		// Write endpoints get a moderate per-IP rate limit.
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(30, time.Minute))
			r.Post("/orders", h.CreateOrder)
			r.Post("/orders/{id}/advance", h.AdvanceOrder)
			r.Post("/orders/{id}/cancel", h.CancelOrder)
		})
	})

	return r
}
