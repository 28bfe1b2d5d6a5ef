// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter assembles the full route tree.
func NewRouter(handler *Handler, mw *Middleware, blocker Blocker) http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())

		r.Get("/health", handler.Health)
		r.Get("/ws", handler.WebSocket)

		// Event submission is additionally guarded by the adaptive
		// block table.
		r.With(BlockGuard(blocker)).Post("/events", handler.SubmitEvent)

		r.Get("/incidents", handler.ListIncidents)
		r.Get("/analytics", handler.Analytics)

		r.Route("/monitors", func(r chi.Router) {
			r.Post("/", handler.AddMonitor)
			r.Delete("/", handler.RemoveMonitor)
			r.Get("/", handler.ListMonitors)
		})

		r.Route("/simulation", func(r chi.Router) {
			r.Post("/", handler.StartSimulation)
			r.Delete("/", handler.StopSimulation)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
