// TripSync - Group Trip Planning with Real-Time Coordination
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

// Package api provides HTTP routing and handlers using the chi router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/tripsync/internal/config"
	"github.com/tomtom215/tripsync/internal/middleware"
)

// Router assembles the HTTP surface.
type Router struct {
	handler *Handler
	authn   *middleware.Authenticator
	cfg     *config.Config
}

func NewRouter(handler *Handler, authn *middleware.Authenticator, cfg *config.Config) *Router {
	return &Router{handler: handler, authn: authn, cfg: cfg}
}

// Setup wires middleware and routes.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/api/v1/health", rt.handler.Health)
	r.Get("/live", rt.handler.Live)
	r.Get("/ready", rt.handler.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Auth endpoints carry a tight per-IP limit against brute force.
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(httprate.LimitByIP(10, time.Minute))
		r.Use(middleware.PrometheusMetrics)
		r.Post("/register", rt.handler.Register)
		r.Post("/login", rt.handler.Login)
		r.With(rt.authn.RequireAuth).Post("/logout", rt.handler.Logout)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rt.cfg.Security.RateLimitReqs, rt.cfg.Security.RateLimitWindow))
		r.Use(middleware.PrometheusMetrics)
		r.Use(rt.authn.RequireAuth)

		r.Get("/ws", rt.handler.WebSocket)

		r.Route("/trips", func(r chi.Router) {
			r.Post("/", rt.handler.CreateTrip)
			r.Get("/", rt.handler.ListTrips)
			r.Post("/join", rt.handler.JoinTrip)

			r.Route("/{tripID}", func(r chi.Router) {
				r.Get("/", rt.handler.GetTrip)
				r.Get("/members", rt.handler.ListTripMembers)
				r.Get("/messages", rt.handler.ListTripMessages)
				r.Get("/activities", rt.handler.ListTripActivities)

				r.Get("/grocery", rt.handler.ListGroceryItems)
				r.Post("/grocery", rt.handler.AddGroceryItem)
				r.Patch("/grocery/{itemID}", rt.handler.ToggleGroceryItem)

				r.Get("/packing", rt.handler.ListPackingItems)
				r.Post("/packing", rt.handler.AddPackingItem)
				r.Patch("/packing/{itemID}", rt.handler.TogglePackingItem)

				r.Get("/expenses", rt.handler.ListExpenses)
				r.Post("/expenses", rt.handler.AddExpense)
			})
		})
	})

	return r
}
