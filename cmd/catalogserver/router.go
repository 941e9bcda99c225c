// Copyright 2025 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"github.com/drem/event-catalog/pkg/api"
)

func (s *Server) setRoutes() *chi.Mux {

	// Set api controller dependencies
	a := api.NewAPICtrl(s.Config, s.Store, s.Ops, s.Hub)

	// Define the router
	r := chi.NewRouter()

	// Recovery middleware
	r.Use(middleware.Recoverer)

	// Heartbeat (excluded from logs)
	r.Get("/health", a.Health)

	// Group for all other routes
	r.Group(func(r chi.Router) {
		// Logger middleware
		r.Use(middleware.Logger)

		r.NotFound(notFoundProblemDetail)

		// CORS Configuration
		origins := s.Config.Cors.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000"}
		}
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins, // URLs of the web front ends
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
			ExposedHeaders:   []string{"Link", "Location", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300, // Maximum value not ignored by any of major browsers
		}))

		r.Post("/auth/login", Login(s.Config))

		// Require JWT Authentication
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(s.Config))

			// Subscriptions, over websocket
			r.Get("/subscriptions/{topic}", a.Subscribe) // GET /subscriptions/addedEvent

			r.Group(func(r chi.Router) {
				r.Use(render.SetContentType(render.ContentTypeJSON))

				// Operations
				r.Get("/ops", a.Operations)          // GET /ops
				r.Post("/ops/{operation}", a.Invoke) // POST /ops/addEvent

				// Events, CRUD
				r.Route("/events", func(r chi.Router) {
					r.With(api.Paginate(s.Config.Pagination.DefaultPerPage, s.Config.Pagination.MaxPerPage)).Get("/", a.ListEvents) // GET /events{?page,per_page}
					r.Post("/", a.CreateEvent)                                                                                      // POST /events

					r.Route("/{eventID}", func(r chi.Router) {
						r.Get("/", a.GetEvent)       // GET /events/123
						r.Put("/", a.UpdateEvent)    // PUT /events/123
						r.Delete("/", a.DeleteEvent) // DELETE /events/123
					})
				})

				// Device activation
				r.Post("/devices/activation", a.ActivateDevice) // POST /devices/activation
			})
		})
	})

	return r
}

// notFoundProblemDetail formats not found errors as problem details, for the sake of consistency.
func notFoundProblemDetail(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{"type": "about:blank", "title": "Endpoint not found."}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)

	json.NewEncoder(w).Encode(response)
}
