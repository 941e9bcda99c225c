// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package api

import (
	"net/http"

	"github.com/drem/event-catalog/pkg/bcast"
	"github.com/drem/event-catalog/pkg/ops"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	log "github.com/sirupsen/logrus"
)

// Subscribe streams the events broadcast on a topic over a websocket.
func (a *APICtrl) Subscribe(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")
	if !bcast.ValidTopic(topic) {
		render.Render(w, r, ErrNotFound)
		return
	}

	caller := ops.CallerFrom(r.Context())
	if _, err := a.Ops.Authorize(caller, topic); err != nil {
		if caller.Anonymous() {
			render.Render(w, r, ErrUnauthenticated)
			return
		}
		render.Render(w, r, ErrFault(err))
		return
	}

	log.WithFields(log.Fields{"topic": topic, "caller": caller.Subject}).Info("Subscriber connected")
	a.Hub.ServeWS(w, r, topic)
	log.WithFields(log.Fields{"topic": topic, "caller": caller.Subject}).Info("Subscriber disconnected")
}
