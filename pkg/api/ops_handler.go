// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/drem/event-catalog/pkg/stor"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// maxArgsSize bounds the size of operation arguments.
const maxArgsSize = 1 << 20

// Invoke runs the operation named in the path with the JSON body as arguments.
func (a *APICtrl) Invoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "operation")
	if name == "" {
		render.Render(w, r, ErrInvalidRequest(errors.New("missing operation name")))
		return
	}
	args, err := io.ReadAll(io.LimitReader(r.Body, maxArgsSize))
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	res, ok := a.dispatch(w, r, name, args)
	if !ok {
		return
	}

	if event, created := res.(*stor.Event); created && name == "addEvent" {
		if loc := a.link("event", map[string]interface{}{"eventId": event.EventID}); loc != "" {
			w.Header().Set("Location", loc)
		}
		render.Status(r, http.StatusCreated)
	}
	render.JSON(w, r, res)
}

// Operations lists the operation paths the service exposes.
func (a *APICtrl) Operations(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, a.Ops.Paths())
}
