// Copyright 2022 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// Package api manages the api controllers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/drem/event-catalog/pkg/bcast"
	"github.com/drem/event-catalog/pkg/conf"
	"github.com/drem/event-catalog/pkg/fault"
	"github.com/drem/event-catalog/pkg/ops"
	"github.com/drem/event-catalog/pkg/stor"
	"github.com/go-chi/render"
	"github.com/jtacoma/uritemplates"
)

// APICtrl contains the context required by http handlers.
type APICtrl struct {
	*conf.Config
	stor.Store
	Ops *ops.Registry
	Hub *bcast.Hub
}

// NewAPICtrl returns a new API controller
func NewAPICtrl(cf *conf.Config, st stor.Store, reg *ops.Registry, hub *bcast.Hub) *APICtrl {
	return &APICtrl{
		Config: cf,
		Store:  st,
		Ops:    reg,
		Hub:    hub,
	}
}

// Health checks that the database is reachable.
func (a *APICtrl) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.Store.Ping(ctx); err != nil {
		w.Header().Set("Retry-After", "5")
		http.Error(w, "The event catalog database is unreachable", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("The event catalog is running!"))
}

// link expands the named link template, an empty string if there is none.
func (a *APICtrl) link(name string, values map[string]interface{}) string {
	tpl, ok := a.Config.Links[name]
	if !ok {
		return ""
	}
	t, err := uritemplates.Parse(tpl)
	if err != nil {
		return ""
	}
	values["base"] = a.Config.PublicBaseUrl
	res, err := t.Expand(values)
	if err != nil {
		return ""
	}
	return res
}

// dispatch invokes an operation on behalf of the request caller.
// On failure the error is rendered and ok is false.
func (a *APICtrl) dispatch(w http.ResponseWriter, r *http.Request, name string, args []byte) (res interface{}, ok bool) {
	caller := ops.CallerFrom(r.Context())
	res, err := a.Ops.Dispatch(r.Context(), caller, name, args)
	if err != nil {
		if caller.Anonymous() && fault.Is(err, fault.KindAuthorization) {
			render.Render(w, r, ErrUnauthenticated)
			return nil, false
		}
		render.Render(w, r, ErrFault(err))
		return nil, false
	}
	return res, true
}
