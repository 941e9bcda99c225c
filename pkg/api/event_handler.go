// Copyright 2022 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/drem/event-catalog/pkg/events"
	"github.com/drem/event-catalog/pkg/stor"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// ListEvents lists all events, or a page of events if pagination parameters are present.
func (a *APICtrl) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("page") && !q.Has("per_page") {
		res, ok := a.dispatch(w, r, "getAllEvents", nil)
		if !ok {
			return
		}
		list, _ := res.([]stor.Event)
		if err := render.RenderList(w, r, NewEventListResponse(list)); err != nil {
			render.Render(w, r, ErrRender(err))
		}
		return
	}

	page, _ := r.Context().Value(PageKey).(int)
	perPage, _ := r.Context().Value(PerPageKey).(int)
	args, _ := json.Marshal(events.ListEventsInput{Page: page, PerPage: perPage})
	res, ok := a.dispatch(w, r, "listEvents", args)
	if !ok {
		return
	}
	p := res.(*events.Page)
	if int64(p.Page*p.PerPage) < p.Total {
		w.Header().Set("Link", fmt.Sprintf("<%s/events?page=%d&per_page=%d>; rel=\"next\"", a.Config.PublicBaseUrl, p.Page+1, p.PerPage))
	}
	if err := render.Render(w, r, &EventPageResponse{Page: p}); err != nil {
		render.Render(w, r, ErrRender(err))
	}
}

// CreateEvent adds a new event.
func (a *APICtrl) CreateEvent(w http.ResponseWriter, r *http.Request) {

	// get the payload
	data := &EventRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	res, ok := a.dispatch(w, r, "addEvent", data.args())
	if !ok {
		return
	}
	event := res.(*stor.Event)

	if loc := a.link("event", map[string]interface{}{"eventId": event.EventID}); loc != "" {
		w.Header().Set("Location", loc)
	}
	render.Status(r, http.StatusCreated)
	if err := render.Render(w, r, NewEventResponse(event)); err != nil {
		render.Render(w, r, ErrRender(err))
	}
}

// GetEvent returns a specific event.
func (a *APICtrl) GetEvent(w http.ResponseWriter, r *http.Request) {
	a.eventByID(w, r, "getEvent")
}

// UpdateEvent replaces the mutable fields of an existing event.
func (a *APICtrl) UpdateEvent(w http.ResponseWriter, r *http.Request) {

	// get the payload
	data := &EventRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	// the identifier comes from the path
	data.fields["eventId"], _ = json.Marshal(chi.URLParam(r, "eventID"))

	res, ok := a.dispatch(w, r, "updateEvent", data.args())
	if !ok {
		return
	}
	if err := render.Render(w, r, NewEventResponse(res.(*stor.Event))); err != nil {
		render.Render(w, r, ErrRender(err))
	}
}

// DeleteEvent removes an existing event.
func (a *APICtrl) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	a.eventByID(w, r, "deleteEvent")
}

func (a *APICtrl) eventByID(w http.ResponseWriter, r *http.Request, operation string) {
	eventID := chi.URLParam(r, "eventID")
	if eventID == "" {
		render.Render(w, r, ErrInvalidRequest(errors.New("missing required event identifier")))
		return
	}
	args, _ := json.Marshal(map[string]string{"eventId": eventID})
	res, ok := a.dispatch(w, r, operation, args)
	if !ok {
		return
	}
	if err := render.Render(w, r, NewEventResponse(res.(*stor.Event))); err != nil {
		render.Render(w, r, ErrRender(err))
	}
}

// --
// Request and Response payloads for the REST api.
// --

// EventRequest is the request event payload.
// Fields are kept raw, the operation schema validates them.
type EventRequest struct {
	fields map[string]json.RawMessage
}

// UnmarshalJSON keeps the payload fields as they are.
func (e *EventRequest) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &e.fields)
}

// Bind post-processes requests after unmarshalling.
func (e *EventRequest) Bind(r *http.Request) error {
	// a null payload is left to the operation schema
	if e.fields == nil {
		e.fields = map[string]json.RawMessage{}
	}
	// the identifier is never taken from the body
	delete(e.fields, "eventId")
	return nil
}

func (e *EventRequest) args() []byte {
	b, _ := json.Marshal(e.fields)
	return b
}

// EventResponse is the response event payload.
type EventResponse struct {
	*stor.Event
}

// NewEventListResponse creates a rendered list of events
func NewEventListResponse(list []stor.Event) []render.Renderer {
	res := []render.Renderer{}
	for i := range list {
		res = append(res, NewEventResponse(&list[i]))
	}
	return res
}

// NewEventResponse creates a rendered event.
func NewEventResponse(event *stor.Event) *EventResponse {
	return &EventResponse{Event: event}
}

// Render processes responses before marshalling.
func (e *EventResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// EventPageResponse is a page of events.
type EventPageResponse struct {
	*events.Page
}

// Render processes responses before marshalling.
func (p *EventPageResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}
