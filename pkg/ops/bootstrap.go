// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package ops

import (
	"context"

	"github.com/drem/event-catalog/pkg/activ"
	"github.com/drem/event-catalog/pkg/bcast"
	"github.com/drem/event-catalog/pkg/events"
	"github.com/drem/event-catalog/pkg/stor"
)

// Bootstrap registers the event catalog and device activation operations.
// perPage is the page size of listEvents when the caller gives none.
func Bootstrap(r *Registry, ev *events.Resolver, ac *activ.Service, perPage int) error {
	listEvents := func(ctx context.Context, in events.ListEventsInput) (*events.Page, error) {
		if in.Page == 0 {
			in.Page = 1
		}
		if in.PerPage == 0 {
			in.PerPage = perPage
		}
		return ev.ListEvents(ctx, in)
	}
	getAllEvents := func(ctx context.Context, _ struct{}) ([]stor.Event, error) {
		return ev.GetAllEvents(ctx)
	}

	operations := []Operation{
		{Name: "getAllEvents", Kind: Query, Handler: bind(getAllEvents)},
		{Name: "listEvents", Kind: Query, Handler: bind(listEvents)},
		{Name: "getEvent", Kind: Query, Handler: bind(ev.GetEvent)},
		{Name: "addEvent", Kind: Mutation, Handler: bind(ev.AddEvent)},
		{Name: "updateEvent", Kind: Mutation, Handler: bind(ev.UpdateEvent)},
		{Name: "deleteEvent", Kind: Mutation, Handler: bind(ev.DeleteEvent)},
		{Name: "deviceActivation", Kind: Mutation, Handler: bind(ac.Activate)},
	}
	for _, topic := range bcast.Topics {
		operations = append(operations, Operation{Name: topic, Kind: Subscription})
	}

	for _, op := range operations {
		if err := r.Register(op); err != nil {
			return err
		}
	}
	return nil
}
