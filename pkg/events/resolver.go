// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// Package events resolves the event catalog operations against the event store
// and broadcasts the outcome of every successful mutation.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/drem/event-catalog/pkg/bcast"
	"github.com/drem/event-catalog/pkg/fault"
	"github.com/drem/event-catalog/pkg/stor"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DefaultMaxPerPage bounds the size of a listed page.
const DefaultMaxPerPage = 1000

// Resolver executes the event operations.
type Resolver struct {
	repo       stor.EventRepository
	bc         bcast.Broadcaster
	now        func() time.Time
	newID      func() string
	maxPerPage int
	validate   *validator.Validate
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock sets the clock used for createdAt.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithIDGenerator sets the event identifier generator.
func WithIDGenerator(gen func() string) Option {
	return func(r *Resolver) { r.newID = gen }
}

// WithMaxPerPage sets the largest page ListEvents returns.
func WithMaxPerPage(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxPerPage = n
		}
	}
}

// New returns a resolver storing events in repo and publishing mutations to b.
func New(repo stor.EventRepository, b bcast.Broadcaster, opts ...Option) *Resolver {
	r := &Resolver{
		repo:       repo,
		bc:         b,
		now:        time.Now,
		newID:      uuid.NewString,
		maxPerPage: DefaultMaxPerPage,
		validate:   newValidator(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Page is one page of a paginated event listing.
type Page struct {
	Events  []stor.Event `json:"events"`
	Page    int          `json:"page"`
	PerPage int          `json:"perPage"`
	Total   int64        `json:"total"`
}

// GetAllEvents returns every stored event.
func (r *Resolver) GetAllEvents(ctx context.Context) ([]stor.Event, error) {
	const op = "getAllEvents"

	events, err := r.repo.Scan(ctx)
	if err != nil {
		return nil, fault.Unavailable(op, err)
	}
	return events, nil
}

// ListEvents returns a page of events, pages starting at 1.
func (r *Resolver) ListEvents(ctx context.Context, in ListEventsInput) (*Page, error) {
	const op = "listEvents"

	if err := r.check(op, &in); err != nil {
		return nil, err
	}
	if in.PerPage > r.maxPerPage {
		in.PerPage = r.maxPerPage
	}
	total, err := r.repo.Count(ctx)
	if err != nil {
		return nil, fault.Unavailable(op, err)
	}
	events, err := r.repo.List(ctx, in.Page, in.PerPage)
	if err != nil {
		return nil, fault.Unavailable(op, err)
	}
	return &Page{Events: events, Page: in.Page, PerPage: in.PerPage, Total: total}, nil
}

// GetEvent returns a single event.
func (r *Resolver) GetEvent(ctx context.Context, in GetEventInput) (*stor.Event, error) {
	const op = "getEvent"

	in.normalize()
	if err := r.check(op, &in); err != nil {
		return nil, err
	}
	event, err := r.repo.Get(ctx, in.EventID)
	if err != nil {
		return nil, storeError(op, in.EventID, err)
	}
	return event, nil
}

// AddEvent creates an event with a fresh identifier.
func (r *Resolver) AddEvent(ctx context.Context, in AddEventInput) (*stor.Event, error) {
	const op = "addEvent"

	in.normalize()
	if err := r.check(op, &in); err != nil {
		return nil, err
	}
	event := &stor.Event{
		EventID:        r.newID(),
		EventName:      in.EventName,
		FleetID:        in.FleetID,
		CreatedAt:      r.now().UTC().Truncate(time.Millisecond),
		RaceTimeInSec:  intValue(in.RaceTimeInSec),
		NumberOfResets: intValue(in.NumberOfResets),
	}
	if err := r.repo.Put(ctx, event); err != nil {
		return nil, fault.Unavailable(op, err)
	}
	r.publish(bcast.TopicAddedEvent, event)
	return event, nil
}

// UpdateEvent replaces every mutable field of an existing event.
func (r *Resolver) UpdateEvent(ctx context.Context, in UpdateEventInput) (*stor.Event, error) {
	const op = "updateEvent"

	in.normalize()
	if err := r.check(op, &in); err != nil {
		return nil, err
	}
	current, err := r.repo.Get(ctx, in.EventID)
	if err != nil {
		return nil, storeError(op, in.EventID, err)
	}
	event := &stor.Event{
		EventID:        current.EventID,
		EventName:      in.EventName,
		FleetID:        in.FleetID,
		CreatedAt:      current.CreatedAt,
		RaceTimeInSec:  *in.RaceTimeInSec,
		NumberOfResets: *in.NumberOfResets,
	}
	// fails if the event was deleted since it was read
	if err := r.repo.Update(ctx, event); err != nil {
		return nil, storeError(op, in.EventID, err)
	}
	r.publish(bcast.TopicUpdatedEvent, event)
	return event, nil
}

// DeleteEvent removes an event and returns its last known state.
func (r *Resolver) DeleteEvent(ctx context.Context, in DeleteEventInput) (*stor.Event, error) {
	const op = "deleteEvent"

	in.normalize()
	if err := r.check(op, &in); err != nil {
		return nil, err
	}
	event, err := r.repo.Delete(ctx, in.EventID)
	if err != nil {
		return nil, storeError(op, in.EventID, err)
	}
	r.publish(bcast.TopicDeletedEvent, event)
	return event, nil
}

// publish sends a copy of the event, so that subscribers never share the caller's record.
func (r *Resolver) publish(topic string, event *stor.Event) {
	log.WithFields(log.Fields{"topic": topic, "eventId": event.EventID}).Debug("Broadcasting event")
	if r.bc != nil {
		r.bc.Publish(topic, *event)
	}
}

func storeError(op, eventID string, err error) error {
	if errors.Is(err, stor.ErrNotFound) {
		return fault.NotFound(op, "event %s not found", eventID)
	}
	return fault.Unavailable(op, err)
}

func intValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
