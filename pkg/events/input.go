// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package events

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/drem/event-catalog/pkg/fault"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

// AddEventInput holds the arguments of addEvent.
type AddEventInput struct {
	EventName      string `json:"eventName" validate:"required,max=255"`
	RaceTimeInSec  *int   `json:"raceTimeInSec,omitempty" validate:"omitempty,gte=0"`
	NumberOfResets *int   `json:"numberOfResets,omitempty" validate:"omitempty,gte=0"`
	FleetID        string `json:"fleetId,omitempty" validate:"max=64"`
}

// UpdateEventInput holds the arguments of updateEvent.
// Every mutable field is required: an update is a full replace.
type UpdateEventInput struct {
	EventID        string `json:"eventId" validate:"required,max=64"`
	EventName      string `json:"eventName" validate:"required,max=255"`
	RaceTimeInSec  *int   `json:"raceTimeInSec" validate:"required,gte=0"`
	NumberOfResets *int   `json:"numberOfResets" validate:"required,gte=0"`
	FleetID        string `json:"fleetId,omitempty" validate:"max=64"`
}

// DeleteEventInput holds the arguments of deleteEvent.
type DeleteEventInput struct {
	EventID string `json:"eventId" validate:"required,max=64"`
}

// GetEventInput holds the arguments of getEvent.
type GetEventInput struct {
	EventID string `json:"eventId" validate:"required,max=64"`
}

// ListEventsInput holds the arguments of listEvents.
type ListEventsInput struct {
	Page    int `json:"page" validate:"gte=1"`
	PerPage int `json:"perPage" validate:"gte=1"`
}

func (in *AddEventInput) normalize() {
	in.EventName = normalizeText(in.EventName)
	in.FleetID = strings.TrimSpace(in.FleetID)
}

func (in *UpdateEventInput) normalize() {
	in.EventID = strings.TrimSpace(in.EventID)
	in.EventName = normalizeText(in.EventName)
	in.FleetID = strings.TrimSpace(in.FleetID)
}

func (in *DeleteEventInput) normalize() {
	in.EventID = strings.TrimSpace(in.EventID)
}

func (in *GetEventInput) normalize() {
	in.EventID = strings.TrimSpace(in.EventID)
}

// normalizeText trims s and puts it in Unicode normalization form C,
// so that visually identical names are stored identically.
func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by their json names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check validates in and turns a failure into a validation fault.
func (r *Resolver) check(op string, in interface{}) error {
	err := r.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fault.Validation(op, "%v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fault.Validation(op, "%s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
}
