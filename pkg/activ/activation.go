// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// Package activ issues single-use enrollment credentials for fleet devices.
//
// A provisioning failure is not returned as an error: it is logged and
// carried by the Response, which callers must inspect with Failed.
package activ

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/drem/event-catalog/pkg/conf"
	"github.com/drem/event-catalog/pkg/fault"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
)

// labelLayout is the time layout of the default instance name, minute precision.
const labelLayout = "2006-01-02-15:04"

// Device types accepted by the registry.
const (
	DeviceDeepRacer = "deepracer"
	DeviceTimer     = "timer"
)

// Request holds the arguments of deviceActivation.
// FleetID and DeviceUIPassword may be empty, timers have no device UI.
type Request struct {
	Hostname         string `json:"hostname" validate:"required,max=128"`
	FleetName        string `json:"fleetName" validate:"required"`
	FleetID          string `json:"fleetId"`
	DeviceUIPassword string `json:"deviceUiPassword"`
	DeviceType       string `json:"deviceType" validate:"required,oneof=deepracer timer"`
}

// Response is the outcome of an activation.
// On failure ActivationCode and ActivationID are empty and ErrorType is set.
type Response struct {
	Region         string `json:"region,omitempty"`
	ActivationCode string `json:"activationCode,omitempty"`
	ActivationID   string `json:"activationId,omitempty"`
	ErrorType      string `json:"errorType,omitempty"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
}

// Failed reports whether the response carries a provisioning error.
func (r *Response) Failed() bool {
	return r.ErrorType != ""
}

// ActivationInput is what the provisioning service receives.
type ActivationInput struct {
	InstanceName string
	Description  string
	IamRole      string
	Expiration   *time.Time
	Tags         map[string]string
}

// Provisioner issues activation credentials limited to one registration.
type Provisioner interface {
	CreateActivation(ctx context.Context, in ActivationInput) (code, id string, err error)
}

// Service is the device activation service.
type Service struct {
	prov     Provisioner
	cfg      conf.Activation
	now      func() time.Time
	validate *validator.Validate
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for the instance label and expiration.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns an activation service.
func New(prov Provisioner, cfg conf.Activation, opts ...Option) *Service {
	s := &Service{
		prov:     prov,
		cfg:      cfg,
		now:      time.Now,
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks a request before any provisioning call.
func (s *Service) Validate(req *Request) error {
	req.Hostname = norm.NFC.String(strings.TrimSpace(req.Hostname))
	req.FleetName = strings.TrimSpace(req.FleetName)
	req.FleetID = strings.TrimSpace(req.FleetID)
	req.DeviceType = strings.TrimSpace(req.DeviceType)
	if err := s.validate.Struct(req); err != nil {
		return fault.Validation("deviceActivation", "%v", err)
	}
	return nil
}

// Activate requests a fresh activation credential for a device.
// A validation failure is returned as an error, a provisioning failure as a failed Response.
func (s *Service) Activate(ctx context.Context, req Request) (*Response, error) {
	if err := s.Validate(&req); err != nil {
		return nil, err
	}

	now := s.now()
	label := req.Hostname + " - " + now.Format(labelLayout)
	// transport encoding of special characters, not a protection
	password := base64.StdEncoding.EncodeToString([]byte(req.DeviceUIPassword))

	in := ActivationInput{
		InstanceName: label,
		Description:  s.cfg.Description,
		IamRole:      s.cfg.IamRole,
		Tags: map[string]string{
			"Name":             label,
			"Type":             req.DeviceType,
			"fleetName":        req.FleetName,
			"fleetId":          req.FleetID,
			"DeviceUiPassword": password,
		},
	}
	if s.cfg.ExpirationHours > 0 {
		exp := now.Add(time.Duration(s.cfg.ExpirationHours) * time.Hour)
		in.Expiration = &exp
	}

	fields := log.Fields{"hostname": req.Hostname, "fleetId": req.FleetID, "deviceType": req.DeviceType}
	code, id, err := s.prov.CreateActivation(ctx, in)
	if err != nil {
		fe := fault.Provisioning("deviceActivation", err)
		log.WithFields(fields).WithError(err).Error("Device activation failed")
		return &Response{ErrorType: errorType(fe), ErrorMessage: err.Error()}, nil
	}

	log.WithFields(fields).WithField("activationId", id).Info("Device activation created")
	return &Response{Region: s.cfg.Region, ActivationCode: code, ActivationID: id}, nil
}

// errorType names the failure, using the provider error code when there is one.
func errorType(fe *fault.Error) string {
	var aerr awserr.Error
	if errors.As(fe.Err, &aerr) {
		return aerr.Code()
	}
	return fe.Kind.String()
}
