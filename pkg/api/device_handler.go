// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package api

import (
	"encoding/json"
	"net/http"

	"github.com/drem/event-catalog/pkg/activ"
	"github.com/go-chi/render"
)

// ActivateDevice issues an enrollment credential for a device.
// A provisioning failure is returned with a 200 status, the payload carries the error.
func (a *APICtrl) ActivateDevice(w http.ResponseWriter, r *http.Request) {

	// get the payload
	data := &ActivationRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	args, _ := json.Marshal(data.Request)

	res, ok := a.dispatch(w, r, "deviceActivation", args)
	if !ok {
		return
	}
	if err := render.Render(w, r, &ActivationResponse{Response: res.(*activ.Response)}); err != nil {
		render.Render(w, r, ErrRender(err))
	}
}

// ActivationRequest is the request payload for device activations.
type ActivationRequest struct {
	activ.Request
}

// Bind post-processes requests after unmarshalling.
// The arguments are validated by the operation, after the access check.
func (d *ActivationRequest) Bind(r *http.Request) error {
	return nil
}

// ActivationResponse is the response payload for device activations.
type ActivationResponse struct {
	*activ.Response
}

// Render processes responses before marshalling.
func (d *ActivationResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}
