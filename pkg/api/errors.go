// Copyright 2022 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package api

import (
	"net/http"
	"strconv"

	"github.com/drem/event-catalog/pkg/fault"
	"github.com/go-chi/render"
	log "github.com/sirupsen/logrus"
)

// retryAfter is the delay suggested to callers of an unavailable upstream, in seconds.
const retryAfter = 5

// ErrResponse renderer type for handling all sorts of errors.
type ErrResponse struct {
	Err            error `json:"-"` // low-level runtime error
	HTTPStatusCode int   `json:"-"` // http response status code

	StatusText string `json:"status"`          // user-level status message
	ErrorType  string `json:"type,omitempty"`  // error kind
	ErrorText  string `json:"error,omitempty"` // application-level error message, for debugging
}

// Render sets the status code, and the Retry-After header of retryable errors.
func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	if e.HTTPStatusCode == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	render.Status(r, e.HTTPStatusCode)
	return nil
}

// ErrInvalidRequest returns a structured http response for invalid requests.
func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		ErrorType:      fault.KindValidation.String(),
		ErrorText:      err.Error(),
	}
}

// ErrServer returns a structured http response for server errors.
func ErrServer(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusInternalServerError,
		StatusText:     "Server error.",
		ErrorText:      err.Error(),
	}
}

// ErrRender returns a structured http response in case of rendering errors.
func ErrRender(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusUnprocessableEntity,
		StatusText:     "Error rendering response.",
		ErrorText:      err.Error(),
	}
}

// ErrNotFound is the response to a reference to an absent resource.
var ErrNotFound = &ErrResponse{HTTPStatusCode: http.StatusNotFound, StatusText: "Resource not found.", ErrorType: fault.KindNotFound.String()}

// ErrUnauthenticated is the response to a request without identity.
var ErrUnauthenticated = &ErrResponse{HTTPStatusCode: http.StatusUnauthorized, StatusText: "Authentication required.", ErrorType: fault.KindAuthorization.String()}

// ErrFault maps an operation error to its http response.
func ErrFault(err error) render.Renderer {
	res := &ErrResponse{Err: err, ErrorType: fault.KindOf(err).String(), ErrorText: err.Error()}
	switch fault.KindOf(err) {
	case fault.KindValidation:
		res.HTTPStatusCode = http.StatusBadRequest
		res.StatusText = "Invalid request."
	case fault.KindNotFound:
		res.HTTPStatusCode = http.StatusNotFound
		res.StatusText = "Resource not found."
	case fault.KindAuthorization:
		res.HTTPStatusCode = http.StatusForbidden
		res.StatusText = "Operation not allowed."
	case fault.KindUnavailable:
		res.HTTPStatusCode = http.StatusServiceUnavailable
		res.StatusText = "Service unavailable, retry later."
		// the cause may expose internals
		log.WithError(err).Warn("Upstream unavailable")
		res.ErrorText = ""
	default:
		log.WithError(err).Error("Internal error")
		res.HTTPStatusCode = http.StatusInternalServerError
		res.StatusText = "Server error."
		res.ErrorText = ""
	}
	return res
}
