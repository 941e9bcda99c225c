// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// Package fault defines the error kinds returned by catalog operations.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an operation failure.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindAuthorization
	KindUnavailable
	KindProvisioning
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindNotFound:
		return "NotFoundError"
	case KindAuthorization:
		return "AuthorizationError"
	case KindUnavailable:
		return "UpstreamUnavailable"
	case KindProvisioning:
		return "ProvisioningError"
	}
	return "InternalError"
}

// Error is a classified operation error.
// Op is the operation name, Msg a caller-facing message and Err the optional cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the caller may retry the same request.
func (e *Error) Retryable() bool { return e.Kind == KindUnavailable }

// Validation reports a missing or invalid argument.
func Validation(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NotFound reports a reference to an absent record.
func NotFound(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Unauthorized reports a caller lacking a grant for an operation.
func Unauthorized(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindAuthorization, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Unavailable wraps a store or upstream service failure.
func Unavailable(op string, err error) *Error {
	return &Error{Kind: KindUnavailable, Op: op, Msg: "upstream unavailable", Err: err}
}

// Provisioning wraps a failed credential issuance.
func Provisioning(op string, err error) *Error {
	return &Error{Kind: KindProvisioning, Op: op, Err: err}
}

// KindOf returns the kind of err, or KindUnknown if err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is a *Error of kind k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
