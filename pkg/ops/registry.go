// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// Package ops maps named operations to typed handlers.
//
// Dispatch authorizes the caller, validates the arguments against the
// operation schema, then runs the handler within the operation timeout.
package ops

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/drem/event-catalog/pkg/fault"
	log "github.com/sirupsen/logrus"
	jsonschema "github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.schema.json
var schemafs embed.FS

// Kind is the operation type, the first element of an operation path.
type Kind string

const (
	Query        Kind = "Query"
	Mutation     Kind = "Mutation"
	Subscription Kind = "Subscription"
)

// Handler runs an operation on raw JSON arguments.
type Handler func(ctx context.Context, args json.RawMessage) (interface{}, error)

// Operation is a registered operation.
// Subscriptions have no handler, the transport serves them.
type Operation struct {
	Name    string
	Kind    Kind
	Handler Handler

	schema *jsonschema.Schema
}

// Path returns the qualified operation name, e.g. Mutation.addEvent.
func (o Operation) Path() string {
	return string(o.Kind) + "." + o.Name
}

// Authorizer grants operation paths to caller roles.
type Authorizer interface {
	Authorize(roles []string, path string) error
}

// Caller is the authenticated principal invoking an operation.
type Caller struct {
	Subject string   `json:"sub"`
	Roles   []string `json:"roles"`
}

// Anonymous reports whether no identity was presented.
func (c Caller) Anonymous() bool {
	return c.Subject == ""
}

type callerKey struct{}

// WithCaller stores the caller in ctx.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored in ctx, anonymous if none.
func CallerFrom(ctx context.Context) Caller {
	c, _ := ctx.Value(callerKey{}).(Caller)
	return c
}

// Registry holds the operations of the service.
type Registry struct {
	auth    Authorizer
	timeout time.Duration

	mu  sync.RWMutex
	ops map[string]Operation
}

// NewRegistry returns an empty registry.
// A zero timeout leaves handlers unbounded.
func NewRegistry(auth Authorizer, timeout time.Duration) *Registry {
	return &Registry{
		auth:    auth,
		timeout: timeout,
		ops:     make(map[string]Operation),
	}
}

// Register adds an operation, compiling its embedded argument schema if there is one.
func (r *Registry) Register(op Operation) error {
	if op.Name == "" {
		return errors.New("operation without a name")
	}
	switch op.Kind {
	case Query, Mutation:
		if op.Handler == nil {
			return fmt.Errorf("%s: missing handler", op.Path())
		}
	case Subscription:
	default:
		return fmt.Errorf("%s: invalid operation kind", op.Path())
	}

	data, err := schemafs.ReadFile("schemas/" + op.Name + ".schema.json")
	if err == nil {
		op.schema, err = jsonschema.NewSchema(jsonschema.NewBytesLoader(data))
		if err != nil {
			return fmt.Errorf("%s: invalid schema: %w", op.Path(), err)
		}
	} else if op.Kind != Subscription {
		return fmt.Errorf("%s: no argument schema", op.Path())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ops[op.Name]; ok {
		return fmt.Errorf("%s: already registered", op.Path())
	}
	r.ops[op.Name] = op
	return nil
}

// Lookup returns the operation registered under name.
func (r *Registry) Lookup(name string) (Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	return op, ok
}

// Paths returns the sorted paths of every registered operation.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]string, 0, len(r.ops))
	for _, op := range r.ops {
		res = append(res, op.Path())
	}
	sort.Strings(res)
	return res
}

// Authorize checks that caller may invoke the named operation.
func (r *Registry) Authorize(caller Caller, name string) (Operation, error) {
	op, ok := r.Lookup(name)
	if !ok {
		return op, fault.Validation(name, "unknown operation")
	}
	if err := r.auth.Authorize(caller.Roles, op.Path()); err != nil {
		log.WithFields(log.Fields{"operation": op.Path(), "caller": caller.Subject}).Info("Operation denied")
		return op, err
	}
	return op, nil
}

// Dispatch invokes the named operation on behalf of caller.
func (r *Registry) Dispatch(ctx context.Context, caller Caller, name string, args json.RawMessage) (interface{}, error) {
	op, err := r.Authorize(caller, name)
	if err != nil {
		return nil, err
	}
	if op.Handler == nil {
		return nil, fault.Validation(name, "%s is served by the subscription endpoint", op.Path())
	}

	if len(strings.TrimSpace(string(args))) == 0 {
		args = json.RawMessage("{}")
	}
	if err := validateArgs(op, args); err != nil {
		return nil, err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	ctx = WithCaller(ctx, caller)

	fields := log.Fields{"operation": op.Path(), "caller": caller.Subject}
	start := time.Now()
	res, err := op.Handler(ctx, args)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !fault.Is(err, fault.KindUnavailable) {
			err = fault.Unavailable(name, ctx.Err())
		}
		log.WithFields(fields).WithError(err).Info("Operation failed")
		return nil, err
	}
	log.WithFields(fields).WithField("duration", time.Since(start)).Debug("Operation done")
	return res, nil
}

func validateArgs(op Operation, args json.RawMessage) error {
	if op.schema == nil {
		return nil
	}
	result, err := op.schema.Validate(jsonschema.NewBytesLoader(args))
	if err != nil {
		// not a JSON document
		return fault.Validation(op.Name, "invalid arguments: %v", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fault.Validation(op.Name, "%s", strings.Join(msgs, "; "))
}

// bind decodes the arguments of an operation into its input type.
func bind[In any, Out any](fn func(context.Context, In) (Out, error)) Handler {
	return func(ctx context.Context, args json.RawMessage) (interface{}, error) {
		var in In
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fault.Validation("", "invalid arguments: %v", err)
		}
		out, err := fn(ctx, in)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}
