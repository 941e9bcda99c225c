// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// Package policy decides which caller roles may invoke which operations.
//
// Operations are named by their path, e.g. "Mutation.addEvent" or
// "Subscription.addedEvent". The table is fixed at deployment time and may
// be replaced as a whole when the policy file changes.
package policy

import (
	"sort"
	"strings"
	"sync"

	"github.com/drem/event-catalog/pkg/fault"
)

// Wildcard grants every operation.
const Wildcard = "*"

// EventOperations are the event catalog operation paths.
var EventOperations = []string{
	"Query.getAllEvents",
	"Query.listEvents",
	"Query.getEvent",
	"Mutation.addEvent",
	"Mutation.updateEvent",
	"Mutation.deleteEvent",
	"Subscription.addedEvent",
	"Subscription.updatedEvent",
	"Subscription.deletedEvent",
}

// DeviceOperations are the device enrollment operation paths.
var DeviceOperations = []string{
	"Mutation.deviceActivation",
}

// DefaultRoles is the table used when the deployment provides none.
func DefaultRoles() map[string][]string {
	operator := append(append([]string{}, EventOperations...), DeviceOperations...)
	return map[string][]string{
		"admin":    {Wildcard},
		"operator": operator,
		"commentator": {
			"Query.getAllEvents",
			"Query.listEvents",
			"Query.getEvent",
			"Subscription.addedEvent",
			"Subscription.updatedEvent",
			"Subscription.deletedEvent",
		},
	}
}

// Enforcer authorizes operations against a role table.
type Enforcer struct {
	mu    sync.RWMutex
	roles map[string]map[string]bool
}

// New creates an enforcer from a role to operation paths table.
func New(table map[string][]string) *Enforcer {
	e := &Enforcer{}
	e.Replace(table)
	return e
}

// Replace swaps the whole table.
func (e *Enforcer) Replace(table map[string][]string) {
	roles := make(map[string]map[string]bool, len(table))
	for role, paths := range table {
		set := make(map[string]bool, len(paths))
		for _, p := range paths {
			set[strings.TrimSpace(p)] = true
		}
		roles[role] = set
	}
	e.mu.Lock()
	e.roles = roles
	e.mu.Unlock()
}

// Authorize returns nil if one of roles is granted path, an authorization error otherwise.
func (e *Enforcer) Authorize(roles []string, path string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, r := range roles {
		grants := e.roles[r]
		if grants[path] || grants[Wildcard] {
			return nil
		}
	}
	if len(roles) == 0 {
		return fault.Unauthorized(path, "caller has no role")
	}
	return fault.Unauthorized(path, "roles %v are not allowed to invoke %s", roles, path)
}

// Grants returns the sorted operation paths granted to role.
func (e *Enforcer) Grants(role string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	res := make([]string, 0, len(e.roles[role]))
	for p := range e.roles[role] {
		res = append(res, p)
	}
	sort.Strings(res)
	return res
}
