// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// Package bcast fans out the result of successful mutations to live subscribers.
//
// Delivery is limited to subscribers connected at publish time: there is no
// queue and no replay. Publishing never blocks the caller and never fails.
package bcast

import (
	"sync"
)

// Subscription topics, one per event mutation.
const (
	TopicAddedEvent   = "addedEvent"
	TopicUpdatedEvent = "updatedEvent"
	TopicDeletedEvent = "deletedEvent"
)

// Topics lists every topic a client may subscribe to.
var Topics = []string{TopicAddedEvent, TopicUpdatedEvent, TopicDeletedEvent}

// ValidTopic reports whether topic is a known subscription topic.
func ValidTopic(topic string) bool {
	for _, t := range Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// Broadcaster publishes a payload to the subscribers of a topic.
type Broadcaster interface {
	Publish(topic string, payload interface{})
}

// Envelope is the frame delivered to subscribers.
type Envelope struct {
	Topic string      `json:"topic"`
	Data  interface{} `json:"data"`
}

// Multi publishes to several broadcasters in turn.
type Multi []Broadcaster

func (m Multi) Publish(topic string, payload interface{}) {
	for _, b := range m {
		b.Publish(topic, payload)
	}
}

// Recorder is an in-memory broadcaster keeping every publication.
type Recorder struct {
	mu   sync.Mutex
	msgs []Envelope
}

func (r *Recorder) Publish(topic string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, Envelope{Topic: topic, Data: payload})
}

// Published returns a copy of the recorded publications, oldest first.
func (r *Recorder) Published() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]Envelope, len(r.msgs))
	copy(res, r.msgs)
	return res
}

// Count returns the number of publications on topic.
func (r *Recorder) Count(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs {
		if m.Topic == topic {
			n++
		}
	}
	return n
}

// Reset forgets every recorded publication.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = r.msgs[:0]
}
