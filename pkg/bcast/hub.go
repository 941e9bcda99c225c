// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package bcast

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Subscriber is a connected client listening to one topic.
type Subscriber struct {
	id    int64
	topic string
	send  chan Envelope
}

func (s *Subscriber) ID() int64     { return s.id }
func (s *Subscriber) Topic() string { return s.topic }

// C returns the delivery channel. It is closed when the subscriber is removed from the hub.
func (s *Subscriber) C() <-chan Envelope { return s.send }

type shard struct {
	sync.RWMutex
	subs map[int64]*Subscriber
}

// Hub is the process-wide registry of connected subscribers.
// Subscribers are spread over shards by id, so that connections and
// disconnections only lock a fraction of the registry.
type Hub struct {
	shards []*shard
	buffer int
	lastID int64

	// websocket keepalive, pingPeriod must be shorter than pongWait
	pongWait   time.Duration
	pingPeriod time.Duration
}

// NewHub creates a hub with the given number of shards and per-subscriber buffer.
func NewHub(shards, buffer int) *Hub {
	if shards < 1 {
		shards = 1
	}
	if buffer < 1 {
		buffer = 1
	}
	h := &Hub{
		shards:     make([]*shard, shards),
		buffer:     buffer,
		pongWait:   pongWait,
		pingPeriod: pongWait * 9 / 10,
	}
	for i := range h.shards {
		h.shards[i] = &shard{subs: make(map[int64]*Subscriber)}
	}
	return h
}

func (h *Hub) shard(id int64) *shard {
	return h.shards[id%int64(len(h.shards))]
}

// Subscribe registers a new subscriber to topic.
func (h *Hub) Subscribe(topic string) (*Subscriber, error) {
	if !ValidTopic(topic) {
		return nil, fmt.Errorf("unknown topic %q", topic)
	}
	s := &Subscriber{
		id:    atomic.AddInt64(&h.lastID, 1),
		topic: topic,
		send:  make(chan Envelope, h.buffer),
	}
	sh := h.shard(s.id)
	sh.Lock()
	sh.subs[s.id] = s
	sh.Unlock()
	log.Debugf("Subscriber %d joined %s", s.id, topic)
	return s, nil
}

// Unsubscribe removes s from the hub and closes its channel. It may be called more than once.
func (h *Hub) Unsubscribe(s *Subscriber) {
	sh := h.shard(s.id)
	sh.Lock()
	defer sh.Unlock()
	if _, ok := sh.subs[s.id]; !ok {
		return
	}
	delete(sh.subs, s.id)
	close(s.send)
	log.Debugf("Subscriber %d left %s", s.id, s.topic)
}

// Publish delivers payload to every subscriber of topic without blocking.
// A subscriber whose buffer is full is evicted: its channel is closed and
// its transport disconnects, so every subscriber still connected has
// received every message published since it joined.
func (h *Hub) Publish(topic string, payload interface{}) {
	env := Envelope{Topic: topic, Data: payload}
	var slow []*Subscriber
	for _, sh := range h.shards {
		sh.RLock()
		for _, s := range sh.subs {
			if s.topic != topic {
				continue
			}
			select {
			case s.send <- env:
			default:
				slow = append(slow, s)
			}
		}
		sh.RUnlock()
	}
	for _, s := range slow {
		log.Warnf("Subscriber %d on %s is too slow, disconnecting", s.id, topic)
		h.Unsubscribe(s)
	}
}

// Count returns the number of subscribers connected to topic.
func (h *Hub) Count(topic string) int {
	n := 0
	for _, sh := range h.shards {
		sh.RLock()
		for _, s := range sh.subs {
			if s.topic == topic {
				n++
			}
		}
		sh.RUnlock()
	}
	return n
}
