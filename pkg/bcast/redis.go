// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package bcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	relayTimeout = 5 * time.Second
	relayBuffer  = 256
)

// relayMsg is the message exchanged between server instances.
type relayMsg struct {
	Origin string          `json:"origin"`
	Topic  string          `json:"topic"`
	Data   json.RawMessage `json:"data"`
}

// RedisRelay extends a local hub to every server instance sharing a redis channel.
// Publish queues a message for the channel; Run sends the queue in order
// and delivers messages from other instances to the local hub.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	local   Broadcaster
	out     chan []byte
}

// NewRedisRelay returns a relay between client's channel and the local broadcaster.
func NewRedisRelay(client *redis.Client, channel string, local Broadcaster) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		origin:  uuid.New().String(),
		local:   local,
		out:     make(chan []byte, relayBuffer),
	}
}

// DialRedis connects to a redis server and checks the connection.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// Publish queues the payload for the other instances, without blocking.
// The message is dropped if the queue is full.
func (r *RedisRelay) Publish(topic string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("Relay: failed to marshal a %s payload: %v", topic, err)
		return
	}
	msg, err := json.Marshal(relayMsg{Origin: r.origin, Topic: topic, Data: data})
	if err != nil {
		log.Errorf("Relay: failed to marshal a %s message: %v", topic, err)
		return
	}
	select {
	case r.out <- msg:
	default:
		log.Warnf("Relay: queue full, %s message dropped", topic)
	}
}

// send publishes the queued messages one at a time until ctx is done.
func (r *RedisRelay) send(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.out:
			pctx, cancel := context.WithTimeout(ctx, relayTimeout)
			if err := r.client.Publish(pctx, r.channel, msg).Err(); err != nil {
				log.Errorf("Relay: failed to publish on %s: %v", r.channel, err)
			}
			cancel()
		}
	}
}

// Run relays the messages of other instances until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	go r.send(ctx)

	ps := r.client.Subscribe(ctx, r.channel)
	defer ps.Close()

	// wait for the subscription to be confirmed
	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	log.Infof("Relaying broadcasts through redis channel %s", r.channel)

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(m.Payload)
		}
	}
}

// deliver publishes a relayed message locally, unless it originates from this instance.
func (r *RedisRelay) deliver(payload string) bool {
	var msg relayMsg
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		log.Warnf("Relay: invalid message: %v", err)
		return false
	}
	if msg.Origin == r.origin || !ValidTopic(msg.Topic) {
		return false
	}
	r.local.Publish(msg.Topic, msg.Data)
	return true
}
