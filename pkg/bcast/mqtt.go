// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package bcast

import (
	"encoding/json"
	"errors"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const mqttTimeout = 5 * time.Second

// MQTTPublisher is the part of mqtt.Client used by the sink.
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink forwards broadcasts to an MQTT broker, for devices that cannot hold a websocket.
// Messages are sent at QoS 1 to <prefix>/<topic>.
type MQTTSink struct {
	client MQTTPublisher
	prefix string
}

// NewMQTTSink returns a sink publishing under prefix.
func NewMQTTSink(client MQTTPublisher, prefix string) *MQTTSink {
	return &MQTTSink{client: client, prefix: prefix}
}

// DialMQTT connects to an MQTT broker.
func DialMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		return nil, errors.New("mqtt connection timed out")
	}
	if err := token.Error(); err != nil {
		return nil, err
	}
	return client, nil
}

func (s *MQTTSink) Publish(topic string, payload interface{}) {
	data, err := json.Marshal(Envelope{Topic: topic, Data: payload})
	if err != nil {
		log.Errorf("MQTT: failed to marshal a %s payload: %v", topic, err)
		return
	}
	target := s.prefix + "/" + topic
	token := s.client.Publish(target, 1, false, data)
	go func() {
		if !token.WaitTimeout(mqttTimeout) {
			log.Warnf("MQTT: publish on %s timed out", target)
			return
		}
		if err := token.Error(); err != nil {
			log.Errorf("MQTT: publish on %s failed: %v", target, err)
		}
	}()
}
