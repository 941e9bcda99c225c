// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package bcast

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
)

var upgrader = websocket.Upgrader{}

// ServeWS upgrades the request to a websocket and streams the envelopes of topic
// until the client disconnects or is evicted. Authorization is the caller's job.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, topic string) {
	if !ValidTopic(topic) {
		http.Error(w, "unknown topic", http.StatusNotFound)
		return
	}
	wc, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied to the client
		log.Warnf("Websocket upgrade failed: %v", err)
		return
	}
	sub, err := h.Subscribe(topic)
	if err != nil {
		wc.Close()
		return
	}

	t := time.NewTicker(h.pingPeriod)
	defer t.Stop()
	go write(wc, sub, t)

	// a client that stops answering pings is dropped after pongWait
	wc.SetReadDeadline(time.Now().Add(h.pongWait))
	wc.SetPongHandler(func(string) error {
		return wc.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	// incoming messages are ignored, reading processes pongs and close frames
	for {
		if _, _, err := wc.NextReader(); err != nil {
			break
		}
	}
	h.Unsubscribe(sub)
}

func write(wc *websocket.Conn, sub *Subscriber, t *time.Ticker) {
	defer wc.Close()
Outer:
	for {
		select {
		case env, ok := <-sub.C():
			if !ok {
				break Outer
			}
			wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := wc.WriteJSON(env); err != nil {
				log.Debugf("Websocket write to subscriber %d failed: %v", sub.ID(), err)
				return
			}
		case <-t.C:
			wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := wc.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
	wc.SetWriteDeadline(time.Now().Add(writeTimeout))
	wc.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
