// Copyright 2023 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// eventwatch subscribes to an event catalog topic and prints each broadcast event

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/drem/event-catalog/pkg/bcast"
)

func init() {
	// Output to stderr, stdout is for events
	log.SetOutput(os.Stderr)

	log.SetFormatter(&log.TextFormatter{
		DisableTimestamp: true,
	})
}

func usage() {
	fmt.Println("Usage: eventwatch [-server] [-topic] [-token] [-verbose]")
	flag.PrintDefaults()
}

func main() {

	// parse the command line
	server := flag.String("server", "http://localhost:8081", "base url of the event catalog server.")
	topic := flag.String("topic", bcast.TopicAddedEvent, "topic to watch: "+strings.Join(bcast.Topics, ", "))
	token := flag.String("token", os.Getenv("CATALOG_TOKEN"), "bearer token, obtained from /auth/login. Defaults to $CATALOG_TOKEN.")
	verbose := flag.Bool("verbose", false, "if set, display info messages; if not set, display only warnings and errors.")
	flag.Usage = usage
	flag.Parse()

	// the verbose flag acts on the info level
	if !*verbose {
		log.SetLevel(log.WarnLevel)
	}

	if !bcast.ValidTopic(*topic) {
		usage()
		os.Exit(1)
	}
	wsURL, err := subscriptionURL(*server, *topic)
	if err != nil {
		log.Fatal("Error: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := watch(ctx, wsURL, *token, os.Stdout); err != nil {
		log.Fatal("Error: ", err)
	}
}

// subscriptionURL returns the websocket url of a topic.
func subscriptionURL(server, topic string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/subscriptions/" + topic
	return u.String(), nil
}

// watch prints the data of each envelope received on wsURL as a line of JSON,
// until ctx is done or the server closes the connection.
func watch(ctx context.Context, wsURL, token string, out io.Writer) error {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	wc, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("subscription refused: %s", resp.Status)
		}
		return err
	}
	defer wc.Close()
	log.Infof("Watching %s", wsURL)

	// unblock the reader on interruption
	go func() {
		<-ctx.Done()
		wc.Close()
	}()

	enc := json.NewEncoder(out)
	for {
		var env struct {
			Topic string          `json:"topic"`
			Data  json.RawMessage `json:"data"`
		}
		if err := wc.ReadJSON(&env); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		log.Debugf("Received on %s", env.Topic)
		if err := enc.Encode(env.Data); err != nil {
			return err
		}
	}
}
