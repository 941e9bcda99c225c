package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/drem/event-catalog/pkg/bcast"
)

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSubscriptionURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8081":       "ws://localhost:8081/subscriptions/addedEvent",
		"https://catalog.example.com/": "wss://catalog.example.com/subscriptions/addedEvent",
	}
	for in, expected := range cases {
		got, err := subscriptionURL(in, bcast.TopicAddedEvent)
		if err != nil || got != expected {
			t.Errorf("%s: expected %s, got %s (%v)", in, expected, got, err)
		}
	}
	if _, err := subscriptionURL("ftp://localhost", bcast.TopicAddedEvent); err == nil {
		t.Error("Expected an error on an unsupported scheme")
	}
}

func TestWatch(t *testing.T) {
	hub := bcast.NewHub(1, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		hub.ServeWS(w, r, bcast.TopicUpdatedEvent)
	}))
	defer srv.Close()

	wsURL, _ := subscriptionURL(srv.URL, bcast.TopicUpdatedEvent)

	// refused without token
	if err := watch(context.Background(), wsURL, "", &syncBuffer{}); err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("Expected a refused subscription, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- watch(ctx, wsURL, "secret", out) }()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Count(bcast.TopicUpdatedEvent) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Subscriber not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	hub.Publish(bcast.TopicUpdatedEvent, map[string]string{"eventId": "e-1"})

	deadline = time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), `"eventId":"e-1"`) {
		if time.Now().After(deadline) {
			t.Fatalf("Event not printed, got %q", out.String())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected a clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("watch did not stop on cancel")
	}
}
