package events

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/drem/event-catalog/pkg/bcast"
	"github.com/drem/event-catalog/pkg/fault"
	"github.com/drem/event-catalog/pkg/stor"
	log "github.com/sirupsen/logrus"
	"syreclabs.com/go/faker"
)

var St stor.Store

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func TestMain(m *testing.M) {

	// create / open an sqlite db in memory
	var err error
	St, err = stor.Init("sqlite3://file::memory:?cache=shared")
	if err != nil {
		log.Fatalf("Failed to init the store: %v", err)
	}

	code := m.Run()
	St.Close()
	os.Exit(code)
}

func newResolver() (*Resolver, *bcast.Recorder) {
	rec := &bcast.Recorder{}
	return New(St.Event(), rec, WithClock(func() time.Time { return fixedNow })), rec
}

func intPtr(i int) *int { return &i }

func contains(events []stor.Event, id string) *stor.Event {
	for i := range events {
		if events[i].EventID == id {
			return &events[i]
		}
	}
	return nil
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()
	r, rec := newResolver()

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		e, err := r.AddEvent(ctx, AddEventInput{
			EventName:     faker.Company().CatchPhrase(),
			RaceTimeInSec: intPtr(faker.Number().NumberInt(3)),
		})
		if err != nil {
			t.Fatalf("Failed to add an event: %v", err)
		}
		if e.EventID == "" || seen[e.EventID] {
			t.Fatalf("Expected a fresh event id, got %q", e.EventID)
		}
		seen[e.EventID] = true
		if !e.CreatedAt.Equal(fixedNow) {
			t.Errorf("Expected createdAt %v, got %v", fixedNow, e.CreatedAt)
		}
		if e.NumberOfResets != 0 {
			t.Errorf("Expected numberOfResets to default to 0, got %d", e.NumberOfResets)
		}

		pub := rec.Published()
		if len(pub) != i+1 {
			t.Fatalf("Expected %d broadcasts, got %d", i+1, len(pub))
		}
		last := pub[len(pub)-1]
		if last.Topic != bcast.TopicAddedEvent || !reflect.DeepEqual(last.Data, *e) {
			t.Errorf("Unexpected broadcast: %+v", last)
		}
	}
}

func TestAddEventValidation(t *testing.T) {
	ctx := context.Background()
	r, rec := newResolver()

	before, err := St.Event().Count(ctx)
	if err != nil {
		t.Fatalf("Failed to count events: %v", err)
	}

	cases := []AddEventInput{
		{},
		{EventName: "   "},
		{EventName: "Negative", RaceTimeInSec: intPtr(-1)},
		{EventName: "Negative", NumberOfResets: intPtr(-3)},
	}
	for _, in := range cases {
		_, err := r.AddEvent(ctx, in)
		if !fault.Is(err, fault.KindValidation) {
			t.Errorf("%+v: expected a validation error, got %v", in, err)
		}
	}
	if rec.Count(bcast.TopicAddedEvent) != 0 {
		t.Error("A failed addEvent must not broadcast")
	}
	after, _ := St.Event().Count(ctx)
	if after != before {
		t.Errorf("A failed addEvent must not create a record")
	}
}

func TestEventNameNormalization(t *testing.T) {
	r, _ := newResolver()

	// "e" followed by a combining acute accent
	e, err := r.AddEvent(context.Background(), AddEventInput{EventName: "  Cafe\u0301 Cup  "})
	if err != nil {
		t.Fatalf("Failed to add an event: %v", err)
	}
	if e.EventName != "Caf\u00e9 Cup" {
		t.Errorf("Expected a trimmed NFC name, got %q", e.EventName)
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	r, rec := newResolver()

	added, err := r.AddEvent(ctx, AddEventInput{EventName: "Spring Sprint", RaceTimeInSec: intPtr(120), NumberOfResets: intPtr(2)})
	if err != nil {
		t.Fatalf("Failed to add an event: %v", err)
	}
	all, err := r.GetAllEvents(ctx)
	if err != nil {
		t.Fatalf("Failed to get all events: %v", err)
	}
	got := contains(all, added.EventID)
	if got == nil {
		t.Fatal("Added event not listed")
	}
	if got.EventName != "Spring Sprint" || got.RaceTimeInSec != 120 || got.NumberOfResets != 2 {
		t.Errorf("Unexpected stored event: %+v", got)
	}

	// update, with a clock moved forward to check createdAt is preserved
	r.now = func() time.Time { return fixedNow.Add(time.Hour) }
	updated, err := r.UpdateEvent(ctx, UpdateEventInput{
		EventID:        added.EventID,
		EventName:      "Spring Sprint Final",
		RaceTimeInSec:  intPtr(150),
		NumberOfResets: intPtr(3),
	})
	if err != nil {
		t.Fatalf("Failed to update the event: %v", err)
	}
	all, err = r.GetAllEvents(ctx)
	if err != nil {
		t.Fatalf("Failed to get all events: %v", err)
	}
	got = contains(all, added.EventID)
	if got == nil {
		t.Fatal("Updated event not listed")
	}
	if got.EventName != "Spring Sprint Final" || got.RaceTimeInSec != 150 || got.NumberOfResets != 3 {
		t.Errorf("Event not updated: %+v", got)
	}
	if !got.CreatedAt.Equal(added.CreatedAt) || !updated.CreatedAt.Equal(added.CreatedAt) {
		t.Errorf("createdAt changed on update: %v, %v", got.CreatedAt, updated.CreatedAt)
	}
	if rec.Count(bcast.TopicUpdatedEvent) != 1 {
		t.Errorf("Expected one updatedEvent broadcast, got %d", rec.Count(bcast.TopicUpdatedEvent))
	}

	// delete
	deleted, err := r.DeleteEvent(ctx, DeleteEventInput{EventID: added.EventID})
	if err != nil {
		t.Fatalf("Failed to delete the event: %v", err)
	}
	if deleted.EventName != "Spring Sprint Final" {
		t.Errorf("Expected the last known state, got %+v", deleted)
	}
	all, err = r.GetAllEvents(ctx)
	if err != nil {
		t.Fatalf("Failed to get all events: %v", err)
	}
	if contains(all, added.EventID) != nil {
		t.Error("Deleted event still listed")
	}
	pub := rec.Published()
	last := pub[len(pub)-1]
	if last.Topic != bcast.TopicDeletedEvent || !reflect.DeepEqual(last.Data, *deleted) {
		t.Errorf("Unexpected delete broadcast: %+v", last)
	}
	if len(pub) != 3 {
		t.Errorf("Expected 3 broadcasts, got %d", len(pub))
	}
}

func TestUpdateMissingEvent(t *testing.T) {
	ctx := context.Background()
	r, rec := newResolver()

	before, _ := St.Event().Count(ctx)
	_, err := r.UpdateEvent(ctx, UpdateEventInput{
		EventID:        "no-such-event",
		EventName:      "Ghost",
		RaceTimeInSec:  intPtr(10),
		NumberOfResets: intPtr(0),
	})
	if !fault.Is(err, fault.KindNotFound) {
		t.Fatalf("Expected a not found error, got %v", err)
	}
	after, _ := St.Event().Count(ctx)
	if after != before {
		t.Error("A failed update must not mutate the store")
	}
	if len(rec.Published()) != 0 {
		t.Error("A failed update must not broadcast")
	}
}

func TestUpdateRequiresEveryField(t *testing.T) {
	r, _ := newResolver()

	// numberOfResets missing
	_, err := r.UpdateEvent(context.Background(), UpdateEventInput{EventID: "x", EventName: "x", RaceTimeInSec: intPtr(0)})
	if !fault.Is(err, fault.KindValidation) {
		t.Errorf("Expected a validation error, got %v", err)
	}
	// zero is a value
	_, err = r.UpdateEvent(context.Background(), UpdateEventInput{EventID: "x", EventName: "x", RaceTimeInSec: intPtr(0), NumberOfResets: intPtr(0)})
	if !fault.Is(err, fault.KindNotFound) {
		t.Errorf("Expected a not found error, got %v", err)
	}
}

func TestDeleteMissingEvent(t *testing.T) {
	r, rec := newResolver()

	_, err := r.DeleteEvent(context.Background(), DeleteEventInput{EventID: "no-such-event"})
	if !fault.Is(err, fault.KindNotFound) {
		t.Errorf("Expected a not found error, got %v", err)
	}
	if _, err = r.DeleteEvent(context.Background(), DeleteEventInput{}); !fault.Is(err, fault.KindValidation) {
		t.Errorf("Expected a validation error, got %v", err)
	}
	if len(rec.Published()) != 0 {
		t.Error("A failed delete must not broadcast")
	}
}

func TestGetEvent(t *testing.T) {
	ctx := context.Background()
	r, _ := newResolver()

	added, err := r.AddEvent(ctx, AddEventInput{EventName: faker.Company().CatchPhrase(), FleetID: "fleet-1"})
	if err != nil {
		t.Fatalf("Failed to add an event: %v", err)
	}
	got, err := r.GetEvent(ctx, GetEventInput{EventID: added.EventID})
	if err != nil {
		t.Fatalf("Failed to get the event: %v", err)
	}
	if got.FleetID != "fleet-1" || got.EventName != added.EventName {
		t.Errorf("Unexpected event: %+v", got)
	}
	if _, err = r.GetEvent(ctx, GetEventInput{EventID: "no-such-event"}); !fault.Is(err, fault.KindNotFound) {
		t.Errorf("Expected a not found error, got %v", err)
	}
}

func TestListEvents(t *testing.T) {
	ctx := context.Background()
	r, _ := newResolver()
	r.maxPerPage = 2

	for i := 0; i < 3; i++ {
		if _, err := r.AddEvent(ctx, AddEventInput{EventName: faker.Lorem().Word()}); err != nil {
			t.Fatalf("Failed to add an event: %v", err)
		}
	}
	total, _ := St.Event().Count(ctx)

	page, err := r.ListEvents(ctx, ListEventsInput{Page: 1, PerPage: 50})
	if err != nil {
		t.Fatalf("Failed to list events: %v", err)
	}
	if page.PerPage != 2 || len(page.Events) != 2 || page.Total != total {
		t.Errorf("Unexpected page: perPage %d, %d events, total %d", page.PerPage, len(page.Events), page.Total)
	}
	if _, err = r.ListEvents(ctx, ListEventsInput{Page: 0, PerPage: 10}); !fault.Is(err, fault.KindValidation) {
		t.Errorf("Expected a validation error, got %v", err)
	}
}

// brokenRepo fails every call, as an unreachable database would.
type brokenRepo struct{}

var errDown = errors.New("connection refused")

func (brokenRepo) Put(context.Context, *stor.Event) error                { return errDown }
func (brokenRepo) Update(context.Context, *stor.Event) error             { return errDown }
func (brokenRepo) Get(context.Context, string) (*stor.Event, error)      { return nil, errDown }
func (brokenRepo) Delete(context.Context, string) (*stor.Event, error)   { return nil, errDown }
func (brokenRepo) Scan(context.Context) ([]stor.Event, error)            { return nil, errDown }
func (brokenRepo) List(context.Context, int, int) ([]stor.Event, error) { return nil, errDown }
func (brokenRepo) Count(context.Context) (int64, error)                  { return 0, errDown }

func TestStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	rec := &bcast.Recorder{}
	r := New(brokenRepo{}, rec)

	_, err := r.GetAllEvents(ctx)
	checkUnavailable(t, err)
	_, err = r.AddEvent(ctx, AddEventInput{EventName: "Down"})
	checkUnavailable(t, err)
	_, err = r.UpdateEvent(ctx, UpdateEventInput{EventID: "x", EventName: "x", RaceTimeInSec: intPtr(1), NumberOfResets: intPtr(1)})
	checkUnavailable(t, err)
	_, err = r.DeleteEvent(ctx, DeleteEventInput{EventID: "x"})
	checkUnavailable(t, err)

	if len(rec.Published()) != 0 {
		t.Error("Failed mutations must not broadcast")
	}
}

func checkUnavailable(t *testing.T, err error) {
	t.Helper()
	var fe *fault.Error
	if !errors.As(err, &fe) || fe.Kind != fault.KindUnavailable {
		t.Fatalf("Expected an unavailable error, got %v", err)
	}
	if !fe.Retryable() {
		t.Error("Expected a retryable error")
	}
	if !errors.Is(err, errDown) {
		t.Error("Expected the store error to be wrapped")
	}
}
