package policy

import (
	"sync"
	"testing"

	"github.com/drem/event-catalog/pkg/fault"
)

func TestAuthorize(t *testing.T) {

	e := New(DefaultRoles())

	cases := []struct {
		roles []string
		path  string
		allow bool
	}{
		{[]string{"admin"}, "Mutation.addEvent", true},
		{[]string{"admin"}, "Mutation.anythingElse", true},
		{[]string{"operator"}, "Mutation.addEvent", true},
		{[]string{"operator"}, "Mutation.deviceActivation", true},
		{[]string{"operator"}, "Subscription.updatedEvent", true},
		{[]string{"commentator"}, "Query.getAllEvents", true},
		{[]string{"commentator"}, "Mutation.addEvent", false},
		{[]string{"commentator", "operator"}, "Mutation.deleteEvent", true},
		{[]string{"racer"}, "Query.getAllEvents", false},
		{nil, "Query.getAllEvents", false},
	}
	for _, c := range cases {
		err := e.Authorize(c.roles, c.path)
		if c.allow && err != nil {
			t.Errorf("%v on %s: expected allowed, got %v", c.roles, c.path, err)
		}
		if !c.allow && !fault.Is(err, fault.KindAuthorization) {
			t.Errorf("%v on %s: expected an authorization error, got %v", c.roles, c.path, err)
		}
	}
}

func TestReplace(t *testing.T) {

	e := New(map[string][]string{"viewer": {"Query.getAllEvents"}})
	if err := e.Authorize([]string{"viewer"}, "Query.getEvent"); err == nil {
		t.Fatal("Expected getEvent to be denied")
	}

	e.Replace(map[string][]string{"viewer": {"Query.getAllEvents", " Query.getEvent "}})
	if err := e.Authorize([]string{"viewer"}, "Query.getEvent"); err != nil {
		t.Errorf("Expected getEvent to be allowed after replace: %v", err)
	}
	if g := e.Grants("viewer"); len(g) != 2 || g[0] != "Query.getAllEvents" {
		t.Errorf("Unexpected grants: %v", g)
	}
}

func TestConcurrentReplace(t *testing.T) {

	e := New(DefaultRoles())
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			e.Replace(DefaultRoles())
		}()
		go func() {
			defer wg.Done()
			if err := e.Authorize([]string{"operator"}, "Mutation.addEvent"); err != nil {
				t.Errorf("Unexpected denial: %v", err)
			}
		}()
	}
	wg.Wait()
}
