package messaging

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

type searchResult struct {
	profiles []Profile
	err      error
}

func newTestSearch(f *fakeBackend, delay time.Duration) (*Search, chan searchResult) {
	out := make(chan searchResult, 16)
	s := NewSearch(context.Background(), f, alice.ID, delay, func(p []Profile, err error) {
		out <- searchResult{p, err}
	})
	return s, out
}

func next(t *testing.T, ch chan searchResult) searchResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for search results")
	}
	return searchResult{}
}

func TestSearch_DebouncesBurst(t *testing.T) {
	f := newFakeBackend(alice, bob, Profile{ID: "L", FullName: "Alice Liddell", Email: "ali@example.com"})
	s, results := newTestSearch(f, 50*time.Millisecond)
	defer s.Stop()

	s.Type("a")
	s.Type("al")
	s.Type("ali")

	r := next(t, results)
	if r.err != nil {
		t.Fatalf("search failed: %v", r.err)
	}
	// let any stray timers fire
	time.Sleep(100 * time.Millisecond)

	if got := f.searched(); !reflect.DeepEqual(got, []string{"ali"}) {
		t.Fatalf("expected exactly one query for \"ali\", got %q", got)
	}
	if len(r.profiles) != 1 || r.profiles[0].ID != "L" {
		t.Fatalf("unexpected results %+v", r.profiles)
	}
}

func TestSearch_ExcludesSelf(t *testing.T) {
	f := newFakeBackend(alice, bob)
	s, results := newTestSearch(f, time.Millisecond)
	defer s.Stop()

	s.Type("example.com")
	r := next(t, results)
	for _, p := range r.profiles {
		if p.ID == alice.ID {
			t.Fatalf("search returned the signed-in user")
		}
	}
	if len(r.profiles) != 1 {
		t.Fatalf("expected only bob, got %+v", r.profiles)
	}
}

func TestSearch_BlankQueryClearsWithoutLookup(t *testing.T) {
	f := newFakeBackend(alice, bob)
	s, results := newTestSearch(f, time.Millisecond)
	defer s.Stop()

	s.Type("bob")
	if r := next(t, results); len(r.profiles) != 1 {
		t.Fatalf("expected a result for bob")
	}

	s.Type("   ")
	if r := next(t, results); r.profiles != nil || r.err != nil {
		t.Fatalf("blank query should clear results, got %+v", r)
	}
	if len(s.Results()) != 0 {
		t.Fatalf("results not cleared")
	}
	if n := len(f.searched()); n != 1 {
		t.Fatalf("blank query must not hit the directory, got %d lookups", n)
	}
}

func TestSearch_DropsStaleResults(t *testing.T) {
	f := newFakeBackend(alice, bob, carol)
	entered := make(chan string, 4)
	release := make(chan struct{})
	f.searchGate = func(q string) {
		entered <- q
		if q == "bob" {
			<-release
		}
	}
	s, results := newTestSearch(f, time.Millisecond)
	defer s.Stop()

	s.Type("bob")
	if q := <-entered; q != "bob" {
		t.Fatalf("expected bob lookup first, got %q", q)
	}

	// newer query answers while the older one is still in flight
	s.Type("carol")
	<-entered
	r := next(t, results)
	if len(r.profiles) != 1 || r.profiles[0].ID != "C" {
		t.Fatalf("expected carol, got %+v", r.profiles)
	}

	close(release)
	time.Sleep(50 * time.Millisecond)

	got := s.Results()
	if len(got) != 1 || got[0].ID != "C" {
		t.Fatalf("stale bob results overwrote carol: %+v", got)
	}
	select {
	case r := <-results:
		t.Fatalf("stale lookup should not report, got %+v", r)
	default:
	}
}

func TestSearch_FailureReported(t *testing.T) {
	f := newFakeBackend(alice, bob)
	f.failOn("SearchProfiles", errors.New("timeout"))
	s, results := newTestSearch(f, time.Millisecond)
	defer s.Stop()

	s.Type("bob")
	if r := next(t, results); !IsRemote(r.err) {
		t.Fatalf("expected remote error, got %v", r.err)
	}
}
