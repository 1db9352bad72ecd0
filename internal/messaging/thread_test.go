package messaging

import (
	"fmt"
	"math/rand"
	"testing"
	"time"
)

func assertSorted(t *testing.T, msgs []Message) {
	t.Helper()
	for i := 1; i < len(msgs); i++ {
		if before(msgs[i], msgs[i-1]) {
			t.Fatalf("thread out of order at %d: %s (%v) before %s (%v)",
				i, msgs[i-1].ID, msgs[i-1].CreatedAt, msgs[i].ID, msgs[i].CreatedAt)
		}
	}
}

func TestThread_OrderedUnderAnyInterleaving(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		th := NewThread(alice.ID, bob, nil)
		var known []Message

		for step := 0; step < 40; step++ {
			switch op := rng.Intn(3); {
			case op == 0 || len(known) == 0:
				from, to := "A", "B"
				if rng.Intn(2) == 0 {
					from, to = to, from
				}
				// created_at drawn at random so arrival order != commit order
				at := t0.Add(time.Duration(rng.Intn(20)) * time.Second)
				m := msg(fmt.Sprintf("r%d-%d", round, step), from, to, at)
				known = append(known, m)
				th.Upsert(m)
			case op == 1:
				m := known[rng.Intn(len(known))]
				m.Content = fmt.Sprintf("edit %d", step)
				m.UpdatedAt = m.UpdatedAt.Add(time.Duration(step) * time.Second)
				th.Upsert(m)
			default:
				th.Remove(known[rng.Intn(len(known))].ID)
			}
			assertSorted(t, th.Messages())
		}
	}
}

func TestThread_UpsertIdempotent(t *testing.T) {
	th := NewThread(alice.ID, bob, nil)
	m := msg("m1", "A", "B", t0)

	if !th.Upsert(m) {
		t.Fatalf("first upsert should change the thread")
	}
	if th.Upsert(m) {
		t.Fatalf("duplicate upsert should be a no-op")
	}
	if n := len(th.Messages()); n != 1 {
		t.Fatalf("expected 1 message, got %d", n)
	}
}

func TestThread_IgnoresOtherConversations(t *testing.T) {
	th := NewThread(alice.ID, bob, nil)
	if th.Upsert(msg("m1", "A", "C", t0)) {
		t.Fatalf("message to C does not belong in the A-B thread")
	}
	if th.Upsert(msg("m2", "B", "B", t0)) {
		t.Fatalf("self-addressed message does not belong")
	}
}

func TestNewThread_SortsHistory(t *testing.T) {
	history := []Message{
		msg("m3", "A", "B", t0.Add(3*time.Second)),
		msg("m1", "B", "A", t0.Add(time.Second)),
		msg("m2", "A", "B", t0.Add(2*time.Second)),
	}
	th := NewThread(alice.ID, bob, history)
	got := th.Messages()
	if got[0].ID != "m1" || got[1].ID != "m2" || got[2].ID != "m3" {
		t.Fatalf("unexpected order %v %v %v", got[0].ID, got[1].ID, got[2].ID)
	}
	if _, ok := th.Get("m2"); !ok {
		t.Fatalf("Get(m2) not found")
	}
}

func TestThread_RemovedStaysRemoved(t *testing.T) {
	th := NewThread(alice.ID, bob, nil)
	m := msg("m1", "A", "B", t0)
	th.Upsert(m)
	th.Remove(m.ID)

	// a history snapshot taken before the delete still carries the row
	if th.Upsert(m) {
		t.Fatalf("removed message came back")
	}
	// removal can also arrive before the row itself
	th.Remove("m2")
	if th.Upsert(msg("m2", "B", "A", t0.Add(time.Second))) {
		t.Fatalf("message removed ahead of its insert was added")
	}
	if n := len(th.Messages()); n != 0 {
		t.Fatalf("expected an empty thread, got %d", n)
	}
}
