package messaging

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func msg(id, from, to string, at time.Time) Message {
	return Message{ID: id, FromID: from, ToID: to, Content: "body " + id, CreatedAt: at, UpdatedAt: at}
}

func TestConversationStore_BuildDerivesPartners(t *testing.T) {
	dir := newFakeBackend(alice, bob, carol)
	s := NewConversationStore(alice.ID, dir)

	t1, t2, t3 := t0, t0.Add(time.Minute), t0.Add(2*time.Minute)
	all := []Message{
		msg("m1", "A", "B", t1),
		msg("m2", "B", "A", t2),
		msg("m3", "A", "C", t3),
	}
	if err := s.Build(context.Background(), all); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	convs := s.Conversations()
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convs))
	}
	// C holds the newest message so it sorts first
	if convs[0].Partner.ID != "C" || convs[1].Partner.ID != "B" {
		t.Fatalf("unexpected order: %s, %s", convs[0].Partner.ID, convs[1].Partner.ID)
	}
	if convs[1].Last.ID != "m2" {
		t.Fatalf("expected B preview m2, got %s", convs[1].Last.ID)
	}
}

func TestConversationStore_BuildTieKeepsFirstSeen(t *testing.T) {
	s := NewConversationStore(alice.ID, newFakeBackend(alice, bob))

	all := []Message{msg("first", "B", "A", t0), msg("second", "A", "B", t0)}
	if err := s.Build(context.Background(), all); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := s.Conversations()[0].Last.ID; got != "first" {
		t.Fatalf("expected first-seen message to win the tie, got %s", got)
	}
}

func TestConversationStore_BuildDropsUnknownProfiles(t *testing.T) {
	s := NewConversationStore(alice.ID, newFakeBackend(alice, bob))

	all := []Message{msg("m1", "A", "B", t0), msg("m2", "ghost", "A", t0.Add(time.Second))}
	if err := s.Build(context.Background(), all); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if s.Len() != 1 || s.Conversations()[0].Partner.ID != "B" {
		t.Fatalf("expected only B, got %+v", s.Conversations())
	}
}

func TestConversationStore_BuildFailureKeepsState(t *testing.T) {
	dir := newFakeBackend(alice, bob, carol)
	s := NewConversationStore(alice.ID, dir)
	if err := s.Build(context.Background(), []Message{msg("m1", "A", "B", t0)}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	dir.failOn("Profiles", errors.New("boom"))
	err := s.Build(context.Background(), []Message{msg("m2", "A", "C", t0)})
	if !IsRemote(err) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if s.Len() != 1 || s.Conversations()[0].Partner.ID != "B" {
		t.Fatalf("failed Build should keep previous contents")
	}
}

func TestConversationStore_ApplyInsertIdempotent(t *testing.T) {
	ctx := context.Background()
	once := NewConversationStore(alice.ID, newFakeBackend(alice, bob, carol))
	twice := NewConversationStore(alice.ID, newFakeBackend(alice, bob, carol))

	seed := []Message{msg("m1", "A", "B", t0)}
	_ = once.Build(ctx, seed)
	_ = twice.Build(ctx, seed)

	in := []Message{msg("m2", "B", "A", t0.Add(time.Minute)), msg("m3", "C", "A", t0.Add(2*time.Minute))}
	for _, m := range in {
		if _, err := once.ApplyInsert(ctx, m); err != nil {
			t.Fatalf("ApplyInsert: %v", err)
		}
		for i := 0; i < 2; i++ {
			if _, err := twice.ApplyInsert(ctx, m); err != nil {
				t.Fatalf("ApplyInsert: %v", err)
			}
		}
	}

	if !reflect.DeepEqual(once.Conversations(), twice.Conversations()) {
		t.Fatalf("duplicate inserts changed state:\n%+v\n%+v", once.Conversations(), twice.Conversations())
	}
	if changed, _ := twice.ApplyInsert(ctx, in[0]); changed {
		t.Fatalf("re-applying an insert should report no change")
	}
}

func TestConversationStore_ApplyInsertOlderKeepsPreview(t *testing.T) {
	ctx := context.Background()
	s := NewConversationStore(alice.ID, newFakeBackend(alice, bob))
	_ = s.Build(ctx, []Message{msg("new", "A", "B", t0.Add(time.Hour))})

	if changed, _ := s.ApplyInsert(ctx, msg("old", "B", "A", t0)); changed {
		t.Fatalf("older message should not replace preview")
	}
	if s.Conversations()[0].Last.ID != "new" {
		t.Fatalf("preview changed")
	}
}

func TestConversationStore_ApplyUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewConversationStore(alice.ID, newFakeBackend(alice, bob))
	m := msg("m1", "A", "B", t0)
	_ = s.Build(ctx, []Message{m})

	edited := m
	edited.Content = "edited"
	edited.UpdatedAt = t0.Add(time.Minute)
	if !s.ApplyUpdate(edited) {
		t.Fatalf("expected preview update")
	}
	if got := s.Conversations()[0].Last; got.Content != "edited" || !got.CreatedAt.Equal(t0) {
		t.Fatalf("unexpected preview %+v", got)
	}

	// a late, older update loses
	stale := m
	stale.Content = "stale"
	if s.ApplyUpdate(stale) {
		t.Fatalf("older update should be ignored")
	}
}

func TestConversationStore_DeleteMarksStaleThenRepair(t *testing.T) {
	ctx := context.Background()
	s := NewConversationStore(alice.ID, newFakeBackend(alice, bob))
	older, newer := msg("m1", "B", "A", t0), msg("m2", "A", "B", t0.Add(time.Minute))
	_ = s.Build(ctx, []Message{newer, older})

	if _, stale := s.ApplyDelete("m1"); stale {
		t.Fatalf("deleting a non-preview message should not mark stale")
	}
	partner, stale := s.ApplyDelete("m2")
	if !stale || partner != "B" {
		t.Fatalf("expected B stale, got %q %v", partner, stale)
	}
	if !s.Conversations()[0].Stale {
		t.Fatalf("conversation should be marked stale")
	}

	s.Repair("B", []Message{older})
	c := s.Conversations()[0]
	if c.Stale || c.Last.ID != "m1" {
		t.Fatalf("unexpected repaired conversation %+v", c)
	}

	s.Repair("B", nil)
	if s.Len() != 0 {
		t.Fatalf("empty history should drop the conversation")
	}
}

func TestConversation_Preview(t *testing.T) {
	c := Conversation{Last: Message{FromID: "A", Content: "hi"}}
	if got := c.Preview("A"); got != "You: hi" {
		t.Fatalf("got %q", got)
	}
	if got := c.Preview("B"); got != "hi" {
		t.Fatalf("got %q", got)
	}
	c.Last.Content = ""
	if got := c.Preview("B"); got != "Attachment" {
		t.Fatalf("got %q", got)
	}
}

func TestProfile_DisplayName(t *testing.T) {
	if alice.DisplayName() != "Alice" {
		t.Fatalf("expected full name")
	}
	if carol.DisplayName() != "carol@example.com" {
		t.Fatalf("expected email fallback")
	}
}

func TestConversationStore_Unresolved(t *testing.T) {
	dir := newFakeBackend(alice, bob, carol)
	s := NewConversationStore(alice.ID, dir)
	ctx := context.Background()
	if err := s.Build(ctx, []Message{msg("m1", "B", "A", t0)}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	if id := s.Unresolved(msg("m2", "B", "A", t0.Add(time.Second))); id != "" {
		t.Fatalf("listed partner needs no lookup, got %q", id)
	}
	if id := s.Unresolved(msg("m3", "B", "C", t0)); id != "" {
		t.Fatalf("message not involving self needs no lookup, got %q", id)
	}
	if id := s.Unresolved(msg("m4", "C", "A", t0)); id != "C" {
		t.Fatalf("expected carol to need a lookup, got %q", id)
	}

	s.Remember(carol)
	if id := s.Unresolved(msg("m4", "C", "A", t0)); id != "" {
		t.Fatalf("remembered partner needs no lookup, got %q", id)
	}
	lookups := dir.called("Profiles")
	if changed, err := s.ApplyInsert(ctx, msg("m4", "C", "A", t0)); err != nil || !changed {
		t.Fatalf("ApplyInsert: %v %v", changed, err)
	}
	if dir.called("Profiles") != lookups {
		t.Fatalf("resolved insert should not query the directory")
	}
}
