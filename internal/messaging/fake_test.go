package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

var (
	alice = Profile{ID: "A", FullName: "Alice", Email: "alice@example.com"}
	bob   = Profile{ID: "B", FullName: "Bob", Email: "bob@example.com"}
	carol = Profile{ID: "C", FullName: "", Email: "carol@example.com"}
	t0    = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
)

// fakeBackend is an in-memory Backend signed in as self. Writes publish
// change events to self's subscriptions the way the server does.
type fakeBackend struct {
	mu       sync.Mutex
	self     Profile
	authErr  error
	profiles map[string]Profile
	msgs     []Message
	notes    []Notification
	seq      int
	clock    time.Time
	calls    map[string]int
	queries  []string
	fail     map[string]error
	subs     []*fakeSub

	// searchGate, if set, is called before a search answers.
	searchGate func(query string)
	// historyGate, if set, is called after History has read its snapshot
	// and before it returns.
	historyGate func(partnerID string)
	// profilesGate, if set, is called before Profiles answers.
	profilesGate func(ids []string)
}

func (f *fakeBackend) setHistoryGate(gate func(partnerID string)) {
	f.mu.Lock()
	f.historyGate = gate
	f.mu.Unlock()
}

func (f *fakeBackend) setProfilesGate(gate func(ids []string)) {
	f.mu.Lock()
	f.profilesGate = gate
	f.mu.Unlock()
}

func newFakeBackend(self Profile, others ...Profile) *fakeBackend {
	f := &fakeBackend{
		self:     self,
		profiles: map[string]Profile{self.ID: self},
		clock:    t0,
		calls:    make(map[string]int),
		fail:     make(map[string]error),
	}
	for _, p := range others {
		f.profiles[p.ID] = p
	}
	return f
}

func (f *fakeBackend) called(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) failOn(op string, err error) {
	f.mu.Lock()
	f.fail[op] = err
	f.mu.Unlock()
}

// enter records a call and returns the configured failure. Callers hold f.mu.
func (f *fakeBackend) enter(op string) error {
	f.calls[op]++
	return f.fail[op]
}

func (f *fakeBackend) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

// seed stores a message without publishing it.
func (f *fakeBackend) seed(from, to, content string, at time.Time) Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	m := Message{ID: fmt.Sprintf("m%d", f.seq), FromID: from, ToID: to, Content: content, CreatedAt: at, UpdatedAt: at}
	f.msgs = append(f.msgs, m)
	return m
}

// seedNote stores an unread notification without publishing it.
func (f *fakeBackend) seedNote(userID, sourceID string) Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	n := Notification{ID: fmt.Sprintf("n%d", f.seq), UserID: userID, Type: NotificationMessage, SourceID: sourceID, CreatedAt: f.tick()}
	f.notes = append(f.notes, n)
	return n
}

// deliver inserts a message written by another session and publishes it.
func (f *fakeBackend) deliver(from, to, content string) Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	ts := f.tick()
	m := Message{ID: fmt.Sprintf("m%d", f.seq), FromID: from, ToID: to, Content: content, CreatedAt: ts, UpdatedAt: ts}
	f.msgs = append(f.msgs, m)
	f.publish(TableMessages, OpInsert, nil, m)
	return m
}

func (f *fakeBackend) notesFor(userID string) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Notification
	for _, n := range f.notes {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func (f *fakeBackend) message(id string) (Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

func (f *fakeBackend) openSubs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.subs {
		if !s.isClosed() {
			n++
		}
	}
	return n
}

// publish sends a change to self's open subscriptions. Callers hold f.mu.
func (f *fakeBackend) publish(table, op string, prev, cur any) {
	raw := RawEvent{Table: table, Op: op}
	if prev != nil {
		raw.Previous, _ = json.Marshal(prev)
	}
	if cur != nil {
		raw.Current, _ = json.Marshal(cur)
	}
	for _, s := range f.subs {
		if s.table == table {
			s.send(raw)
		}
	}
}

func (f *fakeBackend) CurrentUser(ctx context.Context) (Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CurrentUser"); err != nil {
		return Profile{}, err
	}
	if f.authErr != nil {
		return Profile{}, f.authErr
	}
	return f.self, nil
}

func (f *fakeBackend) Profiles(ctx context.Context, ids []string) ([]Profile, error) {
	f.mu.Lock()
	gate := f.profilesGate
	f.mu.Unlock()
	if gate != nil {
		gate(ids)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Profiles"); err != nil {
		return nil, err
	}
	var out []Profile
	for _, id := range ids {
		if p, ok := f.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeBackend) SearchProfiles(ctx context.Context, query, excludeID string, limit int) ([]Profile, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	err := f.enter("SearchProfiles")
	gate := f.searchGate
	f.mu.Unlock()
	if gate != nil {
		gate(query)
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	q := strings.ToLower(query)
	var out []Profile
	for _, p := range f.profiles {
		if p.ID == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(p.FullName), q) || strings.Contains(strings.ToLower(p.Email), q) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeBackend) searched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func (f *fakeBackend) MessagesFor(ctx context.Context, userID string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("MessagesFor"); err != nil {
		return nil, err
	}
	var out []Message
	for _, m := range f.msgs {
		if m.Involves(userID) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return before(out[j], out[i]) })
	return out, nil
}

func (f *fakeBackend) History(ctx context.Context, partnerID string) ([]Message, error) {
	f.mu.Lock()
	if err := f.enter("History"); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	var out []Message
	for _, m := range f.msgs {
		if m.Involves(f.self.ID) && m.Partner(f.self.ID) == partnerID {
			out = append(out, m)
		}
	}
	gate := f.historyGate
	f.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return before(out[i], out[j]) })
	if gate != nil {
		gate(partnerID)
	}
	return out, nil
}

func (f *fakeBackend) InsertMessage(ctx context.Context, toID, content, attachment string) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("InsertMessage"); err != nil {
		return Message{}, err
	}
	f.seq++
	ts := f.tick()
	m := Message{ID: fmt.Sprintf("m%d", f.seq), FromID: f.self.ID, ToID: toID, Content: content, Attachment: attachment, CreatedAt: ts, UpdatedAt: ts}
	f.msgs = append(f.msgs, m)
	f.publish(TableMessages, OpInsert, nil, m)
	return m, nil
}

func (f *fakeBackend) UpdateMessage(ctx context.Context, id, content, attachment string) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateMessage"); err != nil {
		return Message{}, err
	}
	for i, m := range f.msgs {
		if m.ID == id {
			prev := m
			m.Content, m.Attachment, m.UpdatedAt = content, attachment, f.tick()
			f.msgs[i] = m
			f.publish(TableMessages, OpUpdate, prev, m)
			return m, nil
		}
	}
	return Message{}, fmt.Errorf("message %s not found", id)
}

func (f *fakeBackend) DeleteMessage(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteMessage"); err != nil {
		return err
	}
	for i, m := range f.msgs {
		if m.ID == id {
			f.msgs = append(f.msgs[:i], f.msgs[i+1:]...)
			f.publish(TableMessages, OpDelete, m, nil)
			return nil
		}
	}
	return fmt.Errorf("message %s not found", id)
}

func (f *fakeBackend) InsertNotification(ctx context.Context, n Notification) (Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("InsertNotification"); err != nil {
		return Notification{}, err
	}
	f.seq++
	n.ID = fmt.Sprintf("n%d", f.seq)
	n.CreatedAt = f.tick()
	f.notes = append(f.notes, n)
	if n.UserID == f.self.ID {
		f.publish(TableNotifications, OpInsert, nil, n)
	}
	return n, nil
}

func (f *fakeBackend) UnreadNotifications(ctx context.Context) ([]Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UnreadNotifications"); err != nil {
		return nil, err
	}
	var out []Notification
	for _, n := range f.notes {
		if n.UserID == f.self.ID && !n.Read {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeBackend) MarkRead(ctx context.Context, kind, sourceID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("MarkRead"); err != nil {
		return 0, err
	}
	n := 0
	for i, note := range f.notes {
		if note.UserID != f.self.ID || note.Read || note.Type != kind || note.SourceID != sourceID {
			continue
		}
		prev := note
		note.Read = true
		f.notes[i] = note
		f.publish(TableNotifications, OpUpdate, prev, note)
		n++
	}
	return n, nil
}

func (f *fakeBackend) Subscribe(ctx context.Context, table string) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Subscribe " + table); err != nil {
		return nil, err
	}
	s := &fakeSub{table: table, ch: make(chan RawEvent, 64)}
	f.subs = append(f.subs, s)
	return s, nil
}

type fakeSub struct {
	table string

	mu     sync.Mutex
	ch     chan RawEvent
	closed bool
	err    error
}

func (s *fakeSub) Events() <-chan RawEvent { return s.ch }

func (s *fakeSub) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeSub) Close() error {
	s.end(nil)
	return nil
}

// end closes the feed with err as its reason.
func (s *fakeSub) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.ch)
}

func (s *fakeSub) send(raw RawEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.ch <- raw
}

func (s *fakeSub) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
