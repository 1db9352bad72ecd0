package messaging

import "sort"

// Thread is the open conversation with one partner, oldest message first.
type Thread struct {
	self    string
	partner Profile
	msgs    []Message
	// gone holds removed ids; a snapshot read before the delete must not
	// bring them back.
	gone map[string]bool
}

// NewThread builds a thread from history in any order.
func NewThread(selfID string, partner Profile, history []Message) *Thread {
	t := &Thread{self: selfID, partner: partner}
	for _, m := range history {
		t.Upsert(m)
	}
	return t
}

// Partner returns the other party.
func (t *Thread) Partner() Profile { return t.partner }

// Belongs reports whether m is part of this conversation.
func (t *Thread) Belongs(m Message) bool {
	return (m.FromID == t.self && m.ToID == t.partner.ID) ||
		(m.FromID == t.partner.ID && m.ToID == t.self)
}

// Upsert inserts m or replaces the row with the same id, keeping the list
// sorted by created_at. It reports whether anything changed. Messages from
// other conversations, removed ids and updates older than the held row are
// ignored.
func (t *Thread) Upsert(m Message) bool {
	if m.ID == "" || !t.Belongs(m) || t.gone[m.ID] {
		return false
	}
	if i := t.index(m.ID); i >= 0 {
		old := t.msgs[i]
		if old.same(m) || m.UpdatedAt.Before(old.UpdatedAt) {
			return false
		}
		t.msgs[i] = m
		if !old.CreatedAt.Equal(m.CreatedAt) {
			t.sort()
		}
		return true
	}
	t.msgs = append(t.msgs, m)
	t.sort()
	return true
}

// Remove drops the message with id. Later upserts of id are ignored.
func (t *Thread) Remove(id string) bool {
	if t.gone == nil {
		t.gone = make(map[string]bool)
	}
	t.gone[id] = true
	i := t.index(id)
	if i < 0 {
		return false
	}
	t.msgs = append(t.msgs[:i], t.msgs[i+1:]...)
	return true
}

// Get returns the message with id.
func (t *Thread) Get(id string) (Message, bool) {
	if i := t.index(id); i >= 0 {
		return t.msgs[i], true
	}
	return Message{}, false
}

// Messages returns a copy of the thread in display order.
func (t *Thread) Messages() []Message {
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

func (t *Thread) index(id string) int {
	for i := range t.msgs {
		if t.msgs[i].ID == id {
			return i
		}
	}
	return -1
}

func (t *Thread) sort() {
	sort.SliceStable(t.msgs, func(i, j int) bool { return before(t.msgs[i], t.msgs[j]) })
}
