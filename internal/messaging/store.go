package messaging

import (
	"context"
	"sort"
)

// ConversationStore holds the partner list for one user, most recent first.
// It is not safe for concurrent use; the Controller serializes access.
type ConversationStore struct {
	self  string
	dir   Directory
	convs map[string]*Conversation
	order []string
	known map[string]Profile
}

// NewConversationStore returns an empty store for selfID.
func NewConversationStore(selfID string, dir Directory) *ConversationStore {
	return &ConversationStore{
		self:  selfID,
		dir:   dir,
		convs: make(map[string]*Conversation),
		known: make(map[string]Profile),
	}
}

// Build replaces the store contents from every message involving the user.
// For each partner the latest message wins; on equal created_at the one seen
// first in all wins. Partners the directory does not know are dropped. On
// error the previous contents are kept.
func (s *ConversationStore) Build(ctx context.Context, all []Message) error {
	latest := make(map[string]Message)
	var ids []string
	for _, m := range all {
		if !m.Involves(s.self) {
			continue
		}
		p := m.Partner(s.self)
		if p == "" || p == s.self {
			continue
		}
		cur, ok := latest[p]
		if !ok {
			ids = append(ids, p)
			latest[p] = m
			continue
		}
		if m.CreatedAt.After(cur.CreatedAt) {
			latest[p] = m
		}
	}

	profiles, err := s.lookup(ctx, ids)
	if err != nil {
		return err
	}

	convs := make(map[string]*Conversation, len(latest))
	for id, m := range latest {
		prof, ok := profiles[id]
		if !ok {
			log.Debugf("dropping conversation with unknown profile %s", id)
			continue
		}
		convs[id] = &Conversation{Partner: prof, Last: m}
	}
	s.convs = convs
	s.resort()
	return nil
}

// ApplyInsert records m as the partner's latest message when it is newer
// than the cached one. A new partner is resolved through the directory.
// Applying the same message twice is a no-op.
func (s *ConversationStore) ApplyInsert(ctx context.Context, m Message) (bool, error) {
	if !m.Involves(s.self) {
		return false, nil
	}
	p := m.Partner(s.self)
	if p == "" || p == s.self {
		return false, nil
	}

	if c, ok := s.convs[p]; ok {
		if c.Last.ID == m.ID {
			if c.Last.same(m) && !c.Stale {
				return false, nil
			}
			c.Last, c.Stale = m, false
			return true, nil
		}
		if !c.Stale && !m.CreatedAt.After(c.Last.CreatedAt) {
			return false, nil
		}
		c.Last, c.Stale = m, false
		s.resort()
		return true, nil
	}

	profiles, err := s.lookup(ctx, []string{p})
	if err != nil {
		return false, err
	}
	prof, ok := profiles[p]
	if !ok {
		log.Debugf("ignoring message %s from unknown profile %s", m.ID, p)
		return false, nil
	}
	s.convs[p] = &Conversation{Partner: prof, Last: m}
	s.resort()
	return true, nil
}

// Unresolved returns the partner id ApplyInsert would have to look up in the
// directory for m, or "" when m needs no lookup.
func (s *ConversationStore) Unresolved(m Message) string {
	if !m.Involves(s.self) {
		return ""
	}
	p := m.Partner(s.self)
	if p == "" || p == s.self {
		return ""
	}
	if _, ok := s.convs[p]; ok {
		return ""
	}
	if _, ok := s.known[p]; ok {
		return ""
	}
	return p
}

// ApplyUpdate replaces the cached preview when it is m. An update older than
// the cached row is ignored.
func (s *ConversationStore) ApplyUpdate(m Message) bool {
	c, ok := s.convs[m.Partner(s.self)]
	if !ok || c.Last.ID != m.ID || c.Last.same(m) || m.UpdatedAt.Before(c.Last.UpdatedAt) {
		return false
	}
	c.Last = m
	return true
}

// ApplyDelete marks the conversation whose preview is id as stale and
// returns its partner id. The store does not guess a replacement; see Repair.
func (s *ConversationStore) ApplyDelete(id string) (string, bool) {
	for p, c := range s.convs {
		if c.Last.ID == id && !c.Stale {
			c.Stale = true
			return p, true
		}
	}
	return "", false
}

// Repair re-derives the preview for partnerID from its history. An empty
// history removes the conversation.
func (s *ConversationStore) Repair(partnerID string, history []Message) {
	c, ok := s.convs[partnerID]
	if !ok {
		return
	}
	if len(history) == 0 {
		delete(s.convs, partnerID)
		s.resort()
		return
	}
	last := history[0]
	for _, m := range history[1:] {
		if before(last, m) {
			last = m
		}
	}
	c.Last, c.Stale = last, false
	s.resort()
}

// Partner returns the cached profile for id.
func (s *ConversationStore) Partner(id string) (Profile, bool) {
	c, ok := s.convs[id]
	if !ok {
		return Profile{}, false
	}
	return c.Partner, true
}

// Remember caches a profile for a partner with no messages yet so that
// the first insert does not need a directory round trip.
func (s *ConversationStore) Remember(p Profile) {
	if p.ID == "" || p.ID == s.self {
		return
	}
	s.known[p.ID] = p
}

// Conversations returns a copy of the list, most recent first.
func (s *ConversationStore) Conversations() []Conversation {
	out := make([]Conversation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.convs[id])
	}
	return out
}

// Len returns the number of conversations.
func (s *ConversationStore) Len() int { return len(s.order) }

func (s *ConversationStore) resort() {
	s.order = s.order[:0]
	for id := range s.convs {
		s.order = append(s.order, id)
	}
	sort.Slice(s.order, func(i, j int) bool {
		a, b := s.convs[s.order[i]].Last, s.convs[s.order[j]].Last
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return s.order[i] < s.order[j]
	})
}

func (s *ConversationStore) lookup(ctx context.Context, ids []string) (map[string]Profile, error) {
	out := make(map[string]Profile, len(ids))
	var missing []string
	for _, id := range ids {
		if p, ok := s.known[id]; ok {
			out[id] = p
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}
	profiles, err := s.dir.Profiles(ctx, missing)
	if err != nil {
		return nil, remote("load profiles", err)
	}
	for _, p := range profiles {
		out[p.ID] = p
		s.known[p.ID] = p
	}
	return out, nil
}
