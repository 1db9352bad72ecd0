// Package memory is a process-local implementation of the data stores. It
// backs STORE=memory dev runs and the end-to-end tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PaulBabatuyi/convosync/internal/data"
	"github.com/PaulBabatuyi/convosync/internal/normalize"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// DB holds every collection behind one lock.
type DB struct {
	mu            sync.RWMutex
	profiles      map[bson.ObjectID]*data.Profile
	emails        map[string]bson.ObjectID
	messages      map[bson.ObjectID]*data.Message
	notifications map[bson.ObjectID]*data.Notification
	posts         map[bson.ObjectID]*data.Post
	slugs         map[string]bool
	notes         map[bson.ObjectID]*data.Note
}

// New returns an empty database.
func New() *DB {
	return &DB{
		profiles:      make(map[bson.ObjectID]*data.Profile),
		emails:        make(map[string]bson.ObjectID),
		messages:      make(map[bson.ObjectID]*data.Message),
		notifications: make(map[bson.ObjectID]*data.Notification),
		posts:         make(map[bson.ObjectID]*data.Post),
		slugs:         make(map[string]bool),
		notes:         make(map[bson.ObjectID]*data.Note),
	}
}

// Ping always succeeds.
func (db *DB) Ping(context.Context) error { return nil }

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// newer orders by timestamp, then by id, newest first.
func newer(at, bt time.Time, a, b bson.ObjectID) bool {
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return bytes.Compare(a[:], b[:]) > 0
}

// Profiles returns the profile store view.
func (db *DB) Profiles() *Profiles { return &Profiles{db} }

// Messages returns the message store view.
func (db *DB) Messages() *Messages { return &Messages{db} }

// Notifications returns the notification store view.
func (db *DB) Notifications() *Notifications { return &Notifications{db} }

// Posts returns the post store view.
func (db *DB) Posts() *Posts { return &Posts{db} }

// Notes returns the post comment store view.
func (db *DB) Notes() *Notes { return &Notes{db} }

type Profiles struct{ db *DB }

func (s *Profiles) CreateProfile(_ context.Context, email, fullName, hashedPassword string) (*data.Profile, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	email = normalize.Email(email)
	if _, ok := s.db.emails[email]; ok {
		return nil, data.ErrDuplicate
	}
	ts := now()
	p := &data.Profile{ID: bson.NewObjectID(), Email: email, FullName: fullName, Password: hashedPassword, CreatedAt: ts, UpdatedAt: ts}
	s.db.profiles[p.ID] = p
	s.db.emails[email] = p.ID
	cp := *p
	return &cp, nil
}

func (s *Profiles) GetProfileByEmail(_ context.Context, email string) (*data.Profile, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	id, ok := s.db.emails[normalize.Email(email)]
	if !ok {
		return nil, data.ErrNotFound
	}
	cp := *s.db.profiles[id]
	return &cp, nil
}

func (s *Profiles) GetProfileByID(_ context.Context, id string) (*data.Profile, error) {
	oid, err := data.ParseID(id)
	if err != nil {
		return nil, err
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	p, ok := s.db.profiles[oid]
	if !ok {
		return nil, data.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Profiles) GetProfilesByIDs(_ context.Context, ids []string) ([]*data.Profile, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []*data.Profile
	for _, id := range ids {
		oid, err := data.ParseID(id)
		if err != nil {
			continue
		}
		if p, ok := s.db.profiles[oid]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Profiles) SearchProfiles(_ context.Context, query, excludeID string, limit int64) ([]*data.Profile, error) {
	query = strings.ToLower(normalize.Query(query))
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = data.DefaultSearchLimit
	}

	s.db.mu.RLock()
	var out []*data.Profile
	for _, p := range s.db.profiles {
		if p.ID.Hex() == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(p.FullName), query) || strings.Contains(p.Email, query) {
			cp := *p
			out = append(out, &cp)
		}
	}
	s.db.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].FullName != out[j].FullName {
			return out[i].FullName < out[j].FullName
		}
		return out[i].Email < out[j].Email
	})
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Profiles) ProfileExists(_ context.Context, id string) (bool, error) {
	oid, err := data.ParseID(id)
	if err != nil {
		return false, nil
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	_, ok := s.db.profiles[oid]
	return ok, nil
}

type Messages struct{ db *DB }

func (s *Messages) SaveMessage(_ context.Context, fromID, toID, content, attachment string) (*data.Message, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	ts := now()
	m := &data.Message{ID: bson.NewObjectID(), FromID: fromID, ToID: toID, Content: content, Attachment: attachment, CreatedAt: ts, UpdatedAt: ts}
	s.db.messages[m.ID] = m
	cp := *m
	return &cp, nil
}

func (s *Messages) GetMessage(_ context.Context, id string) (*data.Message, error) {
	oid, err := data.ParseID(id)
	if err != nil {
		return nil, err
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	m, ok := s.db.messages[oid]
	if !ok {
		return nil, data.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Messages) UpdateMessage(_ context.Context, id, content, attachment string) (*data.Message, *data.Message, error) {
	oid, err := data.ParseID(id)
	if err != nil {
		return nil, nil, err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m, ok := s.db.messages[oid]
	if !ok {
		return nil, nil, data.ErrNotFound
	}
	prev := *m
	m.Content = content
	m.Attachment = attachment
	m.UpdatedAt = now()
	if !m.UpdatedAt.After(prev.UpdatedAt) {
		m.UpdatedAt = prev.UpdatedAt.Add(time.Millisecond)
	}
	cur := *m
	return &prev, &cur, nil
}

func (s *Messages) DeleteMessage(_ context.Context, id string) (*data.Message, error) {
	oid, err := data.ParseID(id)
	if err != nil {
		return nil, err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m, ok := s.db.messages[oid]
	if !ok {
		return nil, data.ErrNotFound
	}
	delete(s.db.messages, oid)
	return m, nil
}

// sorted returns messages matching keep, newest first.
func (s *Messages) sorted(keep func(*data.Message) bool) []*data.Message {
	s.db.mu.RLock()
	var out []*data.Message
	for _, m := range s.db.messages {
		if keep(m) {
			cp := *m
			out = append(out, &cp)
		}
	}
	s.db.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out
}

func (s *Messages) ListMessagesFor(_ context.Context, userID string, limit int64) ([]*data.Message, error) {
	out := s.sorted(func(m *data.Message) bool { return m.FromID == userID || m.ToID == userID })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Messages) GetMessageHistory(_ context.Context, user1, user2 string, limit int64) ([]*data.Message, error) {
	out := s.sorted(func(m *data.Message) bool {
		return (m.FromID == user1 && m.ToID == user2) || (m.FromID == user2 && m.ToID == user1)
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *Messages) GetRecentChats(_ context.Context, userID string, limit int64) ([]*data.ChatPartner, error) {
	all := s.sorted(func(m *data.Message) bool { return m.FromID == userID || m.ToID == userID })
	seen := map[string]bool{}
	var out []*data.ChatPartner
	for _, m := range all {
		partner := m.ToID
		if m.FromID != userID {
			partner = m.FromID
		}
		if seen[partner] {
			continue
		}
		seen[partner] = true
		out = append(out, &data.ChatPartner{PartnerID: partner, LastMessage: m.Content, LastMessageTime: m.CreatedAt})
		if limit > 0 && int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

type Notifications struct{ db *DB }

func (s *Notifications) CreateNotification(_ context.Context, userID, kind, payload, sourceID string) (*data.Notification, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := &data.Notification{ID: bson.NewObjectID(), UserID: userID, Type: kind, Payload: payload, SourceID: sourceID, CreatedAt: now()}
	s.db.notifications[n.ID] = n
	cp := *n
	return &cp, nil
}

func (s *Notifications) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit int64) ([]*data.Notification, error) {
	s.db.mu.RLock()
	var out []*data.Notification
	for _, n := range s.db.notifications {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	s.db.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Notifications) MarkRead(_ context.Context, userID, kind, sourceID string) ([]*data.Notification, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var changed []*data.Notification
	for _, n := range s.db.notifications {
		if n.UserID != userID || n.Read {
			continue
		}
		if (kind != "" && n.Type != kind) || (sourceID != "" && n.SourceID != sourceID) {
			continue
		}
		prev := *n
		n.Read = true
		changed = append(changed, &prev)
	}
	return changed, nil
}

type Posts struct{ db *DB }

func (s *Posts) CreatePost(_ context.Context, userID, title, content, kind, visibility string) (*data.Post, error) {
	if visibility == "" {
		visibility = data.VisibilityPrivate
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	ts := now()
	p := &data.Post{ID: bson.NewObjectID(), UserID: userID, Title: title, Content: content, Type: kind, Visibility: visibility, CreatedAt: ts, UpdatedAt: ts}
	p.Slug = normalize.Slug(title)
	if p.Slug == "" {
		p.Slug = p.ID.Hex()
	}
	if s.db.slugs[p.Slug] {
		p.Slug = fmt.Sprintf("%s-%s", p.Slug, p.ID.Hex())
	}
	s.db.slugs[p.Slug] = true
	s.db.posts[p.ID] = p
	cp := *p
	return &cp, nil
}

func (s *Posts) ListPublicPosts(_ context.Context, page, size int64, kind string) ([]*data.Post, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = data.DefaultPageSize
	}

	s.db.mu.RLock()
	var all []*data.Post
	for _, p := range s.db.posts {
		if p.Visibility != data.VisibilityPublic || (kind != "" && p.Type != kind) {
			continue
		}
		cp := *p
		all = append(all, &cp)
	}
	s.db.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return newer(all[i].CreatedAt, all[j].CreatedAt, all[i].ID, all[j].ID) })
	start := (page - 1) * size
	if start >= int64(len(all)) {
		return nil, nil
	}
	end := start + size
	if end > int64(len(all)) {
		end = int64(len(all))
	}
	return all[start:end], nil
}

func (s *Posts) GetPost(_ context.Context, id string) (*data.Post, error) {
	oid, err := data.ParseID(id)
	if err != nil {
		return nil, err
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	p, ok := s.db.posts[oid]
	if !ok {
		return nil, data.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Posts) GetPostBySlug(_ context.Context, slug string) (*data.Post, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	for _, p := range s.db.posts {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, data.ErrNotFound
}

func (s *Posts) UpdatePost(_ context.Context, id, title, content, visibility string) (*data.Post, error) {
	oid, err := data.ParseID(id)
	if err != nil {
		return nil, err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.posts[oid]
	if !ok {
		return nil, data.ErrNotFound
	}
	p.Title, p.Content, p.Visibility = title, content, visibility
	p.UpdatedAt = now()
	cp := *p
	return &cp, nil
}

func (s *Posts) DeletePost(_ context.Context, id string) (*data.Post, error) {
	oid, err := data.ParseID(id)
	if err != nil {
		return nil, err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.posts[oid]
	if !ok {
		return nil, data.ErrNotFound
	}
	delete(s.db.posts, oid)
	delete(s.db.slugs, p.Slug)
	return p, nil
}

type Notes struct{ db *DB }

func (s *Notes) CreateNote(_ context.Context, postID, userID, parentID, content string) (*data.Note, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	ts := now()
	n := &data.Note{ID: bson.NewObjectID(), PostID: postID, UserID: userID, ParentID: parentID, Content: content, Visibility: data.VisibilityPublic, CreatedAt: ts, UpdatedAt: ts}
	s.db.notes[n.ID] = n
	cp := *n
	return &cp, nil
}

func (s *Notes) GetNote(_ context.Context, id string) (*data.Note, error) {
	oid, err := data.ParseID(id)
	if err != nil {
		return nil, err
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	n, ok := s.db.notes[oid]
	if !ok {
		return nil, data.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (s *Notes) ListNotes(_ context.Context, postID string) ([]*data.Note, error) {
	s.db.mu.RLock()
	var out []*data.Note
	for _, n := range s.db.notes {
		if n.PostID == postID && n.Visibility == data.VisibilityPublic {
			cp := *n
			out = append(out, &cp)
		}
	}
	s.db.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return newer(out[j].CreatedAt, out[i].CreatedAt, out[j].ID, out[i].ID) })
	return out, nil
}

func (s *Notes) UpdateNote(_ context.Context, id, content string) (*data.Note, error) {
	oid, err := data.ParseID(id)
	if err != nil {
		return nil, err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n, ok := s.db.notes[oid]
	if !ok {
		return nil, data.ErrNotFound
	}
	n.Content = content
	n.UpdatedAt = now()
	cp := *n
	return &cp, nil
}

func (s *Notes) DeleteNote(_ context.Context, id string) (int64, error) {
	oid, err := data.ParseID(id)
	if err != nil {
		return 0, err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.notes[oid]; !ok {
		return 0, data.ErrNotFound
	}

	doomed := map[string]bool{id: true}
	for grew := true; grew; {
		grew = false
		for nid, n := range s.db.notes {
			if n.ParentID != "" && doomed[n.ParentID] && !doomed[nid.Hex()] {
				doomed[nid.Hex()] = true
				grew = true
			}
		}
	}
	for hex := range doomed {
		nid, _ := bson.ObjectIDFromHex(hex)
		delete(s.db.notes, nid)
	}
	return int64(len(doomed)), nil
}

func (s *Notes) DeleteNotesForPost(_ context.Context, postID string) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for id, note := range s.db.notes {
		if note.PostID == postID {
			delete(s.db.notes, id)
			n++
		}
	}
	return n, nil
}
