package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Event is a validated change. It is one of MessageCreated, MessageModified,
// MessageRemoved or NotificationsChanged.
type Event interface {
	isEvent()
}

// MessageCreated carries a newly inserted message.
type MessageCreated struct {
	Message Message
}

// MessageModified carries an edited message. Previous may be nil.
type MessageModified struct {
	Previous *Message
	Message  Message
}

// MessageRemoved carries the row as it was before deletion.
type MessageRemoved struct {
	Message Message
}

// NotificationsChanged reports any change to the user's notifications.
type NotificationsChanged struct {
	Op           string
	Notification Notification
}

func (MessageCreated) isEvent()       {}
func (MessageModified) isEvent()      {}
func (MessageRemoved) isEvent()       {}
func (NotificationsChanged) isEvent() {}

var errInvalidEvent = errors.New("invalid change event")

// Decode validates raw and turns it into an Event for selfID. Rows that do
// not concern selfID are rejected like malformed ones.
func Decode(raw RawEvent, selfID string) (Event, error) {
	switch raw.Table {
	case TableMessages:
		return decodeMessageEvent(raw, selfID)
	case TableNotifications:
		return decodeNotificationEvent(raw, selfID)
	}
	return nil, fmt.Errorf("%w: unknown table %q", errInvalidEvent, raw.Table)
}

func decodeMessageEvent(raw RawEvent, selfID string) (Event, error) {
	switch raw.Op {
	case OpInsert:
		m, err := decodeMessage(raw.Current, selfID)
		if err != nil {
			return nil, err
		}
		return MessageCreated{Message: m}, nil
	case OpUpdate:
		m, err := decodeMessage(raw.Current, selfID)
		if err != nil {
			return nil, err
		}
		ev := MessageModified{Message: m}
		if len(raw.Previous) > 0 {
			prev, err := decodeMessage(raw.Previous, selfID)
			if err != nil {
				return nil, err
			}
			if prev.ID != m.ID {
				return nil, fmt.Errorf("%w: update changes id %s to %s", errInvalidEvent, prev.ID, m.ID)
			}
			ev.Previous = &prev
		}
		return ev, nil
	case OpDelete:
		m, err := decodeMessage(raw.Previous, selfID)
		if err != nil {
			return nil, err
		}
		return MessageRemoved{Message: m}, nil
	}
	return nil, fmt.Errorf("%w: unknown op %q", errInvalidEvent, raw.Op)
}

func decodeMessage(data json.RawMessage, selfID string) (Message, error) {
	if len(data) == 0 {
		return Message{}, fmt.Errorf("%w: missing row", errInvalidEvent)
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", errInvalidEvent, err)
	}
	switch {
	case m.ID == "" || m.FromID == "" || m.ToID == "":
		return Message{}, fmt.Errorf("%w: message without id or parties", errInvalidEvent)
	case !m.Involves(selfID):
		return Message{}, fmt.Errorf("%w: message %s is not addressed to this user", errInvalidEvent, m.ID)
	case !m.UpdatedAt.IsZero() && m.UpdatedAt.Before(m.CreatedAt):
		return Message{}, fmt.Errorf("%w: message %s updated before it was created", errInvalidEvent, m.ID)
	}
	return m, nil
}

func decodeNotificationEvent(raw RawEvent, selfID string) (Event, error) {
	switch raw.Op {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return nil, fmt.Errorf("%w: unknown op %q", errInvalidEvent, raw.Op)
	}
	data := raw.Current
	if raw.Op == OpDelete {
		data = raw.Previous
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: missing row", errInvalidEvent)
	}
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidEvent, err)
	}
	if n.ID == "" || n.UserID != selfID {
		return nil, fmt.Errorf("%w: notification %q is not for this user", errInvalidEvent, n.ID)
	}
	return NotificationsChanged{Op: raw.Op, Notification: n}, nil
}

// Listener keeps exactly one subscription per table for the signed-in user
// and hands validated events to a handler.
type Listener struct {
	feed   Feed
	handle func(Event)
	lost   func(table string, err error)

	mu   sync.Mutex
	subs map[string]Subscription
	wg   sync.WaitGroup
}

// NewListener returns a stopped listener. handle is called from the
// listener's goroutines, one per table; lost, if set, is called when a feed
// ends with an error other than a deliberate Stop.
func NewListener(feed Feed, handle func(Event), lost func(table string, err error)) *Listener {
	return &Listener{feed: feed, handle: handle, lost: lost}
}

// Start tears down any running subscriptions and subscribes to the messages
// and notifications feeds for selfID. If any subscribe fails, nothing is left
// running.
func (l *Listener) Start(ctx context.Context, selfID string) error {
	l.Stop()

	subs := make(map[string]Subscription, 2)
	for _, table := range []string{TableMessages, TableNotifications} {
		sub, err := l.feed.Subscribe(ctx, table)
		if err != nil {
			for _, s := range subs {
				_ = s.Close()
			}
			return remote("subscribe "+table, err)
		}
		subs[table] = sub
	}

	l.mu.Lock()
	l.subs = subs
	l.mu.Unlock()

	for table, sub := range subs {
		l.wg.Add(1)
		go l.consume(table, sub, selfID)
	}
	return nil
}

// Stop closes every subscription and waits for the handlers to return. It
// must not be called from inside the handler.
func (l *Listener) Stop() {
	l.mu.Lock()
	subs := l.subs
	l.subs = nil
	l.mu.Unlock()

	for _, s := range subs {
		if err := s.Close(); err != nil {
			log.Debugf("closing subscription: %v", err)
		}
	}
	l.wg.Wait()
}

// Active returns the number of live subscriptions.
func (l *Listener) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

func (l *Listener) consume(table string, sub Subscription, selfID string) {
	defer l.wg.Done()

	for raw := range sub.Events() {
		ev, err := Decode(raw, selfID)
		if err != nil {
			log.Warningf("dropping %s event: %v", table, err)
			continue
		}
		l.handle(ev)
	}

	err := sub.Err()
	if err == nil || canceled(err) {
		return
	}

	l.mu.Lock()
	current := l.subs[table] == sub
	if current {
		delete(l.subs, table)
	}
	l.mu.Unlock()
	if !current {
		return
	}
	_ = sub.Close()
	log.Warningf("%s feed ended: %v", table, err)
	if l.lost != nil {
		l.lost(table, remote("subscription "+table, err))
	}
}
