// Package realtime fans committed row changes out to subscribed sessions.
package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("realtime")

// Operation tags carried by a Change.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// DefaultBuffer is the per-subscription queue depth. A subscriber that falls
// this far behind is evicted.
const DefaultBuffer = 64

// Change is one committed row change. Previous and Current hold the JSON row
// before and after the write; Audience lists the user ids allowed to see it.
type Change struct {
	Table      string          `json:"table"`
	Op         string          `json:"op"`
	Previous   json.RawMessage `json:"previous,omitempty"`
	Current    json.RawMessage `json:"current,omitempty"`
	Audience   []string        `json:"audience"`
	CommitTime time.Time       `json:"commit_time"`
}

// NewChange marshals prev and cur (either may be nil) into a Change.
func NewChange(table, op string, prev, cur any, audience ...string) (Change, error) {
	c := Change{Table: table, Op: op, Audience: dedupe(audience), CommitTime: time.Now().UTC()}
	var err error
	if prev != nil {
		if c.Previous, err = json.Marshal(prev); err != nil {
			return Change{}, fmt.Errorf("marshal previous row: %w", err)
		}
	}
	if cur != nil {
		if c.Current, err = json.Marshal(cur); err != nil {
			return Change{}, fmt.Errorf("marshal current row: %w", err)
		}
	}
	return c, nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Forwarder receives every locally published change, e.g. to copy it to
// other server instances.
type Forwarder interface {
	Forward(Change)
}

// Subscription is a live feed of one table's changes for one user. Events is
// closed when the subscription ends, either through Close or eviction.
type Subscription struct {
	ID     string
	UserID string
	Table  string
	Events <-chan Change

	events  chan Change
	broker  *Broker
	once    sync.Once
	evicted bool
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.broker.remove(s, false) })
}

// Evicted reports whether the broker dropped this subscriber for being slow.
func (s *Subscription) Evicted() bool {
	s.broker.mu.RLock()
	defer s.broker.mu.RUnlock()
	return s.evicted
}

// Broker maps user ids to their live subscriptions. Delivery is
// non-blocking: a full queue evicts the subscriber instead of stalling the
// publisher.
type Broker struct {
	mu      sync.RWMutex
	subs    map[string]map[string]*Subscription
	buffer  int
	forward Forwarder
}

// NewBroker creates a broker with the given per-subscription buffer
// (DefaultBuffer when <= 0).
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broker{subs: make(map[string]map[string]*Subscription), buffer: buffer}
}

// SetForwarder installs f to receive every change passed to Publish.
func (b *Broker) SetForwarder(f Forwarder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forward = f
}

// Subscribe registers a feed of table changes visible to userID.
func (b *Broker) Subscribe(userID, table string) *Subscription {
	ch := make(chan Change, b.buffer)
	s := &Subscription{
		ID:     uuid.NewString(),
		UserID: userID,
		Table:  table,
		Events: ch,
		events: ch,
		broker: b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[userID]; !ok {
		b.subs[userID] = make(map[string]*Subscription)
	}
	b.subs[userID][s.ID] = s
	log.Debugf("subscribe %s user=%s table=%s", s.ID, userID, table)
	return s
}

// Publish delivers c locally and hands it to the forwarder, if any.
func (b *Broker) Publish(c Change) {
	b.Deliver(c)

	b.mu.RLock()
	f := b.forward
	b.mu.RUnlock()
	if f != nil {
		f.Forward(c)
	}
}

// Deliver sends c to every matching local subscriber without forwarding it.
func (b *Broker) Deliver(c Change) {
	var slow []*Subscription

	b.mu.RLock()
	for _, userID := range c.Audience {
		for _, s := range b.subs[userID] {
			if s.Table != c.Table {
				continue
			}
			select {
			case s.events <- c:
			default:
				slow = append(slow, s)
			}
		}
	}
	b.mu.RUnlock()

	for _, s := range slow {
		log.Warningf("evicting slow subscriber %s (user=%s table=%s)", s.ID, s.UserID, s.Table)
		b.remove(s, true)
	}
}

// Count returns the number of live subscriptions for userID.
func (b *Broker) Count(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userID])
}

func (b *Broker) remove(s *Subscription, evicted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	conns, ok := b.subs[s.UserID]
	if !ok {
		return
	}
	if _, ok := conns[s.ID]; !ok {
		return
	}
	delete(conns, s.ID)
	if len(conns) == 0 {
		delete(b.subs, s.UserID)
	}
	s.evicted = evicted
	close(s.events)
}
