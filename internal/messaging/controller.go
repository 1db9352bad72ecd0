package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/op/go-logging"
	"golang.org/x/sync/errgroup"
)

var log = logging.MustGetLogger("messaging")

// State is the controller's lifecycle state. Whether a conversation is open
// is tracked separately, see Controller.Thread.
type State int

const (
	StateInitializing State = iota
	StateReady
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateUnauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// Options tune a Controller. The zero value is usable.
type Options struct {
	// Confirm is asked before a delete is sent. A nil Confirm declines.
	Confirm func(Message) bool
	// OnChange is called after any visible state change, without locks held.
	OnChange func()
	// SearchDelay overrides DefaultSearchDelay.
	SearchDelay time.Duration
}

// Controller owns the messaging view for one session: the conversation list,
// the open thread, unread notifications and the realtime subscriptions.
// Every mutation runs under one lock, so realtime events, user actions and
// load results apply one at a time.
type Controller struct {
	b    Backend
	opts Options

	listener *Listener

	mu       sync.Mutex
	ctx      context.Context
	state    State
	self     Profile
	store    *ConversationStore
	thread   *Thread
	pending  *Thread
	openGen  uint64
	unread   []Notification
	sending  bool
	notice   error
	composer *Composer
	search   *Search
}

// NewController returns a controller in StateInitializing.
func NewController(b Backend, opts Options) *Controller {
	c := &Controller{b: b, opts: opts, state: StateInitializing}
	c.listener = NewListener(b, c.handle, c.feedLost)
	return c
}

// Init resolves the current user, loads conversations and unread
// notifications in parallel and subscribes to the change feeds. It returns
// ErrAuthRequired when there is no session. Load and subscribe failures do
// not fail Init; they leave a notice and whatever did load.
func (c *Controller) Init(ctx context.Context) error {
	self, err := c.b.CurrentUser(ctx)
	if err != nil {
		c.fail(remote("resolve user", err))
		if errors.Is(err, ErrAuthRequired) {
			return ErrAuthRequired
		}
		return remote("resolve user", err)
	}

	store := NewConversationStore(self.ID, c.b)
	var (
		msgs               []Message
		unread             []Notification
		msgsErr, unreadErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		msgs, msgsErr = c.b.MessagesFor(ctx, self.ID)
		msgsErr = remote("load conversations", msgsErr)
		return msgsErr
	})
	g.Go(func() error {
		unread, unreadErr = c.b.UnreadNotifications(ctx)
		unreadErr = remote("load notifications", unreadErr)
		return unreadErr
	})
	loadErr := g.Wait()
	if msgsErr == nil {
		if err := store.Build(ctx, msgs); err != nil {
			loadErr = err
		}
	}
	if errors.Is(loadErr, ErrAuthRequired) {
		c.fail(loadErr)
		return ErrAuthRequired
	}

	c.mu.Lock()
	c.ctx = ctx
	c.self = self
	c.store = store
	c.thread = nil
	c.pending = nil
	c.unread = unread
	c.composer = NewComposer(c.b, self, c.warn)
	if c.search != nil {
		c.search.Stop()
	}
	c.search = NewSearch(ctx, c.b, self.ID, c.opts.SearchDelay, c.searchDone)
	c.state = StateReady
	c.notice = loadErr
	c.mu.Unlock()

	if err := c.listener.Start(ctx, self.ID); err != nil {
		log.Warningf("realtime disabled: %v", err)
		c.fail(err)
		if errors.Is(err, ErrAuthRequired) {
			return err
		}
	}
	c.changed()
	return nil
}

// Shutdown releases the subscriptions, cancels pending searches and waits for
// background notification inserts.
func (c *Controller) Shutdown() {
	c.listener.Stop()

	c.mu.Lock()
	search, composer := c.search, c.composer
	c.mu.Unlock()
	if search != nil {
		search.Stop()
	}
	if composer != nil {
		composer.Wait()
	}
}

// Open fetches the full history with partner, makes it the open thread and
// marks the partner's message notifications read. Events that arrive while
// the history loads are kept. On failure the previous thread stays.
func (c *Controller) Open(ctx context.Context, partner Profile) error {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return c.notReady()
	}
	c.openGen++
	gen := c.openGen
	search := c.search
	c.store.Remember(partner)
	c.pending = NewThread(c.self.ID, partner, nil)
	c.mu.Unlock()

	search.Clear()

	history, err := c.b.History(ctx, partner.ID)
	if err != nil {
		c.mu.Lock()
		if gen == c.openGen {
			c.pending = nil
		}
		c.mu.Unlock()
		err = remote("load history", err)
		c.fail(err)
		return err
	}

	c.mu.Lock()
	if gen != c.openGen {
		c.mu.Unlock()
		return nil
	}
	th := c.pending
	c.pending = nil
	for _, m := range history {
		th.Upsert(m)
	}
	c.thread = th
	c.composer.CancelEdit()
	c.mu.Unlock()
	c.changed()

	// a newer Open or Close owns the read flags now
	if !c.current(gen) {
		return nil
	}
	_, markErr := c.b.MarkRead(ctx, NotificationMessage, partner.ID)
	c.mu.Lock()
	if markErr != nil {
		c.setNoticeLocked(remote("mark notifications read", markErr))
	} else {
		c.unread = dropRead(c.unread, partner.ID)
	}
	c.mu.Unlock()
	c.changed()
	return nil
}

func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.openGen
}

func dropRead(notes []Notification, sourceID string) []Notification {
	out := notes[:0:0]
	for _, n := range notes {
		if n.Type == NotificationMessage && n.SourceID == sourceID {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Close leaves the open conversation.
func (c *Controller) Close() {
	c.mu.Lock()
	c.openGen++
	c.thread = nil
	c.pending = nil
	composer := c.composer
	c.mu.Unlock()
	if composer != nil {
		composer.CancelEdit()
	}
	c.changed()
}

// Send posts text to the open conversation, or saves it as the new body of
// the message being edited. The stored row is merged right away; the realtime
// echo of the same row is then a no-op.
func (c *Controller) Send(ctx context.Context, text, attachment string) error {
	c.mu.Lock()
	if c.thread == nil {
		c.mu.Unlock()
		return ErrNoConversation
	}
	if c.sending {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	partner := c.thread.Partner()
	composer := c.composer
	c.sending = true
	c.mu.Unlock()
	c.changed()

	var (
		m      Message
		err    error
		edited bool
	)
	if id := composer.Editing(); id != "" {
		m, err = composer.Edit(ctx, id, text, attachment)
		edited = true
	} else {
		m, err = composer.Send(ctx, text, attachment, partner.ID)
	}
	var rerr error
	if err == nil && !edited {
		rerr = c.resolve(ctx, m)
	}

	c.mu.Lock()
	c.sending = false
	if err == nil {
		c.upsertLocked(m)
		switch {
		case edited:
			c.store.ApplyUpdate(m)
		case rerr != nil:
			log.Warningf("conversation list not updated: %v", rerr)
		default:
			if ierr := c.insertLocked(ctx, m); ierr != nil {
				log.Warningf("conversation list not updated: %v", ierr)
			}
		}
	} else if IsRemote(err) {
		c.setNoticeLocked(err)
	}
	c.mu.Unlock()
	c.changed()
	return err
}

// BeginEdit puts the composer in editing mode for id and returns the message
// so its text and attachment can be loaded into the input.
func (c *Controller) BeginEdit(id string) (Message, error) {
	c.mu.Lock()
	if c.thread == nil {
		c.mu.Unlock()
		return Message{}, ErrNoConversation
	}
	m, ok := c.thread.Get(id)
	composer := c.composer
	c.mu.Unlock()
	if !ok {
		return Message{}, ErrUnknownMessage
	}
	if err := composer.BeginEdit(m); err != nil {
		return Message{}, err
	}
	c.changed()
	return m, nil
}

// CancelEdit leaves editing mode without saving.
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	composer := c.composer
	c.mu.Unlock()
	if composer != nil {
		composer.CancelEdit()
		c.changed()
	}
}

// Delete removes one of the user's messages from the open conversation after
// Options.Confirm agrees. It reports whether the message was deleted.
func (c *Controller) Delete(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	if c.thread == nil {
		c.mu.Unlock()
		return false, ErrNoConversation
	}
	m, ok := c.thread.Get(id)
	self := c.self
	c.mu.Unlock()
	if !ok {
		return false, ErrUnknownMessage
	}
	if m.FromID != self.ID {
		return false, ErrNotAuthor
	}
	if c.opts.Confirm == nil || !c.opts.Confirm(m) {
		return false, nil
	}

	if err := c.b.DeleteMessage(ctx, id); err != nil {
		err = remote("delete message", err)
		c.fail(err)
		return false, err
	}
	c.removed(ctx, id)
	return true, nil
}

// removed drops id from the view and repairs a preview it leaves stale.
func (c *Controller) removed(ctx context.Context, id string) {
	c.mu.Lock()
	if c.thread != nil {
		c.thread.Remove(id)
	}
	if c.pending != nil {
		c.pending.Remove(id)
	}
	partner, stale := c.store.ApplyDelete(id)
	c.mu.Unlock()

	if stale {
		history, err := c.b.History(ctx, partner)
		if err != nil {
			log.Warningf("keeping stale preview for %s: %v", partner, err)
		} else {
			c.mu.Lock()
			c.store.Repair(partner, history)
			c.mu.Unlock()
		}
	}
	c.changed()
}

// Search updates the partner search query.
func (c *Controller) Search(query string) {
	c.mu.Lock()
	search := c.search
	c.mu.Unlock()
	if search != nil {
		search.Type(query)
	}
}

// SearchResults returns the latest partner search results.
func (c *Controller) SearchResults() []Profile {
	c.mu.Lock()
	search := c.search
	c.mu.Unlock()
	if search == nil {
		return nil
	}
	return search.Results()
}

func (c *Controller) handle(ev Event) {
	c.mu.Lock()
	ctx, ready := c.ctx, c.state == StateReady
	c.mu.Unlock()
	if !ready {
		return
	}

	switch ev := ev.(type) {
	case MessageCreated:
		rerr := c.resolve(ctx, ev.Message)
		c.mu.Lock()
		if c.state != StateReady {
			c.mu.Unlock()
			return
		}
		c.upsertLocked(ev.Message)
		if rerr == nil {
			rerr = c.insertLocked(ctx, ev.Message)
		}
		if rerr != nil {
			c.setNoticeLocked(rerr)
		}
		c.mu.Unlock()

	case MessageModified:
		c.mu.Lock()
		if c.state != StateReady {
			c.mu.Unlock()
			return
		}
		c.upsertLocked(ev.Message)
		c.store.ApplyUpdate(ev.Message)
		c.mu.Unlock()

	case MessageRemoved:
		c.removed(ctx, ev.Message.ID)
		return

	case NotificationsChanged:
		c.refreshUnread(ctx)
		return

	default:
		return
	}
	c.changed()
}

// resolve caches the profile of m's partner when the conversation list has
// not seen it yet. The directory is queried without the lock held.
func (c *Controller) resolve(ctx context.Context, m Message) error {
	c.mu.Lock()
	var id string
	if c.store != nil {
		id = c.store.Unresolved(m)
	}
	c.mu.Unlock()
	if id == "" {
		return nil
	}

	profiles, err := c.b.Profiles(ctx, []string{id})
	if err != nil {
		return remote("load profiles", err)
	}
	c.mu.Lock()
	for _, p := range profiles {
		c.store.Remember(p)
	}
	c.mu.Unlock()
	return nil
}

// insertLocked merges m into the conversation list. A partner resolve did
// not find is skipped instead of looked up under the lock.
func (c *Controller) insertLocked(ctx context.Context, m Message) error {
	if id := c.store.Unresolved(m); id != "" {
		log.Debugf("ignoring message %s from unknown profile %s", m.ID, id)
		return nil
	}
	_, err := c.store.ApplyInsert(ctx, m)
	return err
}

// upsertLocked merges m into the open thread and the one being loaded.
func (c *Controller) upsertLocked(m Message) {
	if c.thread != nil {
		c.thread.Upsert(m)
	}
	if c.pending != nil {
		c.pending.Upsert(m)
	}
}

func (c *Controller) refreshUnread(ctx context.Context) {
	notes, err := c.b.UnreadNotifications(ctx)
	if err != nil {
		c.fail(remote("load notifications", err))
		return
	}
	c.mu.Lock()
	c.unread = notes
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) feedLost(_ string, err error) {
	c.fail(err)
}

func (c *Controller) warn(err error) {
	c.mu.Lock()
	c.setNoticeLocked(err)
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) searchDone(_ []Profile, err error) {
	if err != nil {
		c.warn(err)
		return
	}
	c.changed()
}

// fail records err: auth failures end the session, anything else becomes the
// notice. State already loaded is kept.
func (c *Controller) fail(err error) {
	c.mu.Lock()
	if errors.Is(err, ErrAuthRequired) {
		c.state = StateUnauthenticated
		c.thread, c.pending = nil, nil
	} else {
		c.setNoticeLocked(err)
	}
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) setNoticeLocked(err error) {
	if errors.Is(err, ErrAuthRequired) {
		c.state = StateUnauthenticated
		c.thread, c.pending = nil, nil
		return
	}
	c.notice = err
}

func (c *Controller) notReady() error {
	if c.state == StateUnauthenticated {
		return ErrAuthRequired
	}
	return ErrNotReady
}

func (c *Controller) changed() {
	if c.opts.OnChange != nil {
		c.opts.OnChange()
	}
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Self returns the signed-in user.
func (c *Controller) Self() Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self
}

// Conversations returns the partner list, most recent first.
func (c *Controller) Conversations() []Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return nil
	}
	return c.store.Conversations()
}

// Thread returns the open partner and its messages, oldest first.
func (c *Controller) Thread() (Profile, []Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.thread == nil {
		return Profile{}, nil, false
	}
	return c.thread.Partner(), c.thread.Messages(), true
}

// Unread returns the outstanding notifications.
func (c *Controller) Unread() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.unread...)
}

// UnreadCount is len(Unread()).
func (c *Controller) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.unread)
}

// Sending reports whether a send or edit is in flight.
func (c *Controller) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// Editing returns the id of the message being edited, or "".
func (c *Controller) Editing() string {
	c.mu.Lock()
	composer := c.composer
	c.mu.Unlock()
	if composer == nil {
		return ""
	}
	return composer.Editing()
}

// Notice returns the last failure worth showing, if any.
func (c *Controller) Notice() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notice
}

// DismissNotice clears the notice.
func (c *Controller) DismissNotice() {
	c.mu.Lock()
	c.notice = nil
	c.mu.Unlock()
	c.changed()
}
