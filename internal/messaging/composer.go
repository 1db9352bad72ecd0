package messaging

import (
	"context"
	"strings"
	"sync"
	"time"
)

const notifyTimeout = 10 * time.Second

// Composer sends new messages and edits existing ones for the signed-in user.
type Composer struct {
	rows Rows
	self Profile
	warn func(error)

	mu      sync.Mutex
	editing string
	err     error
	notes   sync.WaitGroup
}

// NewComposer returns a composer writing as self. warn receives failures of
// the background notification insert and may be nil.
func NewComposer(rows Rows, self Profile, warn func(error)) *Composer {
	return &Composer{rows: rows, self: self, warn: warn}
}

// Send inserts a new message to toID. A blank text fails with ErrEmptyMessage
// before any request is made. On success a notification for the recipient is
// created in the background.
func (c *Composer) Send(ctx context.Context, text, attachment, toID string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}

	m, err := c.rows.InsertMessage(ctx, toID, text, strings.TrimSpace(attachment))
	if err != nil {
		return Message{}, c.setErr(remote("send message", err))
	}
	c.setErr(nil)
	c.notify(ctx, toID)
	return m, nil
}

// BeginEdit switches to editing m. Only the author may edit.
func (c *Composer) BeginEdit(m Message) error {
	if m.FromID != c.self.ID {
		return ErrNotAuthor
	}
	c.mu.Lock()
	c.editing = m.ID
	c.mu.Unlock()
	return nil
}

// CancelEdit leaves editing mode.
func (c *Composer) CancelEdit() {
	c.mu.Lock()
	c.editing = ""
	c.mu.Unlock()
}

// Editing returns the id of the message being edited, or "".
func (c *Composer) Editing() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editing
}

// Edit replaces the text and attachment of the message being edited. It
// fails with ErrNotAuthor unless BeginEdit accepted id.
func (c *Composer) Edit(ctx context.Context, id, text, attachment string) (Message, error) {
	if id == "" || c.Editing() != id {
		return Message{}, ErrNotAuthor
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}

	m, err := c.rows.UpdateMessage(ctx, id, text, strings.TrimSpace(attachment))
	if err != nil {
		return Message{}, c.setErr(remote("edit message", err))
	}
	c.mu.Lock()
	c.err = nil
	if c.editing == id {
		c.editing = ""
	}
	c.mu.Unlock()
	return m, nil
}

// Err returns the last remote failure, cleared by the next success.
// Validation failures never set it.
func (c *Composer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Composer) setErr(err error) error {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	return err
}

// Wait blocks until background notification inserts have finished.
func (c *Composer) Wait() { c.notes.Wait() }

func (c *Composer) notify(ctx context.Context, toID string) {
	n := Notification{
		UserID:   toID,
		Type:     NotificationMessage,
		Payload:  "New message from " + c.self.DisplayName(),
		SourceID: c.self.ID,
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)

	c.notes.Add(1)
	go func() {
		defer c.notes.Done()
		defer cancel()
		if _, err := c.rows.InsertNotification(ctx, n); err != nil {
			log.Warningf("notification for %s not created: %v", toID, err)
			if c.warn != nil {
				c.warn(remote("create notification", err))
			}
		}
	}()
}
