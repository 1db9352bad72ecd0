// Package messaging keeps a signed-in user's conversation list and open
// thread in sync with the backend: initial load, realtime change events,
// composing and editing messages, and debounced partner search.
package messaging

import (
	"strings"
	"time"
)

// Feed tables and change operations as they arrive from the backend.
const (
	TableMessages      = "messages"
	TableNotifications = "notifications"

	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// NotificationMessage tags notifications created for a new message.
const NotificationMessage = "message"

// Profile is a user as seen by the directory.
type Profile struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// DisplayName is the full name, or the email when no name is set.
func (p Profile) DisplayName() string {
	if strings.TrimSpace(p.FullName) != "" {
		return p.FullName
	}
	return p.Email
}

// Message is one direct message row.
type Message struct {
	ID         string    `json:"id"`
	FromID     string    `json:"from_id"`
	ToID       string    `json:"to_id"`
	Content    string    `json:"content"`
	Attachment string    `json:"attachment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Involves reports whether userID sent or received m.
func (m Message) Involves(userID string) bool {
	return m.FromID == userID || m.ToID == userID
}

// Partner returns the other party of m from selfID's point of view.
func (m Message) Partner(selfID string) string {
	if m.FromID == selfID {
		return m.ToID
	}
	return m.FromID
}

func (m Message) same(o Message) bool {
	return m.ID == o.ID && m.FromID == o.FromID && m.ToID == o.ToID &&
		m.Content == o.Content && m.Attachment == o.Attachment &&
		m.CreatedAt.Equal(o.CreatedAt) && m.UpdatedAt.Equal(o.UpdatedAt)
}

// before orders messages by created_at, then id.
func before(a, b Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Notification is one row of the notifications table.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Payload   string    `json:"payload"`
	SourceID  string    `json:"source_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is a partner with the most recent message exchanged.
// Stale is set when that message was deleted and no replacement is known yet.
type Conversation struct {
	Partner Profile
	Last    Message
	Stale   bool
}

// Preview renders the last message the way the conversation list shows it.
func (c Conversation) Preview(selfID string) string {
	text := c.Last.Content
	if text == "" {
		text = "Attachment"
	}
	if c.Last.FromID == selfID {
		return "You: " + text
	}
	return text
}
