package messaging

import (
	"context"
	"encoding/json"
)

// Identity resolves the signed-in user. It returns ErrAuthRequired when there
// is no session.
type Identity interface {
	CurrentUser(ctx context.Context) (Profile, error)
}

// Directory looks up profiles. Unknown ids are left out of the result.
type Directory interface {
	Profiles(ctx context.Context, ids []string) ([]Profile, error)
	SearchProfiles(ctx context.Context, query, excludeID string, limit int) ([]Profile, error)
}

// Rows is the row-store surface the module writes through.
type Rows interface {
	// MessagesFor returns every message the user sent or received, newest first.
	MessagesFor(ctx context.Context, userID string) ([]Message, error)
	// History returns the messages exchanged with partnerID, oldest first.
	History(ctx context.Context, partnerID string) ([]Message, error)
	InsertMessage(ctx context.Context, toID, content, attachment string) (Message, error)
	UpdateMessage(ctx context.Context, id, content, attachment string) (Message, error)
	DeleteMessage(ctx context.Context, id string) error

	InsertNotification(ctx context.Context, n Notification) (Notification, error)
	UnreadNotifications(ctx context.Context) ([]Notification, error)
	// MarkRead flips read on the caller's unread notifications of kind from
	// sourceID and returns how many changed.
	MarkRead(ctx context.Context, kind, sourceID string) (int, error)
}

// RawEvent is a change as delivered by the transport, before validation.
type RawEvent struct {
	Table    string          `json:"table"`
	Op       string          `json:"op"`
	Previous json.RawMessage `json:"previous,omitempty"`
	Current  json.RawMessage `json:"current,omitempty"`
}

// Subscription is a live change feed. Events is closed when the feed ends;
// Err then reports why (nil after Close).
type Subscription interface {
	Events() <-chan RawEvent
	Err() error
	Close() error
}

// Feed opens change feeds scoped to the signed-in user.
type Feed interface {
	Subscribe(ctx context.Context, table string) (Subscription, error)
}

// Backend is everything the controller needs from the outside world.
type Backend interface {
	Identity
	Directory
	Rows
	Feed
}
