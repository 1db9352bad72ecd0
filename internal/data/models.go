package data

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// ErrNotFound is returned when a lookup matches no document.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique index rejects an insert.
	ErrDuplicate = errors.New("already exists")
	// ErrInvalidID is returned for ids that are not ObjectID hex strings.
	ErrInvalidID = errors.New("invalid id")
)

// Profile maps to the profiles collection (id, name, email, password hash).
type Profile struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	FullName  string        `bson:"full_name"`
	Email     string        `bson:"email"`
	Password  string        `bson:"password"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

// Message maps to the messages collection. FromID and ToID hold profile ids
// as hex strings.
type Message struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	FromID     string        `bson:"from_id"`
	ToID       string        `bson:"to_id"`
	Content    string        `bson:"content"`
	Attachment string        `bson:"attachment,omitempty"`
	CreatedAt  time.Time     `bson:"created_at"`
	UpdatedAt  time.Time     `bson:"updated_at"`
}

// Notification maps to the notifications collection. SourceID names the
// profile whose action produced the notification (the sender for "message").
type Notification struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	UserID    string        `bson:"user_id"`
	Type      string        `bson:"type"`
	Payload   string        `bson:"payload"`
	SourceID  string        `bson:"source_id,omitempty"`
	Read      bool          `bson:"read"`
	CreatedAt time.Time     `bson:"created_at"`
}

// Post maps to the posts collection.
type Post struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	UserID     string        `bson:"user_id"`
	Title      string        `bson:"title"`
	Slug       string        `bson:"slug"`
	Content    string        `bson:"content"`
	Type       string        `bson:"type"`
	Visibility string        `bson:"visibility"`
	CreatedAt  time.Time     `bson:"created_at"`
	UpdatedAt  time.Time     `bson:"updated_at"`
}

// Note is a comment on a post. ParentID is empty for top-level comments and
// holds the replied-to note's hex id otherwise.
type Note struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	PostID     string        `bson:"post_id"`
	UserID     string        `bson:"user_id"`
	ParentID   string        `bson:"parent_id,omitempty"`
	Content    string        `bson:"content"`
	Visibility string        `bson:"visibility"`
	CreatedAt  time.Time     `bson:"created_at"`
	UpdatedAt  time.Time     `bson:"updated_at"`
}

// ChatPartner is one row of the recent-chats aggregation.
type ChatPartner struct {
	PartnerID       string
	LastMessage     string
	LastMessageTime time.Time
}

// ParseID converts a hex id into an ObjectID.
func ParseID(hex string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(hex)
	if err != nil {
		return bson.ObjectID{}, ErrInvalidID
	}
	return id, nil
}

// now returns the current time at the millisecond precision Mongo stores.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
