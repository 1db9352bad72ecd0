package v1

import (
	"encoding/json"
	"time"
)

// Table names accepted by Subscribe.
const (
	TableMessages      = "messages"
	TableNotifications = "notifications"
)

// Change operations carried in ChangeEvent.Op.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

func (r *RegisterRequest) GetEmail() string {
	if r == nil {
		return ""
	}
	return r.Email
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) GetEmail() string {
	if r == nil {
		return ""
	}
	return r.Email
}

// AuthResponse is returned by Register and Login.
type AuthResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type MeRequest struct{}

type Profile struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type ProfileList struct {
	Profiles []*Profile `json:"profiles"`
}

type GetProfilesRequest struct {
	IDs []string `json:"ids"`
}

type SearchProfilesRequest struct {
	Query string `json:"query"`
	Limit int32  `json:"limit,omitempty"`
}

// Message mirrors a row of the messages table.
type Message struct {
	ID         string    `json:"id"`
	FromID     string    `json:"from_id"`
	ToID       string    `json:"to_id"`
	Content    string    `json:"content"`
	Attachment string    `json:"attachment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ListMessagesRequest selects every message involving UserID. UserID may be
// left empty; when set it must match the authenticated caller.
type ListMessagesRequest struct {
	UserID string `json:"user_id,omitempty"`
	Limit  int32  `json:"limit,omitempty"`
}

type GetHistoryRequest struct {
	WithID string `json:"with_id"`
	Limit  int32  `json:"limit,omitempty"`
}

type ListChatsRequest struct {
	Limit int32 `json:"limit,omitempty"`
}

type ListChatsResponse struct {
	PartnerID     string    `json:"partner_id"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
}

type SendMessageRequest struct {
	ToID       string `json:"to_id"`
	Content    string `json:"content"`
	Attachment string `json:"attachment,omitempty"`
}

type EditMessageRequest struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	Attachment string `json:"attachment,omitempty"`
}

type DeleteMessageRequest struct {
	ID string `json:"id"`
}

type DeleteMessageResponse struct {
	ID string `json:"id"`
}

// Notification mirrors a row of the notifications table.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Payload   string    `json:"payload"`
	SourceID  string    `json:"source_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type NotificationList struct {
	Notifications []*Notification `json:"notifications"`
}

type CreateNotificationRequest struct {
	UserID   string `json:"user_id"`
	Type     string `json:"type"`
	Payload  string `json:"payload"`
	SourceID string `json:"source_id,omitempty"`
}

type ListNotificationsRequest struct {
	UnreadOnly bool  `json:"unread_only"`
	Limit      int32 `json:"limit,omitempty"`
}

type MarkNotificationsReadRequest struct {
	Type     string `json:"type,omitempty"`
	SourceID string `json:"source_id,omitempty"`
}

type MarkNotificationsReadResponse struct {
	Updated int32 `json:"updated"`
}

// Post is a feed entry (blog or work item).
type Post struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	Slug       string    `json:"slug"`
	Content    string    `json:"content"`
	Type       string    `json:"type"`
	Visibility string    `json:"visibility"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type PostList struct {
	Posts []*Post `json:"posts"`
}

type CreatePostRequest struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Type       string `json:"type"`
	Visibility string `json:"visibility"`
}

// ListPostsRequest pages through public posts; Page is 1-based.
type ListPostsRequest struct {
	Page     int32  `json:"page"`
	PageSize int32  `json:"page_size,omitempty"`
	Type     string `json:"type,omitempty"`
}

// GetPostRequest selects a post by ID or, when ID is empty, by Slug.
type GetPostRequest struct {
	ID   string `json:"id,omitempty"`
	Slug string `json:"slug,omitempty"`
}

type UpdatePostRequest struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Visibility string `json:"visibility"`
}

type DeletePostRequest struct {
	ID string `json:"id"`
}

type DeletePostResponse struct {
	ID           string `json:"id"`
	NotesDeleted int32  `json:"notes_deleted"`
}

// Note is a comment on a post. ParentID is set on replies.
type Note struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NoteList struct {
	Notes []*Note `json:"notes"`
}

type CreateNoteRequest struct {
	PostID   string `json:"post_id"`
	ParentID string `json:"parent_id,omitempty"`
	Content  string `json:"content"`
}

type ListNotesRequest struct {
	PostID string `json:"post_id"`
}

type UpdateNoteRequest struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type DeleteNoteRequest struct {
	ID string `json:"id"`
}

// DeleteNoteResponse counts the note and the replies removed with it.
type DeleteNoteResponse struct {
	Deleted int32 `json:"deleted"`
}

type SubscribeRequest struct {
	Table string `json:"table"`
}

// ChangeEvent is a single realtime row change. Previous and Current hold the
// row encoded as the matching message type (Message or Notification).
type ChangeEvent struct {
	Table      string          `json:"table"`
	Op         string          `json:"op"`
	Previous   json.RawMessage `json:"previous,omitempty"`
	Current    json.RawMessage `json:"current,omitempty"`
	CommitTime time.Time       `json:"commit_time"`
}
