package client

import (
	"context"

	"github.com/PaulBabatuyi/convosync/internal/feed"
	"github.com/PaulBabatuyi/convosync/internal/messaging"
	v1 "github.com/PaulBabatuyi/convosync/proto/chat/v1"
)

func fromProfile(p *v1.Profile) messaging.Profile {
	return messaging.Profile{ID: p.ID, FullName: p.FullName, Email: p.Email}
}

func fromMessage(m *v1.Message) messaging.Message {
	return messaging.Message{
		ID:         m.ID,
		FromID:     m.FromID,
		ToID:       m.ToID,
		Content:    m.Content,
		Attachment: m.Attachment,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func fromMessages(ms []*v1.Message) []messaging.Message {
	out := make([]messaging.Message, 0, len(ms))
	for _, m := range ms {
		out = append(out, fromMessage(m))
	}
	return out
}

func fromNotification(n *v1.Notification) messaging.Notification {
	return messaging.Notification{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Payload:   n.Payload,
		SourceID:  n.SourceID,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

// CurrentUser returns the signed-in profile.
func (c *Client) CurrentUser(ctx context.Context) (messaging.Profile, error) {
	if c.Token() == "" {
		return messaging.Profile{}, messaging.ErrAuthRequired
	}
	p, err := c.api.Me(ctx, &v1.MeRequest{})
	if err != nil {
		return messaging.Profile{}, mapErr(err)
	}
	return fromProfile(p), nil
}

// Profiles looks up profiles by id.
func (c *Client) Profiles(ctx context.Context, ids []string) ([]messaging.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	resp, err := c.api.GetProfiles(ctx, &v1.GetProfilesRequest{IDs: ids})
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]messaging.Profile, 0, len(resp.Profiles))
	for _, p := range resp.Profiles {
		out = append(out, fromProfile(p))
	}
	return out, nil
}

// SearchProfiles matches query against names and emails. The server already
// leaves out the caller; excludeID is filtered here as well.
func (c *Client) SearchProfiles(ctx context.Context, query, excludeID string, limit int) ([]messaging.Profile, error) {
	resp, err := c.api.SearchProfiles(ctx, &v1.SearchProfilesRequest{Query: query, Limit: int32(limit)})
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]messaging.Profile, 0, len(resp.Profiles))
	for _, p := range resp.Profiles {
		if p.ID == excludeID {
			continue
		}
		out = append(out, fromProfile(p))
	}
	return out, nil
}

// MessagesFor returns every message involving userID, newest first.
func (c *Client) MessagesFor(ctx context.Context, userID string) ([]messaging.Message, error) {
	stream, err := c.api.ListMessages(ctx, &v1.ListMessagesRequest{UserID: userID})
	if err != nil {
		return nil, mapErr(err)
	}
	ms, err := collect(stream)
	if err != nil {
		return nil, err
	}
	return fromMessages(ms), nil
}

// History returns the conversation with partnerID, oldest first.
func (c *Client) History(ctx context.Context, partnerID string) ([]messaging.Message, error) {
	stream, err := c.api.GetHistory(ctx, &v1.GetHistoryRequest{WithID: partnerID, Limit: historyLimit})
	if err != nil {
		return nil, mapErr(err)
	}
	ms, err := collect(stream)
	if err != nil {
		return nil, err
	}
	return fromMessages(ms), nil
}

// InsertMessage sends a message and returns the stored row.
func (c *Client) InsertMessage(ctx context.Context, toID, content, attachment string) (messaging.Message, error) {
	m, err := c.api.SendMessage(ctx, &v1.SendMessageRequest{ToID: toID, Content: content, Attachment: attachment})
	if err != nil {
		return messaging.Message{}, mapErr(err)
	}
	return fromMessage(m), nil
}

// UpdateMessage edits one of the caller's messages.
func (c *Client) UpdateMessage(ctx context.Context, id, content, attachment string) (messaging.Message, error) {
	m, err := c.api.EditMessage(ctx, &v1.EditMessageRequest{ID: id, Content: content, Attachment: attachment})
	if err != nil {
		return messaging.Message{}, mapErr(err)
	}
	return fromMessage(m), nil
}

// DeleteMessage removes one of the caller's messages.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	_, err := c.api.DeleteMessage(ctx, &v1.DeleteMessageRequest{ID: id})
	return mapErr(err)
}

// InsertNotification creates a notification for n.UserID.
func (c *Client) InsertNotification(ctx context.Context, n messaging.Notification) (messaging.Notification, error) {
	out, err := c.api.CreateNotification(ctx, &v1.CreateNotificationRequest{
		UserID:   n.UserID,
		Type:     n.Type,
		Payload:  n.Payload,
		SourceID: n.SourceID,
	})
	if err != nil {
		return messaging.Notification{}, mapErr(err)
	}
	return fromNotification(out), nil
}

// UnreadNotifications returns the caller's unread notifications.
func (c *Client) UnreadNotifications(ctx context.Context) ([]messaging.Notification, error) {
	resp, err := c.api.ListNotifications(ctx, &v1.ListNotificationsRequest{UnreadOnly: true})
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]messaging.Notification, 0, len(resp.Notifications))
	for _, n := range resp.Notifications {
		out = append(out, fromNotification(n))
	}
	return out, nil
}

// MarkRead flips the caller's unread notifications of kind from sourceID.
func (c *Client) MarkRead(ctx context.Context, kind, sourceID string) (int, error) {
	resp, err := c.api.MarkNotificationsRead(ctx, &v1.MarkNotificationsReadRequest{Type: kind, SourceID: sourceID})
	if err != nil {
		return 0, mapErr(err)
	}
	return int(resp.Updated), nil
}

// ListPosts returns one page of the public feed.
func (c *Client) ListPosts(ctx context.Context, page, size int, kind string) ([]feed.Post, error) {
	resp, err := c.api.ListPosts(ctx, &v1.ListPostsRequest{Page: int32(page), PageSize: int32(size), Type: kind})
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]feed.Post, 0, len(resp.Posts))
	for _, p := range resp.Posts {
		out = append(out, toFeedPost(p))
	}
	return out, nil
}

// CreatePost publishes a post as the caller.
func (c *Client) CreatePost(ctx context.Context, title, content, kind, visibility string) (feed.Post, error) {
	p, err := c.api.CreatePost(ctx, &v1.CreatePostRequest{Title: title, Content: content, Type: kind, Visibility: visibility})
	if err != nil {
		return feed.Post{}, mapErr(err)
	}
	return toFeedPost(p), nil
}

// GetPost loads a post by slug.
func (c *Client) GetPost(ctx context.Context, slug string) (feed.Post, error) {
	p, err := c.api.GetPost(ctx, &v1.GetPostRequest{Slug: slug})
	if err != nil {
		return feed.Post{}, mapErr(err)
	}
	return toFeedPost(p), nil
}

// UpdatePost rewrites one of the caller's posts.
func (c *Client) UpdatePost(ctx context.Context, id, title, content, visibility string) (feed.Post, error) {
	p, err := c.api.UpdatePost(ctx, &v1.UpdatePostRequest{ID: id, Title: title, Content: content, Visibility: visibility})
	if err != nil {
		return feed.Post{}, mapErr(err)
	}
	return toFeedPost(p), nil
}

// DeletePost removes one of the caller's posts with its notes.
func (c *Client) DeletePost(ctx context.Context, id string) error {
	_, err := c.api.DeletePost(ctx, &v1.DeletePostRequest{ID: id})
	return mapErr(err)
}

// Notes returns the notes on a post, oldest first.
func (c *Client) Notes(ctx context.Context, postID string) ([]feed.Note, error) {
	resp, err := c.api.ListNotes(ctx, &v1.ListNotesRequest{PostID: postID})
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]feed.Note, 0, len(resp.Notes))
	for _, n := range resp.Notes {
		out = append(out, toFeedNote(n))
	}
	return out, nil
}

// AddNote comments on a post, or replies to parentID when set.
func (c *Client) AddNote(ctx context.Context, postID, parentID, content string) (feed.Note, error) {
	n, err := c.api.CreateNote(ctx, &v1.CreateNoteRequest{PostID: postID, ParentID: parentID, Content: content})
	if err != nil {
		return feed.Note{}, mapErr(err)
	}
	return toFeedNote(n), nil
}

// EditNote replaces the content of one of the caller's notes.
func (c *Client) EditNote(ctx context.Context, id, content string) (feed.Note, error) {
	n, err := c.api.UpdateNote(ctx, &v1.UpdateNoteRequest{ID: id, Content: content})
	if err != nil {
		return feed.Note{}, mapErr(err)
	}
	return toFeedNote(n), nil
}

// DeleteNote removes one of the caller's notes and its replies. It returns
// how many rows went.
func (c *Client) DeleteNote(ctx context.Context, id string) (int, error) {
	resp, err := c.api.DeleteNote(ctx, &v1.DeleteNoteRequest{ID: id})
	if err != nil {
		return 0, mapErr(err)
	}
	return int(resp.Deleted), nil
}

func toFeedNote(n *v1.Note) feed.Note {
	return feed.Note{
		ID:        n.ID,
		PostID:    n.PostID,
		UserID:    n.UserID,
		ParentID:  n.ParentID,
		Content:   n.Content,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func toFeedPost(p *v1.Post) feed.Post {
	return feed.Post{
		ID:         p.ID,
		UserID:     p.UserID,
		Title:      p.Title,
		Slug:       p.Slug,
		Content:    p.Content,
		Type:       p.Type,
		Visibility: p.Visibility,
		CreatedAt:  p.CreatedAt,
	}
}
