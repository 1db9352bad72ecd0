package main

import (
	"errors"

	"github.com/PaulBabatuyi/convosync/internal/data"
	v1 "github.com/PaulBabatuyi/convosync/proto/chat/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func toProfile(p *data.Profile) *v1.Profile {
	return &v1.Profile{ID: p.ID.Hex(), FullName: p.FullName, Email: p.Email}
}

func toProfiles(ps []*data.Profile) *v1.ProfileList {
	out := &v1.ProfileList{Profiles: make([]*v1.Profile, 0, len(ps))}
	for _, p := range ps {
		out.Profiles = append(out.Profiles, toProfile(p))
	}
	return out
}

func toMessage(m *data.Message) *v1.Message {
	return &v1.Message{
		ID:         m.ID.Hex(),
		FromID:     m.FromID,
		ToID:       m.ToID,
		Content:    m.Content,
		Attachment: m.Attachment,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func toNotification(n *data.Notification) *v1.Notification {
	return &v1.Notification{
		ID:        n.ID.Hex(),
		UserID:    n.UserID,
		Type:      n.Type,
		Payload:   n.Payload,
		SourceID:  n.SourceID,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

func toPost(p *data.Post) *v1.Post {
	return &v1.Post{
		ID:         p.ID.Hex(),
		UserID:     p.UserID,
		Title:      p.Title,
		Slug:       p.Slug,
		Content:    p.Content,
		Type:       p.Type,
		Visibility: p.Visibility,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func toNote(n *data.Note) *v1.Note {
	return &v1.Note{
		ID:        n.ID.Hex(),
		PostID:    n.PostID,
		UserID:    n.UserID,
		ParentID:  n.ParentID,
		Content:   n.Content,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

// storeError maps store sentinels to gRPC status; anything else is Internal
// with the detail logged rather than returned.
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, data.ErrNotFound):
		return status.Errorf(codes.NotFound, "%s: not found", op)
	case errors.Is(err, data.ErrInvalidID):
		return status.Errorf(codes.InvalidArgument, "%s: invalid id", op)
	case errors.Is(err, data.ErrDuplicate):
		return status.Errorf(codes.AlreadyExists, "%s: already exists", op)
	}
	log.Errorf("%s failed: %v", op, err)
	return status.Errorf(codes.Internal, "failed to %s", op)
}

// clampLimit returns def when n <= 0 and ceiling when n > ceiling.
func clampLimit(n int32, def, ceiling int64) int64 {
	l := int64(n)
	if l <= 0 {
		return def
	}
	if l > ceiling {
		return ceiling
	}
	return l
}
