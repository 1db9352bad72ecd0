package main

import (
	"context"

	"github.com/PaulBabatuyi/convosync/internal/data"
	v1 "github.com/PaulBabatuyi/convosync/proto/chat/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ownNote loads id and checks the caller wrote it.
func (s *Server) ownNote(ctx context.Context, userID, id string) (*data.Note, error) {
	if id == "" {
		return nil, status.Errorf(codes.InvalidArgument, "id is required")
	}
	n, err := s.comments.GetNote(ctx, id)
	if err != nil {
		return nil, storeError("load note", err)
	}
	if n.UserID != userID {
		return nil, status.Errorf(codes.PermissionDenied, "only the author can change this note")
	}
	return n, nil
}

// CreateNote comments on a post the caller can read. With ParentID set it is
// a reply and the parent must sit on the same post.
func (s *Server) CreateNote(ctx context.Context, req *v1.CreateNoteRequest) (*v1.Note, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return nil, err
	}
	content := s.sanitize(req.Content)
	if content == "" {
		return nil, status.Errorf(codes.InvalidArgument, "note content is empty")
	}
	if req.PostID == "" {
		return nil, status.Errorf(codes.InvalidArgument, "post_id is required")
	}
	post, err := s.visiblePost(ctx, claims.UserID, req.PostID, "")
	if err != nil {
		return nil, err
	}
	if req.ParentID != "" {
		parent, err := s.comments.GetNote(ctx, req.ParentID)
		if err != nil {
			return nil, storeError("load parent note", err)
		}
		if parent.PostID != post.ID.Hex() {
			return nil, status.Errorf(codes.InvalidArgument, "parent note belongs to another post")
		}
	}

	n, err := s.comments.CreateNote(ctx, post.ID.Hex(), claims.UserID, req.ParentID, content)
	if err != nil {
		return nil, storeError("create note", err)
	}
	return toNote(n), nil
}

// ListNotes returns every note on a post, oldest first.
func (s *Server) ListNotes(ctx context.Context, req *v1.ListNotesRequest) (*v1.NoteList, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return nil, err
	}
	if req.PostID == "" {
		return nil, status.Errorf(codes.InvalidArgument, "post_id is required")
	}
	post, err := s.visiblePost(ctx, claims.UserID, req.PostID, "")
	if err != nil {
		return nil, err
	}

	ns, err := s.comments.ListNotes(ctx, post.ID.Hex())
	if err != nil {
		return nil, storeError("list notes", err)
	}
	out := &v1.NoteList{Notes: make([]*v1.Note, 0, len(ns))}
	for _, n := range ns {
		out.Notes = append(out.Notes, toNote(n))
	}
	return out, nil
}

// UpdateNote replaces the content of the caller's own note.
func (s *Server) UpdateNote(ctx context.Context, req *v1.UpdateNoteRequest) (*v1.Note, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return nil, err
	}
	content := s.sanitize(req.Content)
	if content == "" {
		return nil, status.Errorf(codes.InvalidArgument, "note content is empty")
	}
	if _, err := s.ownNote(ctx, claims.UserID, req.ID); err != nil {
		return nil, err
	}

	n, err := s.comments.UpdateNote(ctx, req.ID, content)
	if err != nil {
		return nil, storeError("update note", err)
	}
	return toNote(n), nil
}

// DeleteNote removes the caller's own note and the replies under it.
func (s *Server) DeleteNote(ctx context.Context, req *v1.DeleteNoteRequest) (*v1.DeleteNoteResponse, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownNote(ctx, claims.UserID, req.ID); err != nil {
		return nil, err
	}

	n, err := s.comments.DeleteNote(ctx, req.ID)
	if err != nil {
		return nil, storeError("delete note", err)
	}
	return &v1.DeleteNoteResponse{Deleted: int32(n)}, nil
}
