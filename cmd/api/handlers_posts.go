package main

import (
	"context"

	"github.com/PaulBabatuyi/convosync/internal/data"
	v1 "github.com/PaulBabatuyi/convosync/proto/chat/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const maxPageSize = 50

// CreatePost stores a post authored by the caller.
func (s *Server) CreatePost(ctx context.Context, req *v1.CreatePostRequest) (*v1.Post, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return nil, err
	}
	title := s.sanitize(req.Title)
	if title == "" {
		return nil, status.Errorf(codes.InvalidArgument, "title is required")
	}
	if err := checkVisibility(req.Visibility); err != nil {
		return nil, err
	}

	p, err := s.posts.CreatePost(ctx, claims.UserID, title, s.sanitize(req.Content), req.Type, req.Visibility)
	if err != nil {
		return nil, storeError("create post", err)
	}
	return toPost(p), nil
}

// ListPosts returns one page of the public explore feed.
func (s *Server) ListPosts(ctx context.Context, req *v1.ListPostsRequest) (*v1.PostList, error) {
	page := int64(req.Page)
	if page < 1 {
		page = 1
	}
	ps, err := s.posts.ListPublicPosts(ctx, page, clampLimit(req.PageSize, data.DefaultPageSize, maxPageSize), req.Type)
	if err != nil {
		return nil, storeError("list posts", err)
	}
	out := &v1.PostList{Posts: make([]*v1.Post, 0, len(ps))}
	for _, p := range ps {
		out.Posts = append(out.Posts, toPost(p))
	}
	return out, nil
}

func checkVisibility(v string) error {
	switch v {
	case "", data.VisibilityPublic, data.VisibilityPrivate:
		return nil
	}
	return status.Errorf(codes.InvalidArgument, "visibility must be public or private")
}

// visiblePost loads a post the caller may read: public ones, or their own.
// Private posts of other users read as missing.
func (s *Server) visiblePost(ctx context.Context, userID, id, slug string) (*data.Post, error) {
	var (
		p   *data.Post
		err error
	)
	switch {
	case id != "":
		p, err = s.posts.GetPost(ctx, id)
	case slug != "":
		p, err = s.posts.GetPostBySlug(ctx, slug)
	default:
		return nil, status.Errorf(codes.InvalidArgument, "id or slug is required")
	}
	if err != nil {
		return nil, storeError("load post", err)
	}
	if p.Visibility != data.VisibilityPublic && p.UserID != userID {
		return nil, status.Errorf(codes.NotFound, "load post: not found")
	}
	return p, nil
}

// ownPost loads id and checks the caller wrote it.
func (s *Server) ownPost(ctx context.Context, userID, id string) (*data.Post, error) {
	if id == "" {
		return nil, status.Errorf(codes.InvalidArgument, "id is required")
	}
	p, err := s.posts.GetPost(ctx, id)
	if err != nil {
		return nil, storeError("load post", err)
	}
	if p.UserID != userID {
		return nil, status.Errorf(codes.PermissionDenied, "only the author can change this post")
	}
	return p, nil
}

// GetPost returns one post by id or slug.
func (s *Server) GetPost(ctx context.Context, req *v1.GetPostRequest) (*v1.Post, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.visiblePost(ctx, claims.UserID, req.ID, req.Slug)
	if err != nil {
		return nil, err
	}
	return toPost(p), nil
}

// UpdatePost rewrites the caller's own post. An empty visibility keeps the
// current one.
func (s *Server) UpdatePost(ctx context.Context, req *v1.UpdatePostRequest) (*v1.Post, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return nil, err
	}
	title := s.sanitize(req.Title)
	if title == "" {
		return nil, status.Errorf(codes.InvalidArgument, "title is required")
	}
	if err := checkVisibility(req.Visibility); err != nil {
		return nil, err
	}
	p, err := s.ownPost(ctx, claims.UserID, req.ID)
	if err != nil {
		return nil, err
	}
	visibility := req.Visibility
	if visibility == "" {
		visibility = p.Visibility
	}

	updated, err := s.posts.UpdatePost(ctx, req.ID, title, s.sanitize(req.Content), visibility)
	if err != nil {
		return nil, storeError("update post", err)
	}
	return toPost(updated), nil
}

// DeletePost removes the caller's own post and every note on it.
func (s *Server) DeletePost(ctx context.Context, req *v1.DeletePostRequest) (*v1.DeletePostResponse, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownPost(ctx, claims.UserID, req.ID); err != nil {
		return nil, err
	}

	n, err := s.comments.DeleteNotesForPost(ctx, req.ID)
	if err != nil {
		return nil, storeError("delete post notes", err)
	}
	if _, err := s.posts.DeletePost(ctx, req.ID); err != nil {
		return nil, storeError("delete post", err)
	}
	return &v1.DeletePostResponse{ID: req.ID, NotesDeleted: int32(n)}, nil
}
