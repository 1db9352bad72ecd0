package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/PaulBabatuyi/convosync/internal/normalize"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Post visibilities and default page size for the explore feed.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
	DefaultPageSize   = 10
)

// PostsStore provides post database operations.
type PostsStore struct {
	coll *mongo.Collection
}

// NewPostsStore returns a PostsStore using given collection.
func NewPostsStore(coll *mongo.Collection) *PostsStore {
	return &PostsStore{coll: coll}
}

// CreatePost inserts a post. The slug is derived from the title; on a clash
// the id suffix keeps it unique.
func (s *PostsStore) CreatePost(ctx context.Context, userID, title, content, kind, visibility string) (*Post, error) {
	if visibility == "" {
		visibility = VisibilityPrivate
	}
	ts := now()
	p := &Post{
		ID:         bson.NewObjectID(),
		UserID:     userID,
		Title:      title,
		Slug:       normalize.Slug(title),
		Content:    content,
		Type:       kind,
		Visibility: visibility,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	if p.Slug == "" {
		p.Slug = p.ID.Hex()
	}

	_, err := s.coll.InsertOne(ctx, p)
	if mongo.IsDuplicateKeyError(err) {
		p.Slug = fmt.Sprintf("%s-%s", p.Slug, p.ID.Hex())
		_, err = s.coll.InsertOne(ctx, p)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPublicPosts returns page (1-based) of public posts newest first, i.e.
// rows [(page-1)*size, page*size-1]. kind filters by type when set.
func (s *PostsStore) ListPublicPosts(ctx context.Context, page, size int64, kind string) ([]*Post, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}

	filter := bson.M{"visibility": VisibilityPublic}
	if kind != "" {
		filter["type"] = kind
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip((page - 1) * size).
		SetLimit(size)

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var posts []*Post
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// GetPost loads one post by hex id.
func (s *PostsStore) GetPost(ctx context.Context, id string) (*Post, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

// GetPostBySlug loads the post with the given slug.
func (s *PostsStore) GetPostBySlug(ctx context.Context, slug string) (*Post, error) {
	return s.findOne(ctx, bson.M{"slug": slug})
}

func (s *PostsStore) findOne(ctx context.Context, filter bson.M) (*Post, error) {
	var p Post
	if err := s.coll.FindOne(ctx, filter).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// UpdatePost replaces title, content and visibility and bumps updated_at.
// The slug is kept so existing links stay valid.
func (s *PostsStore) UpdatePost(ctx context.Context, id, title, content, visibility string) (*Post, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	update := bson.M{"$set": bson.M{
		"title":      title,
		"content":    content,
		"visibility": visibility,
		"updated_at": now(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var p Post
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// DeletePost removes a post and returns the deleted row. Its notes are not
// touched; callers remove them with NotesStore.DeleteNotesForPost.
func (s *PostsStore) DeletePost(ctx context.Context, id string) (*Post, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	var p Post
	if err := s.coll.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
