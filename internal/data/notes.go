package data

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// NotesStore provides database operations for post comments.
type NotesStore struct {
	coll *mongo.Collection
}

// NewNotesStore returns a NotesStore using given collection.
func NewNotesStore(coll *mongo.Collection) *NotesStore {
	return &NotesStore{coll: coll}
}

// CreateNote inserts a public note on postID. parentID is empty for a
// top-level comment.
func (s *NotesStore) CreateNote(ctx context.Context, postID, userID, parentID, content string) (*Note, error) {
	ts := now()
	n := &Note{
		ID:         bson.NewObjectID(),
		PostID:     postID,
		UserID:     userID,
		ParentID:   parentID,
		Content:    content,
		Visibility: VisibilityPublic,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	if _, err := s.coll.InsertOne(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// GetNote loads one note by hex id.
func (s *NotesStore) GetNote(ctx context.Context, id string) (*Note, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	var n Note
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&n); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

// ListNotes returns the public notes on postID, oldest first. Replies are in
// the same list; callers build the tree from ParentID.
func (s *NotesStore) ListNotes(ctx context.Context, postID string) ([]*Note, error) {
	filter := bson.M{"post_id": postID, "visibility": VisibilityPublic}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var notes []*Note
	if err := cursor.All(ctx, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// UpdateNote replaces content and bumps updated_at.
func (s *NotesStore) UpdateNote(ctx context.Context, id, content string) (*Note, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	update := bson.M{"$set": bson.M{"content": content, "updated_at": now()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var n Note
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&n); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

// DeleteNote removes a note together with every reply below it and returns
// the number of rows deleted.
func (s *NotesStore) DeleteNote(ctx context.Context, id string) (int64, error) {
	oid, err := ParseID(id)
	if err != nil {
		return 0, err
	}
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	ids := bson.A{oid}
	frontier := []string{id}
	for len(frontier) > 0 {
		cursor, err := s.coll.Find(ctx, bson.M{"parent_id": bson.M{"$in": frontier}},
			options.Find().SetProjection(bson.M{"_id": 1}))
		if err != nil {
			return 0, err
		}
		var children []Note
		err = cursor.All(ctx, &children)
		if err != nil {
			return 0, err
		}
		frontier = frontier[:0]
		for _, c := range children {
			ids = append(ids, c.ID)
			frontier = append(frontier, c.ID.Hex())
		}
	}

	res, err := s.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteNotesForPost removes every note on postID.
func (s *NotesStore) DeleteNotesForPost(ctx context.Context, postID string) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"post_id": postID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
