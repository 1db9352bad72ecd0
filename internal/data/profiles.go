// Package data provides DB models and stores.
package data

import (
	"context"
	"errors"
	"regexp"

	"github.com/PaulBabatuyi/convosync/internal/normalize"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultSearchLimit caps SearchProfiles when the caller passes no limit.
const DefaultSearchLimit = 10

// ProfilesStore performs profile DB operations.
type ProfilesStore struct {
	coll *mongo.Collection
}

// NewProfilesStore returns a ProfilesStore using the provided collection.
func NewProfilesStore(coll *mongo.Collection) *ProfilesStore {
	return &ProfilesStore{coll: coll}
}

// CreateProfile inserts a new profile with an already-hashed password.
func (s *ProfilesStore) CreateProfile(ctx context.Context, email, fullName, hashedPassword string) (*Profile, error) {
	ts := now()
	p := &Profile{
		Email:     normalize.Email(email),
		FullName:  fullName,
		Password:  hashedPassword,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	result, err := s.coll.InsertOne(ctx, p)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}

	p.ID = result.InsertedID.(bson.ObjectID)
	return p, nil
}

// GetProfileByEmail finds a profile by email.
func (s *ProfilesStore) GetProfileByEmail(ctx context.Context, email string) (*Profile, error) {
	return s.findOne(ctx, bson.M{"email": normalize.Email(email)})
}

// GetProfileByID finds a profile by hex id.
func (s *ProfilesStore) GetProfileByID(ctx context.Context, id string) (*Profile, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *ProfilesStore) findOne(ctx context.Context, filter bson.M) (*Profile, error) {
	var p Profile
	if err := s.coll.FindOne(ctx, filter).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetProfilesByIDs returns the profiles matching ids. Malformed and unknown
// ids are skipped; callers must not assume one result per id.
func (s *ProfilesStore) GetProfilesByIDs(ctx context.Context, ids []string) ([]*Profile, error) {
	oids := make([]bson.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := ParseID(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return nil, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": oids}}, options.Find())
}

// SearchProfiles does a case-insensitive substring match over full_name and
// email, excluding excludeID.
func (s *ProfilesStore) SearchProfiles(ctx context.Context, query, excludeID string, limit int64) ([]*Profile, error) {
	query = normalize.Query(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	// user input goes into a regex; quote it
	pattern := bson.M{"$regex": regexp.QuoteMeta(query), "$options": "i"}
	filter := bson.M{
		"$or": bson.A{
			bson.M{"full_name": pattern},
			bson.M{"email": pattern},
		},
	}
	if oid, err := ParseID(excludeID); err == nil {
		filter["_id"] = bson.M{"$ne": oid}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "full_name", Value: 1}, {Key: "email", Value: 1}}).
		SetLimit(limit)
	return s.find(ctx, filter, opts)
}

func (s *ProfilesStore) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]*Profile, error) {
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var profiles []*Profile
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// ProfileExists checks if a profile with the given hex id exists.
func (s *ProfilesStore) ProfileExists(ctx context.Context, id string) (bool, error) {
	oid, err := ParseID(id)
	if err != nil {
		return false, nil
	}
	count, err := s.coll.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
