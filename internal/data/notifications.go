package data

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// NotificationMessage is the type tag used for new-message notifications.
const NotificationMessage = "message"

// NotificationsStore provides notification database operations.
type NotificationsStore struct {
	coll *mongo.Collection
}

// NewNotificationsStore returns a NotificationsStore using given collection.
func NewNotificationsStore(coll *mongo.Collection) *NotificationsStore {
	return &NotificationsStore{coll: coll}
}

// CreateNotification inserts an unread notification for userID.
func (s *NotificationsStore) CreateNotification(ctx context.Context, userID, kind, payload, sourceID string) (*Notification, error) {
	n := &Notification{
		UserID:    userID,
		Type:      kind,
		Payload:   payload,
		SourceID:  sourceID,
		Read:      false,
		CreatedAt: now(),
	}
	result, err := s.coll.InsertOne(ctx, n)
	if err != nil {
		return nil, err
	}
	n.ID = result.InsertedID.(bson.ObjectID)
	return n, nil
}

// ListNotifications returns userID's notifications, newest first.
func (s *NotificationsStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int64) ([]*Notification, error) {
	filter := bson.M{"user_id": userID}
	if unreadOnly {
		filter["read"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*Notification
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead flips read=true on userID's unread notifications matching kind and
// sourceID (either may be empty to match any). It returns the rows as they
// were before the update so callers can publish per-row changes.
func (s *NotificationsStore) MarkRead(ctx context.Context, userID, kind, sourceID string) ([]*Notification, error) {
	filter := bson.M{"user_id": userID, "read": false}
	if kind != "" {
		filter["type"] = kind
	}
	if sourceID != "" {
		filter["source_id"] = sourceID
	}

	pending, err := s.ListNotificationsMatching(ctx, filter)
	if err != nil || len(pending) == 0 {
		return nil, err
	}

	ids := make([]bson.ObjectID, 0, len(pending))
	for _, n := range pending {
		ids = append(ids, n.ID)
	}
	// read:false guards against rows another session flipped in between
	if _, err := s.coll.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	); err != nil {
		return nil, err
	}
	return pending, nil
}

// ListNotificationsMatching runs an arbitrary filter; used by MarkRead.
func (s *NotificationsStore) ListNotificationsMatching(ctx context.Context, filter bson.M) ([]*Notification, error) {
	cursor, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*Notification
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
