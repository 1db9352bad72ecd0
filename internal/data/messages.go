package data

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MessagesStore provides message database operations.
type MessagesStore struct {
	coll *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll}
}

// SaveMessage inserts a message and returns the stored row. The store assigns
// id and both timestamps.
func (m *MessagesStore) SaveMessage(ctx context.Context, fromID, toID, content, attachment string) (*Message, error) {
	ts := now()
	msg := &Message{
		FromID:     fromID,
		ToID:       toID,
		Content:    content,
		Attachment: attachment,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}

	result, err := m.coll.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.ID = result.InsertedID.(bson.ObjectID)
	return msg, nil
}

// GetMessage loads one message by hex id.
func (m *MessagesStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	var msg Message
	if err := m.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&msg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// UpdateMessage replaces content and attachment and bumps updated_at. It
// returns the row before and after the change. created_at is untouched.
func (m *MessagesStore) UpdateMessage(ctx context.Context, id, content, attachment string) (prev, cur *Message, err error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, nil, err
	}

	ts := now()
	update := bson.M{"$set": bson.M{
		"content":    content,
		"attachment": attachment,
		"updated_at": ts,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var before Message
	if err := m.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&before); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	after := before
	after.Content = content
	after.Attachment = attachment
	after.UpdatedAt = ts
	return &before, &after, nil
}

// DeleteMessage removes a message and returns the deleted row.
func (m *MessagesStore) DeleteMessage(ctx context.Context, id string) (*Message, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	var deleted Message
	if err := m.coll.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&deleted); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &deleted, nil
}

// ListMessagesFor returns every message userID sent or received, newest first.
func (m *MessagesStore) ListMessagesFor(ctx context.Context, userID string, limit int64) ([]*Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"from_id": userID},
		bson.M{"to_id": userID},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return m.find(ctx, filter, opts)
}

// GetMessageHistory returns recent messages between two users (ordered oldest→newest).
func (m *MessagesStore) GetMessageHistory(ctx context.Context, user1, user2 string, limit int64) ([]*Message, error) {
	// newest first so the limit keeps the most recent slice
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	filter := bson.M{
		"$or": bson.A{
			bson.M{"from_id": user1, "to_id": user2},
			bson.M{"from_id": user2, "to_id": user1},
		},
	}

	messages, err := m.find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	// reverse into chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (m *MessagesStore) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]*Message, error) {
	cursor, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []*Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// GetRecentChats aggregates recent partners and last message info.
func (m *MessagesStore) GetRecentChats(ctx context.Context, userID string, limit int64) ([]*ChatPartner, error) {
	pipeline := mongo.Pipeline{
		// messages involving the user
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "from_id", Value: userID}},
				bson.D{{Key: "to_id", Value: userID}},
			}},
		}}},

		// chronological so $last below is the newest message per partner
		bson.D{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}}},

		// group by the other party
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "$cond", Value: bson.A{
					bson.D{{Key: "$eq", Value: bson.A{"$from_id", userID}}},
					"$to_id",
					"$from_id",
				}},
			}},
			{Key: "last_message", Value: bson.D{{Key: "$last", Value: "$content"}}},
			{Key: "last_message_at", Value: bson.D{{Key: "$last", Value: "$created_at"}}},
		}}},

		bson.D{{Key: "$sort", Value: bson.D{{Key: "last_message_at", Value: -1}}}},
		bson.D{{Key: "$limit", Value: limit}},
	}

	cursor, err := m.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		PartnerID     string    `bson:"_id"`
		LastMessage   string    `bson:"last_message"`
		LastMessageAt time.Time `bson:"last_message_at"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	partners := make([]*ChatPartner, 0, len(results))
	for _, r := range results {
		partners = append(partners, &ChatPartner{
			PartnerID:       r.PartnerID,
			LastMessage:     r.LastMessage,
			LastMessageTime: r.LastMessageAt.UTC(),
		})
	}
	return partners, nil
}
