// Package db manages MongoDB connections and collections.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// DefaultDatabase is used when no database name is configured.
const DefaultDatabase = "chat_db"

// Client wraps mongo.Client and exposes collections.
type Client struct {
	// client is the underlying MongoDB connection (safe for concurrent use)
	client *mongo.Client

	// db holds the profiles, messages, notifications and posts collections
	db *mongo.Database
}

// New connects to MongoDB and returns a Client using database name dbName
// (DefaultDatabase when empty).
func New(ctx context.Context, mongoURI, dbName string) (*Client, error) {
	if dbName == "" {
		dbName = DefaultDatabase
	}

	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Connect is lazy; ping to fail fast on a bad URI
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

// ProfilesCollection returns the profiles collection.
func (c *Client) ProfilesCollection() *mongo.Collection {
	return c.db.Collection("profiles")
}

// MessagesCollection returns the messages collection.
func (c *Client) MessagesCollection() *mongo.Collection {
	return c.db.Collection("messages")
}

// NotificationsCollection returns the notifications collection.
func (c *Client) NotificationsCollection() *mongo.Collection {
	return c.db.Collection("notifications")
}

// PostsCollection returns the posts collection.
func (c *Client) PostsCollection() *mongo.Collection {
	return c.db.Collection("posts")
}

// NotesCollection returns the post comments collection.
func (c *Client) NotesCollection() *mongo.Collection {
	return c.db.Collection("notes")
}

// Ping checks the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Drop removes the whole database. Only tests call it.
func (c *Client) Drop(ctx context.Context) error {
	return c.db.Drop(ctx)
}

// CreateIndexes creates the indexes the stores rely on.
func (c *Client) CreateIndexes(ctx context.Context) error {
	// ===== PROFILES =====
	// unique email backs registration and login lookups
	_, err := c.ProfilesCollection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create profiles index: %w", err)
	}

	// ===== MESSAGES =====
	_, err = c.MessagesCollection().Indexes().CreateMany(ctx, []mongo.IndexModel{
		// pair history: (from_id, to_id) ordered by created_at
		{Keys: bson.D{{Key: "from_id", Value: 1}, {Key: "to_id", Value: 1}, {Key: "created_at", Value: -1}}},
		// "involving me" lookups on the recipient side
		{Keys: bson.D{{Key: "to_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	// ===== NOTIFICATIONS =====
	_, err = c.NotificationsCollection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "read", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create notification index: %w", err)
	}

	// ===== POSTS =====
	_, err = c.PostsCollection().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "visibility", Value: 1}, {Key: "type", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("failed to create post indexes: %w", err)
	}

	// ===== NOTES =====
	_, err = c.NotesCollection().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "post_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "parent_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create note indexes: %w", err)
	}

	return nil
}
