package data

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestNotificationsMarkReadByPartner(t *testing.T) {
	c := openTestDB(t)
	ctx := context.Background()
	store := NewNotificationsStore(c.NotificationsCollection())

	me := bson.NewObjectID().Hex()
	alice, bob := bson.NewObjectID().Hex(), bson.NewObjectID().Hex()

	for _, src := range []string{alice, alice, bob} {
		if _, err := store.CreateNotification(ctx, me, NotificationMessage, "New message", src); err != nil {
			t.Fatalf("CreateNotification failed: %v", err)
		}
	}

	unread, err := store.ListNotifications(ctx, me, true, 0)
	if err != nil || len(unread) != 3 {
		t.Fatalf("expected 3 unread, got %d, %v", len(unread), err)
	}

	changed, err := store.MarkRead(ctx, me, NotificationMessage, alice)
	if err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if len(changed) != 2 {
		t.Fatalf("expected 2 rows marked, got %d", len(changed))
	}

	unread, _ = store.ListNotifications(ctx, me, true, 0)
	if len(unread) != 1 || unread[0].SourceID != bob {
		t.Fatalf("expected only bob's notification unread, got %+v", unread)
	}

	// second pass is a no-op
	changed, err = store.MarkRead(ctx, me, NotificationMessage, alice)
	if err != nil || len(changed) != 0 {
		t.Fatalf("expected no-op, got %d, %v", len(changed), err)
	}

	all, _ := store.ListNotifications(ctx, me, false, 0)
	if len(all) != 3 {
		t.Fatalf("expected 3 total, got %d", len(all))
	}
}
