package data

import (
	"context"
	"os"
	"testing"

	"github.com/PaulBabatuyi/convosync/internal/db"
)

// openTestDB connects to MONGODB_URI or skips. The test database is dropped
// on cleanup.
func openTestDB(t *testing.T) *db.Client {
	t.Helper()
	// no env loader; require MONGODB_URI set externally for integration tests
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := db.New(ctx, uri, "convosync_data_test")
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}
	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Drop(context.Background())
		_ = c.Close(context.Background())
	})
	return c
}
