// Package datastoretest opens throwaway migrated SQLite stores for tests.
package datastoretest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/robalobadob/gardenshare/internal/datastore"
)

// Open returns a migrated in-memory store private to t. It is closed on cleanup.
func Open(t testing.TB) *datastore.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	c, err := datastore.Open(context.Background(), datastore.Options{
		Driver: "sqlite",
		DSN:    dsn,
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	if err := c.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	return c
}
