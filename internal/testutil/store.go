package testutil

import (
	"context"
	"testing"

	"github.com/nhle/marketbell/internal/model"
	"github.com/nhle/marketbell/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedNotifications inserts notifications for userID, oldest first, and
// returns them in the order given.
func SeedNotifications(t *testing.T, s *store.SQLiteStore, userID string, items ...model.Notification) []model.Notification {
	t.Helper()

	out := make([]model.Notification, 0, len(items))
	for _, n := range items {
		created, err := s.CreateNotification(context.Background(), userID, n)
		if err != nil {
			t.Fatalf("seeding notification: %v", err)
		}
		out = append(out, created)
	}
	return out
}
