package store

import (
	"context"
	"errors"

	"github.com/nhle/marketbell/internal/model"
)

// ErrNotFound is returned when a notification does not exist for the
// requesting user.
var ErrNotFound = errors.New("notification not found")

// Store defines the persistence interface for per-user notifications.
// Every operation is scoped to userID; rows owned by other users are
// invisible.
type Store interface {
	CreateNotification(ctx context.Context, userID string, n model.Notification) (model.Notification, error)
	ListNotifications(ctx context.Context, userID string, filter model.Filter) ([]model.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)

	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)

	DeleteNotification(ctx context.Context, userID, id string) error
	DeleteAll(ctx context.Context, userID string) (int64, error)

	Close() error
}
