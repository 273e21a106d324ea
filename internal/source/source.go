package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/marketbell/internal/model"
)

// AuthError indicates that the session token was rejected by the API.
// It is returned by source clients when a 401 response is received.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// APIError is an application-level failure: the API answered, but with
// success=false or a non-2xx status.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.StatusCode)
}

// NotificationSource is the remote notification API. Implementations
// hold no local state and never retry; retry policy belongs to callers.
type NotificationSource interface {
	// ListNotifications returns notifications newest first.
	ListNotifications(ctx context.Context, filter model.Filter) ([]model.Notification, error)

	// UnreadCount returns the authoritative number of unread notifications.
	UnreadCount(ctx context.Context) (int, error)

	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}
