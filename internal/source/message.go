package source

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Op names a user-initiated operation for error notices.
type Op string

const (
	OpMarkRead    Op = "mark notification as read"
	OpMarkAllRead Op = "mark all notifications as read"
	OpDelete      Op = "delete notification"
	OpDeleteAll   Op = "delete all notifications"
	OpList        Op = "load notifications"
)

// UserMessage formats a failure of op for display in a transient notice.
// The server-provided message is preferred over transport details.
func UserMessage(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Could not %s: %s", op, Reason(err))
}

// Reason extracts the human-readable part of err.
func Reason(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return "session expired, please log in again"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return "server unreachable"
	}

	return err.Error()
}
