package rest

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/nhle/marketbell/internal/model"
	"github.com/nhle/marketbell/internal/source"
)

// Adapter implements source.NotificationSource over the REST API.
type Adapter struct {
	client *Client
}

var _ source.NotificationSource = (*Adapter)(nil)

// NewAdapter creates a new notification source for the API at baseURL.
func NewAdapter(baseURL string, tokens TokenSource, timeout time.Duration) *Adapter {
	return &Adapter{client: NewClient(baseURL, tokens, timeout)}
}

// ListNotifications calls GET /notifications with the filter as query
// parameters. Filtering always happens server-side.
func (a *Adapter) ListNotifications(
	ctx context.Context,
	filter model.Filter,
) ([]model.Notification, error) {
	q := url.Values{}
	if filter.IsRead != nil {
		q.Set("isRead", strconv.FormatBool(*filter.IsRead))
	}
	if filter.Category != nil {
		q.Set("category", string(*filter.Category))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}

	path := "/notifications"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListResponse
	if err := a.client.Get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}

	if resp.Data == nil {
		return []model.Notification{}, nil
	}
	return resp.Data, nil
}

// UnreadCount calls GET /notifications/unread-count.
func (a *Adapter) UnreadCount(ctx context.Context) (int, error) {
	var resp CountResponse
	if err := a.client.Get(ctx, "/notifications/unread-count", &resp); err != nil {
		return 0, fmt.Errorf("fetching unread count: %w", err)
	}
	return resp.Count, nil
}

// MarkAsRead calls PUT /notifications/{id}/read.
func (a *Adapter) MarkAsRead(ctx context.Context, id string) error {
	path := fmt.Sprintf("/notifications/%s/read", url.PathEscape(id))
	if err := a.client.Put(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	return nil
}

// MarkAllAsRead calls PUT /notifications/read-all.
func (a *Adapter) MarkAllAsRead(ctx context.Context) error {
	if err := a.client.Put(ctx, "/notifications/read-all", nil, nil); err != nil {
		return fmt.Errorf("marking all notifications as read: %w", err)
	}
	return nil
}

// DeleteNotification calls DELETE /notifications/{id}.
func (a *Adapter) DeleteNotification(ctx context.Context, id string) error {
	path := "/notifications/" + url.PathEscape(id)
	if err := a.client.Delete(ctx, path, nil); err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return nil
}

// DeleteAll calls DELETE /notifications.
func (a *Adapter) DeleteAll(ctx context.Context) error {
	if err := a.client.Delete(ctx, "/notifications", nil); err != nil {
		return fmt.Errorf("deleting all notifications: %w", err)
	}
	return nil
}
