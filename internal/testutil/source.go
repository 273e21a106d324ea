package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nhle/marketbell/internal/model"
	"github.com/nhle/marketbell/internal/source"
)

// FakeSource is an in-memory source.NotificationSource that records calls.
// The *Err fields, when set, are returned by the matching operation.
type FakeSource struct {
	mu    sync.Mutex
	items []model.Notification
	calls map[string]int

	ListErr      error
	CountErr     error
	MarkErr      error
	MarkAllErr   error
	DeleteErr    error
	DeleteAllErr error

	// CountOverride, when non-nil, is returned by UnreadCount instead of
	// the derived value.
	CountOverride *int
}

var _ source.NotificationSource = (*FakeSource)(nil)

// NewFakeSource returns a source seeded with items (newest first).
func NewFakeSource(items ...model.Notification) *FakeSource {
	f := &FakeSource{calls: map[string]int{}}
	f.items = append(f.items, items...)
	return f
}

// Note builds a notification for tests.
func Note(id string, read bool) model.Notification {
	return model.Notification{
		ID:        id,
		Type:      model.TypeNewMessage,
		Category:  model.CategorySocial,
		Priority:  model.PriorityMedium,
		Title:     "Notification " + id,
		Message:   "message " + id,
		IsRead:    read,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Push adds n as the newest notification.
func (f *FakeSource) Push(n model.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append([]model.Notification{n}, f.items...)
}

// Items returns a copy of the current server-side items.
func (f *FakeSource) Items() []model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Notification, len(f.items))
	copy(out, f.items)
	return out
}

// Calls returns how many times op was invoked.
func (f *FakeSource) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FakeSource) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *FakeSource) ListNotifications(
	_ context.Context,
	filter model.Filter,
) ([]model.Notification, error) {
	f.record("list")
	if f.ListErr != nil {
		return nil, f.ListErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Notification{}
	for _, n := range f.items {
		if filter.IsRead != nil && n.IsRead != *filter.IsRead {
			continue
		}
		if filter.Category != nil && n.Category != *filter.Category {
			continue
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *FakeSource) UnreadCount(_ context.Context) (int, error) {
	f.record("count")
	if f.CountErr != nil {
		return 0, f.CountErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CountOverride != nil {
		return *f.CountOverride, nil
	}
	n := 0
	for _, item := range f.items {
		if !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (f *FakeSource) MarkAsRead(_ context.Context, id string) error {
	f.record("mark")
	if f.MarkErr != nil {
		return f.MarkErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].IsRead = true
			return nil
		}
	}
	return &source.APIError{
		Op:         "PUT /notifications/" + id + "/read",
		StatusCode: 404,
		Message:    fmt.Sprintf("notification %s not found", id),
	}
}

func (f *FakeSource) MarkAllAsRead(_ context.Context) error {
	f.record("markAll")
	if f.MarkAllErr != nil {
		return f.MarkAllErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		f.items[i].IsRead = true
	}
	if f.CountOverride != nil {
		zero := 0
		f.CountOverride = &zero
	}
	return nil
}

func (f *FakeSource) DeleteNotification(_ context.Context, id string) error {
	f.record("delete")
	if f.DeleteErr != nil {
		return f.DeleteErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *FakeSource) DeleteAll(_ context.Context) error {
	f.record("deleteAll")
	if f.DeleteAllErr != nil {
		return f.DeleteAllErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = nil
	return nil
}
