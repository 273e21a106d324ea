package toast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/marketbell/internal/sync"
)

func announce(m Model, title string, action *sync.Action) Model {
	m, _ = m.Update(sync.AnnouncementMsg{Title: title, Action: action})
	return m
}

func TestAnnouncementsStackWithoutDedup(t *testing.T) {
	m := New(5 * time.Second)

	m, cmd := m.Update(sync.AnnouncementMsg{NotificationID: "A", Title: "A"})
	assert.NotNil(t, cmd, "expiry is scheduled")
	m = announce(m, "A", nil)

	require.Len(t, m.Toasts(), 2)
	assert.NotEqual(t, m.Toasts()[0].ID, m.Toasts()[1].ID)
	assert.Contains(t, m.View(), "A")
}

func TestExpiryRemovesOnlyThatToast(t *testing.T) {
	m := New(time.Second)
	m = announce(m, "first", nil)
	m = announce(m, "second", nil)
	first := m.Toasts()[0].ID

	m, _ = m.Update(expireMsg{id: first})
	require.Len(t, m.Toasts(), 1)
	assert.Equal(t, "second", m.Toasts()[0].Title)

	m, _ = m.Update(expireMsg{id: first})
	assert.Len(t, m.Toasts(), 1, "expiring twice is harmless")
}

func TestErrorVariant(t *testing.T) {
	m := New(time.Second)
	m, _ = m.Update(ErrorMsg{Text: "Could not delete: server unreachable"})

	require.Len(t, m.Toasts(), 1)
	assert.True(t, m.Toasts()[0].Error)
	assert.Contains(t, m.View(), "server unreachable")
}

func TestLatestAction(t *testing.T) {
	m := New(time.Second)
	_, ok := m.LatestAction()
	assert.False(t, ok)

	m = announce(m, "msg", &sync.Action{Label: "Reply", Route: "/messages"})
	m, _ = m.Update(ErrorMsg{Text: "boom"})

	a, ok := m.LatestAction()
	require.True(t, ok)
	assert.Equal(t, "/messages", a.Route)

	m.Clear()
	assert.Empty(t, m.View())
}
