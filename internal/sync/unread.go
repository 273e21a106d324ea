package sync

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/nhle/marketbell/internal/session"
	"github.com/nhle/marketbell/internal/source"
)

// RefreshUnreadMsg is the shared trigger any component emits after
// changing read state.
type RefreshUnreadMsg struct{}

// RefreshUnread returns a command emitting RefreshUnreadMsg.
func RefreshUnread() tea.Cmd {
	return func() tea.Msg { return RefreshUnreadMsg{} }
}

// UnreadCountMsg carries one unread count response.
type UnreadCountMsg struct {
	epoch uint64
	Count int
	Err   error
}

// UnreadTracker owns the displayed unread count. The value is always
// the server's; it is never derived from a notification list.
type UnreadTracker struct {
	src    source.NotificationSource
	log    logrus.FieldLogger
	count  int
	active bool
	hidden bool
	epoch  uint64
	timer  timer
}

// NewUnreadTracker creates a tracker that refreshes every interval
// while a session is active and the terminal is visible.
func NewUnreadTracker(
	src source.NotificationSource,
	interval time.Duration,
	log logrus.FieldLogger,
) *UnreadTracker {
	return &UnreadTracker{
		src:   src,
		log:   log.WithField("component", "unread"),
		timer: newTimer(interval),
	}
}

// Count returns the last successfully fetched count.
func (t *UnreadTracker) Count() int {
	return t.count
}

// Active reports whether the tracker is refreshing for a session.
func (t *UnreadTracker) Active() bool {
	return t.active
}

// SetAuthenticated starts or stops refreshing. Losing the session
// clears the count and discards in-flight responses.
func (t *UnreadTracker) SetAuthenticated(auth bool) tea.Cmd {
	if !auth {
		if t.active {
			t.active = false
			t.timer.disarm()
			t.epoch++
			t.count = 0
		}
		return nil
	}
	if t.active {
		return nil
	}
	t.active = true
	if t.hidden {
		return t.Refresh()
	}
	return tea.Batch(t.Refresh(), t.timer.arm())
}

// SetVisible suspends the interval while the terminal is hidden. Becoming
// visible again refreshes once and rearms it. Explicit refresh triggers
// are served either way.
func (t *UnreadTracker) SetVisible(visible bool) tea.Cmd {
	t.hidden = !visible
	if !t.active {
		return nil
	}
	if !visible {
		t.timer.disarm()
		return nil
	}
	if t.timer.armed {
		return nil
	}
	return tea.Batch(t.Refresh(), t.timer.arm())
}

// Polling reports whether the interval timer is running.
func (t *UnreadTracker) Polling() bool {
	return t.active && t.timer.armed
}

// Refresh fetches the count once. Concurrent refreshes are allowed;
// whichever response arrives last wins.
func (t *UnreadTracker) Refresh() tea.Cmd {
	if !t.active {
		return nil
	}
	src, epoch := t.src, t.epoch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		n, err := src.UnreadCount(ctx)
		return UnreadCountMsg{epoch: epoch, Count: n, Err: err}
	}
}

// Apply records a response. Failures keep the previous value.
func (t *UnreadTracker) Apply(msg UnreadCountMsg) {
	if msg.epoch != t.epoch || !t.active {
		return
	}
	if msg.Err != nil {
		t.log.WithError(msg.Err).Warn("refreshing unread count")
		return
	}
	t.count = msg.Count
}

// Update handles tracker ticks, responses and refresh triggers.
func (t *UnreadTracker) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case TickMsg:
		if !t.timer.fired(msg) || !t.active {
			return nil
		}
		return tea.Batch(t.Refresh(), t.timer.arm())

	case RefreshUnreadMsg:
		return t.Refresh()

	case UnreadCountMsg:
		t.Apply(msg)
		if msg.epoch == t.epoch && t.active && source.IsAuthError(msg.Err) {
			return session.Expired(source.Reason(msg.Err))
		}
	}
	return nil
}
