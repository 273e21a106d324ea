// Package bell implements the unread indicator. Opening it with unread
// notifications marks them all as read.
package bell

import (
	"context"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/nhle/marketbell/internal/session"
	"github.com/nhle/marketbell/internal/source"
	"github.com/nhle/marketbell/internal/sync"
	"github.com/nhle/marketbell/internal/theme"
	"github.com/nhle/marketbell/internal/ui/toast"
)

const (
	icon        = "🔔"
	maxShown    = 99
	callTimeout = 30 * time.Second
)

// ToggledMsg reports that the bell opened or closed the panel.
type ToggledMsg struct {
	Open bool
}

// MarkedAllMsg is emitted after a successful mark-all-read.
type MarkedAllMsg struct{}

type markAllDoneMsg struct {
	gen uint64
	err error
}

// Model is the bell indicator.
type Model struct {
	src     source.NotificationSource
	log     logrus.FieldLogger
	count   int
	open    bool
	marking bool
	gen     uint64
}

// New creates a bell that marks notifications read through src.
func New(src source.NotificationSource, log logrus.FieldLogger) Model {
	return Model{src: src, log: log.WithField("component", "bell")}
}

// Label formats count for display: "" for zero, capped at "99+".
func Label(count int) string {
	switch {
	case count <= 0:
		return ""
	case count > maxShown:
		return strconv.Itoa(maxShown) + "+"
	default:
		return strconv.Itoa(count)
	}
}

// SetCount updates the displayed unread count.
func (m *Model) SetCount(n int) {
	m.count = n
}

// Count returns the displayed unread count.
func (m Model) Count() int {
	return m.count
}

// Open reports whether the panel is shown.
func (m Model) Open() bool {
	return m.open
}

// Busy reports whether a mark-all-read call is in flight. The bell
// ignores toggles while busy.
func (m Model) Busy() bool {
	return m.marking
}

// Toggle opens or closes the panel.
func (m Model) Toggle() (Model, tea.Cmd) {
	if m.marking {
		return m, nil
	}
	m.open = !m.open

	open := m.open
	toggled := func() tea.Msg { return ToggledMsg{Open: open} }
	if !m.open || m.count == 0 {
		return m, toggled
	}

	m.marking = true
	return m, tea.Batch(toggled, m.markAll())
}

// Close hides the panel without side effects.
func (m *Model) Close() {
	m.open = false
}

// Reset returns the bell to its signed-out state. A mark-all still in
// flight is ignored when it completes.
func (m *Model) Reset() {
	m.gen++
	m.count = 0
	m.open = false
	m.marking = false
}

func (m Model) markAll() tea.Cmd {
	src, gen := m.src, m.gen
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		return markAllDoneMsg{gen: gen, err: src.MarkAllAsRead(ctx)}
	}
}

// Update handles the completion of mark-all-read.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	done, ok := msg.(markAllDoneMsg)
	if !ok || done.gen != m.gen {
		return m, nil
	}
	m.marking = false

	switch {
	case done.err == nil:
		return m, tea.Batch(
			sync.RefreshUnread(),
			func() tea.Msg { return MarkedAllMsg{} },
		)
	case source.IsAuthError(done.err):
		return m, session.Expired(source.Reason(done.err))
	default:
		m.log.WithError(done.err).Warn("marking all notifications read")
		return m, toast.Error(source.UserMessage(source.OpMarkAllRead, done.err))
	}
}

// View renders the bell and its badge.
func (m Model) View() string {
	out := icon
	if label := Label(m.count); label != "" {
		out += " " + theme.BadgeStyle.Render(label)
	}
	if m.marking {
		out += theme.MutedStyle.Render(" …")
	}
	return out
}
