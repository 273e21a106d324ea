package bell

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/marketbell/internal/logging"
	"github.com/nhle/marketbell/internal/session"
	"github.com/nhle/marketbell/internal/source"
	"github.com/nhle/marketbell/internal/sync"
	"github.com/nhle/marketbell/internal/testutil"
	"github.com/nhle/marketbell/internal/ui/toast"
)

// collect runs cmd and flattens batches into their messages.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func find[T any](msgs []tea.Msg) (T, bool) {
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "", Label(0))
	assert.Equal(t, "", Label(-1))
	assert.Equal(t, "7", Label(7))
	assert.Equal(t, "99", Label(99))
	assert.Equal(t, "99+", Label(100))
}

func TestOpenWithUnreadMarksAllOnce(t *testing.T) {
	src := testutil.NewFakeSource(testutil.Note("A", false))
	m := New(src, logging.Discard())
	m.SetCount(3)

	m, cmd := m.Toggle()
	assert.True(t, m.Open())
	assert.True(t, m.Busy())

	// Rapid repeated toggles are ignored while the call is in flight.
	m2, again := m.Toggle()
	assert.Nil(t, again)
	assert.True(t, m2.Open())

	msgs := collect(cmd)
	toggled, ok := find[ToggledMsg](msgs)
	require.True(t, ok)
	assert.True(t, toggled.Open)
	assert.Equal(t, 1, src.Calls("markAll"))

	done, ok := find[markAllDoneMsg](msgs)
	require.True(t, ok)
	m, cmd = m.Update(done)
	assert.False(t, m.Busy())

	after := collect(cmd)
	_, refresh := find[sync.RefreshUnreadMsg](after)
	_, marked := find[MarkedAllMsg](after)
	assert.True(t, refresh)
	assert.True(t, marked)
}

func TestOpenWithZeroCountDoesNotMark(t *testing.T) {
	src := testutil.NewFakeSource()
	m := New(src, logging.Discard())

	m, cmd := m.Toggle()
	assert.True(t, m.Open())
	assert.False(t, m.Busy())
	collect(cmd)
	assert.Zero(t, src.Calls("markAll"))

	m, cmd = m.Toggle()
	assert.False(t, m.Open())
	toggled, _ := find[ToggledMsg](collect(cmd))
	assert.False(t, toggled.Open)
}

func TestMarkAllFailureShowsError(t *testing.T) {
	src := testutil.NewFakeSource()
	src.MarkAllErr = &source.APIError{Op: "PUT /notifications/read-all", StatusCode: 500, Message: "database locked"}
	m := New(src, logging.Discard())
	m.SetCount(2)

	m, cmd := m.Toggle()
	done, _ := find[markAllDoneMsg](collect(cmd))
	m, cmd = m.Update(done)
	assert.False(t, m.Busy())

	notice, ok := find[toast.ErrorMsg](collect(cmd))
	require.True(t, ok)
	assert.Contains(t, notice.Text, "database locked")
}

func TestMarkAllAuthFailureExpiresSession(t *testing.T) {
	src := testutil.NewFakeSource()
	src.MarkAllErr = &source.AuthError{Message: "expired"}
	m := New(src, logging.Discard())
	m.SetCount(1)

	m, cmd := m.Toggle()
	done, _ := find[markAllDoneMsg](collect(cmd))
	_, cmd = m.Update(done)

	_, ok := find[session.ExpiredMsg](collect(cmd))
	assert.True(t, ok)
}

func TestResetDropsInFlightResult(t *testing.T) {
	src := testutil.NewFakeSource()
	src.MarkAllErr = errors.New("connection refused")
	m := New(src, logging.Discard())
	m.SetCount(1)

	m, cmd := m.Toggle()
	done, _ := find[markAllDoneMsg](collect(cmd))
	m.Reset()

	m, cmd = m.Update(done)
	assert.Nil(t, cmd)
	assert.False(t, m.Open())
	assert.Zero(t, m.Count())
}

func TestViewShowsBadge(t *testing.T) {
	m := New(testutil.NewFakeSource(), logging.Discard())
	assert.NotContains(t, m.View(), "0")

	m.SetCount(120)
	assert.Contains(t, m.View(), "99+")
}
