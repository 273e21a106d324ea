package sync

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/marketbell/internal/logging"
	"github.com/nhle/marketbell/internal/session"
	"github.com/nhle/marketbell/internal/source"
	"github.com/nhle/marketbell/internal/testutil"
)

func newTestTracker(src *testutil.FakeSource) *UnreadTracker {
	t := NewUnreadTracker(src, time.Minute, logging.Discard())
	t.SetAuthenticated(true)
	return t
}

func refresh(t *testing.T, tr *UnreadTracker) UnreadCountMsg {
	t.Helper()
	cmd := tr.Refresh()
	require.NotNil(t, cmd)
	return cmd().(UnreadCountMsg)
}

func TestTrackerRefreshReplacesCount(t *testing.T) {
	src := testutil.NewFakeSource(
		testutil.Note("A", false),
		testutil.Note("B", false),
		testutil.Note("C", true),
	)
	tr := newTestTracker(src)
	assert.True(t, tr.Active())

	tr.Update(refresh(t, tr))
	assert.Equal(t, 2, tr.Count())
}

func TestTrackerFailureKeepsPreviousValue(t *testing.T) {
	src := testutil.NewFakeSource(testutil.Note("A", false))
	tr := newTestTracker(src)
	tr.Update(refresh(t, tr))
	require.Equal(t, 1, tr.Count())

	src.CountErr = errors.New("connection reset")
	assert.Nil(t, tr.Update(refresh(t, tr)))
	assert.Equal(t, 1, tr.Count())
}

func TestTrackerLastResponseWins(t *testing.T) {
	src := testutil.NewFakeSource()
	tr := newTestTracker(src)

	three, five := 3, 5
	src.CountOverride = &three
	first := refresh(t, tr)
	src.CountOverride = &five
	second := refresh(t, tr)

	// Responses are applied in arrival order, not issue order.
	tr.Update(second)
	tr.Update(first)
	assert.Equal(t, 3, tr.Count())
}

func TestTrackerLogoutResetsAndDropsInFlight(t *testing.T) {
	src := testutil.NewFakeSource(testutil.Note("A", false))
	tr := newTestTracker(src)
	tr.Update(refresh(t, tr))

	late := refresh(t, tr)
	tr.SetAuthenticated(false)
	assert.False(t, tr.Active())
	assert.Equal(t, 0, tr.Count())
	assert.Nil(t, tr.Refresh())

	tr.Update(late)
	assert.Equal(t, 0, tr.Count())

	// Logging back in ignores responses from the previous session too.
	tr.SetAuthenticated(true)
	tr.Update(late)
	assert.Equal(t, 0, tr.Count())
}

func TestTrackerRefreshTrigger(t *testing.T) {
	src := testutil.NewFakeSource(testutil.Note("A", false))
	tr := newTestTracker(src)

	cmd := tr.Update(RefreshUnreadMsg{})
	require.NotNil(t, cmd)
	tr.Update(cmd())
	assert.Equal(t, 1, tr.Count())
	assert.Equal(t, 1, src.Calls("count"))
}

func TestTrackerTickRefreshes(t *testing.T) {
	tr := newTestTracker(testutil.NewFakeSource())

	assert.NotNil(t, tr.Update(TickMsg{TimerID: tr.timer.id, Gen: tr.timer.gen}))
	assert.Nil(t, tr.Update(TickMsg{TimerID: tr.timer.id, Gen: tr.timer.gen - 1}))
	assert.Nil(t, tr.Update(TickMsg{TimerID: -1, Gen: tr.timer.gen}))
}

func TestTrackerAuthErrorExpiresSession(t *testing.T) {
	src := testutil.NewFakeSource()
	src.CountErr = &source.AuthError{Message: "token expired"}
	tr := newTestTracker(src)

	cmd := tr.Update(refresh(t, tr))
	require.NotNil(t, cmd)
	msg, ok := cmd().(session.ExpiredMsg)
	require.True(t, ok)
	assert.NotEmpty(t, msg.Reason)
}

func TestTrackerSuspendsWhileHidden(t *testing.T) {
	src := testutil.NewFakeSource(testutil.Note("A", false))
	tr := newTestTracker(src)
	require.True(t, tr.Polling())
	live := TickMsg{TimerID: tr.timer.id, Gen: tr.timer.gen}

	assert.Nil(t, tr.SetVisible(false))
	assert.False(t, tr.Polling())
	assert.Nil(t, tr.Update(live), "tick armed before blur is stale")

	// Explicit triggers still refresh while hidden.
	cmd := tr.Update(RefreshUnreadMsg{})
	require.NotNil(t, cmd)
	tr.Update(cmd())
	assert.Equal(t, 1, tr.Count())

	// Focus refreshes once and rearms.
	cmd = tr.SetVisible(true)
	require.NotNil(t, cmd)
	assert.True(t, tr.Polling())
	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	tr.Update(batch[0]())
	assert.Equal(t, 2, src.Calls("count"))
	assert.Nil(t, tr.SetVisible(true), "already visible")
}

func TestTrackerLoginWhileHiddenDoesNotArm(t *testing.T) {
	tr := NewUnreadTracker(testutil.NewFakeSource(), time.Minute, logging.Discard())
	tr.SetVisible(false)

	cmd := tr.SetAuthenticated(true)
	require.NotNil(t, cmd)
	_, ok := cmd().(UnreadCountMsg)
	assert.True(t, ok, "one refresh, no timer")
	assert.True(t, tr.Active())
	assert.False(t, tr.Polling())
}
