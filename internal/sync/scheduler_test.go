package sync

import (
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

func newTestScheduler(src *testutil.FakeSource) *Scheduler {
	return NewScheduler(NewWatcher(src, logging.Discard()), 2*time.Minute)
}

// liveTick returns the tick the scheduler is currently waiting for.
func liveTick(s *Scheduler) TickMsg {
	return TickMsg{TimerID: s.timer.id, Gen: s.timer.gen}
}

// runCheck executes a watcher check command and feeds its result back.
func runCheck(t *testing.T, s *Scheduler, tr Transition) {
	t.Helper()
	require.NotNil(t, tr.Check)
	msg, ok := tr.Check().(CheckResultMsg)
	require.True(t, ok)
	s.Update(msg)
}

func TestSchedulerStartsIdle(t *testing.T) {
	s := newTestScheduler(testutil.NewFakeSource())

	assert.Equal(t, StateIdle, s.State())
	assert.False(t, s.Armed())
	assert.Equal(t, "signed out", s.State().String())
}

func TestAuthenticationChecksImmediatelyAndArms(t *testing.T) {
	src := testutil.NewFakeSource()
	s := newTestScheduler(src)

	tr := s.SetAuthenticated(true)
	assert.Equal(t, StateVisible, s.State())
	assert.True(t, s.Armed())
	assert.NotNil(t, tr.Tick)

	runCheck(t, s, tr)
	assert.Equal(t, 1, src.Calls("list"))

	// Re-asserting authentication is a no-op.
	tr = s.SetAuthenticated(true)
	assert.Nil(t, tr.Check)
	assert.Nil(t, tr.Tick)
}

func TestHiddenDisarmsAndDropsPendingTick(t *testing.T) {
	src := testutil.NewFakeSource()
	s := newTestScheduler(src)
	runCheck(t, s, s.SetAuthenticated(true))

	pending := liveTick(s)
	tr := s.SetVisible(false)
	assert.Equal(t, StateHidden, s.State())
	assert.False(t, s.Armed())
	assert.Nil(t, tr.Check)
	assert.Nil(t, tr.Tick)

	tr, owned := s.HandleTick(pending)
	assert.True(t, owned)
	assert.Nil(t, tr.Check)
	assert.Nil(t, tr.Tick)
	assert.Equal(t, 1, src.Calls("list"))
}

func TestBecomingVisibleChecksExactlyOnce(t *testing.T) {
	src := testutil.NewFakeSource()
	s := newTestScheduler(src)
	runCheck(t, s, s.SetAuthenticated(true))
	s.SetVisible(false)

	tr := s.SetVisible(true)
	assert.Equal(t, StateVisible, s.State())
	assert.True(t, s.Armed())
	assert.NotNil(t, tr.Tick)
	runCheck(t, s, tr)
	assert.Equal(t, 2, src.Calls("list"))

	// A repeated visible signal does not check again.
	tr = s.SetVisible(true)
	assert.Nil(t, tr.Check)
	assert.Nil(t, tr.Tick)
}

func TestPeriodicTickChecksAndRearms(t *testing.T) {
	src := testutil.NewFakeSource()
	s := newTestScheduler(src)
	runCheck(t, s, s.SetAuthenticated(true))

	tick := liveTick(s)
	tr, owned := s.HandleTick(tick)
	require.True(t, owned)
	assert.NotNil(t, tr.Tick)
	runCheck(t, s, tr)
	assert.Equal(t, 2, src.Calls("list"))

	// The old tick is stale once re-armed.
	tr, _ = s.HandleTick(tick)
	assert.Nil(t, tr.Check)
}

func TestTickWhileCheckInFlightIsSkipped(t *testing.T) {
	s := newTestScheduler(testutil.NewFakeSource())
	first := s.SetAuthenticated(true)
	require.NotNil(t, first.Check)
	assert.True(t, s.Watcher().Busy())

	tr, _ := s.HandleTick(liveTick(s))
	assert.Nil(t, tr.Check, "overlapping check must be skipped")
	assert.NotNil(t, tr.Tick, "cadence continues")
}

func TestForeignTickIsNotOwned(t *testing.T) {
	s := newTestScheduler(testutil.NewFakeSource())
	s.SetAuthenticated(true)

	_, owned := s.HandleTick(TickMsg{TimerID: -1, Gen: 1})
	assert.False(t, owned)
}

func TestAuthenticatingWhileHiddenWaitsForVisibility(t *testing.T) {
	src := testutil.NewFakeSource()
	s := newTestScheduler(src)

	s.SetVisible(false)
	tr := s.SetAuthenticated(true)
	assert.Equal(t, StateHidden, s.State())
	assert.Nil(t, tr.Check)
	assert.False(t, s.Armed())

	runCheck(t, s, s.SetVisible(true))
	assert.Equal(t, 1, src.Calls("list"))
}

func TestLogoutDisarmsAndIgnoresLateResult(t *testing.T) {
	src := testutil.NewFakeSource(testutil.Note("A", false))
	s := newTestScheduler(src)

	tr := s.SetAuthenticated(true)
	late := tr.Check()

	s.SetAuthenticated(false)
	assert.Equal(t, StateIdle, s.State())
	assert.False(t, s.Armed())

	assert.Nil(t, s.Update(late))
	assert.Empty(t, s.Watcher().LastObservedID())
}

func TestAnnouncementAlsoTriggersUnreadRefresh(t *testing.T) {
	src := testutil.NewFakeSource(testutil.Note("A", false))
	s := newTestScheduler(src)

	tr := s.SetAuthenticated(true)
	cmd := s.Update(tr.Check())
	require.NotNil(t, cmd)

	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	var sawAnnouncement, sawRefresh bool
	for _, c := range batch {
		switch msg := c().(type) {
		case AnnouncementMsg:
			sawAnnouncement = true
			assert.Equal(t, "A", msg.NotificationID)
		case RefreshUnreadMsg:
			sawRefresh = true
		}
	}
	assert.True(t, sawAnnouncement)
	assert.True(t, sawRefresh)
}

func TestAuthErrorExpiresSession(t *testing.T) {
	src := testutil.NewFakeSource()
	src.ListErr = &source.AuthError{Message: "expired"}
	s := newTestScheduler(src)

	tr := s.SetAuthenticated(true)
	cmd := s.Update(tr.Check())
	require.NotNil(t, cmd)
	_, ok := cmd().(session.ExpiredMsg)
	assert.True(t, ok)
	assert.False(t, s.Watcher().Busy())
}
