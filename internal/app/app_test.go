package app

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/marketbell/internal/logging"
	"github.com/nhle/marketbell/internal/model"
	"github.com/nhle/marketbell/internal/notify"
	"github.com/nhle/marketbell/internal/session"
	appsync "github.com/nhle/marketbell/internal/sync"
	"github.com/nhle/marketbell/internal/testutil"
	"github.com/nhle/marketbell/internal/ui/bell"
	"github.com/nhle/marketbell/internal/ui/command"
	configview "github.com/nhle/marketbell/internal/ui/config"
	"github.com/nhle/marketbell/internal/ui/login"
)

// cmdTimeout bounds how long drain waits for one command. Timer
// commands sleep for their full interval and are dropped.
const cmdTimeout = 200 * time.Millisecond

type fakeNotifier struct {
	sent []notify.Notification
}

func (f *fakeNotifier) Notify(n notify.Notification) error {
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeNotifier) Close() error { return nil }

type fixture struct {
	src      *testutil.FakeSource
	sess     *session.Session
	notifier *fakeNotifier
	copied   []string
}

func newApp(t *testing.T, items ...model.Notification) (Model, *fixture) {
	t.Helper()

	f := &fixture{
		src:      testutil.NewFakeSource(items...),
		sess:     session.New(nil),
		notifier: &fakeNotifier{},
	}
	require.NoError(t, f.sess.Login("test-token"))

	cfg := model.DefaultConfig()
	cfg.Web.BaseURL = "https://market.example"
	cfg.Toast.Desktop = true

	m := New(Deps{
		Config:   cfg,
		Source:   f.src,
		Session:  f.sess,
		Notifier: f.notifier,
		Log:      logging.Discard(),
		Clipboard: func(s string) error {
			f.copied = append(f.copied, s)
			return nil
		},
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model), f
}

// run executes cmd with a deadline. Blocking commands such as timers
// report false.
func run(cmd tea.Cmd) (tea.Msg, bool) {
	out := make(chan tea.Msg, 1)
	go func() { out <- cmd() }()
	select {
	case msg := <-out:
		return msg, true
	case <-time.After(cmdTimeout):
		return nil, false
	}
}

// drain feeds msg to m and keeps running the resulting commands until
// the model is quiet.
func drain(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()

	queue := []tea.Msg{msg}
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 200, "update loop did not settle")

		msg, queue = queue[0], queue[1:]
		if batch, ok := msg.(tea.BatchMsg); ok {
			for _, c := range batch {
				if c == nil {
					continue
				}
				if out, ok := run(c); ok && out != nil {
					queue = append(queue, out)
				}
			}
			continue
		}

		next, cmd := m.Update(msg)
		m = next.(Model)
		if cmd == nil {
			continue
		}
		if out, ok := run(cmd); ok && out != nil {
			queue = append(queue, out)
		}
	}
	return m
}

func keyMsg(k string) tea.KeyMsg {
	if k == "esc" {
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func commandLine(line string) command.CommandMsg {
	cmd, _ := command.Parse(line)
	return cmd
}

func loginSubmitted(token string) login.SubmittedMsg {
	return login.SubmittedMsg{Token: token}
}

func TestOpeningBellMarksAllReadAndClearsBadge(t *testing.T) {
	m, f := newApp(t,
		testutil.Note("C", false),
		testutil.Note("B", false),
		testutil.Note("A", false),
	)

	m = drain(t, m, session.AuthChangedMsg{Authenticated: true})
	assert.Equal(t, 3, m.bell.Count())
	assert.Contains(t, m.View(), "3")

	m = drain(t, m, keyMsg("b"))
	assert.True(t, m.bell.Open())
	assert.False(t, m.bell.Busy())
	assert.Equal(t, 1, f.src.Calls("markAll"))
	assert.Equal(t, 0, m.bell.Count())
	assert.Equal(t, "", bell.Label(m.bell.Count()))

	for _, n := range m.panel.Items() {
		assert.True(t, n.IsRead, "panel reloads after mark-all")
	}
}

func TestNewHeadShowsToastAndDesktopNotification(t *testing.T) {
	m, f := newApp(t, testutil.Note("A", false))

	m = drain(t, m, session.AuthChangedMsg{Authenticated: true})
	require.Len(t, m.toasts.Toasts(), 1)
	assert.Len(t, f.notifier.sent, 1)

	// A second check with the same head stays quiet.
	m = drain(t, m, keyMsg("r"))
	assert.Len(t, m.toasts.Toasts(), 1)

	f.src.Push(testutil.Note("B", false))
	m = drain(t, m, tea.BlurMsg{})
	assert.Equal(t, appsync.StateHidden, m.scheduler.State())
	m = drain(t, m, tea.FocusMsg{})
	assert.Equal(t, appsync.StateVisible, m.scheduler.State())
	assert.Len(t, m.toasts.Toasts(), 2)
	assert.Equal(t, 2, m.bell.Count(), "announcement refreshes the count")
}

func TestOpenCopiesActionLink(t *testing.T) {
	n := testutil.Note("A", false)
	n.Type = model.TypeNewMessage
	n.Data = json.RawMessage(`{"conversationId":"c42"}`)
	m, f := newApp(t, n)

	m = drain(t, m, session.AuthChangedMsg{Authenticated: true})
	m = drain(t, m, keyMsg("o"))
	assert.Equal(t, []string{"https://market.example/messages/c42"}, f.copied)
	assert.Contains(t, m.keyHints(), "Copied")
}

func TestExpiredSessionStopsPollingAndAsksForLogin(t *testing.T) {
	m, f := newApp(t, testutil.Note("A", false))
	m = drain(t, m, session.AuthChangedMsg{Authenticated: true})
	require.Equal(t, 1, m.bell.Count())

	m = drain(t, m, session.ExpiredMsg{Reason: "token expired"})
	assert.False(t, f.sess.Authenticated())
	assert.Equal(t, appsync.StateIdle, m.scheduler.State())
	assert.False(t, m.tracker.Active())
	assert.Equal(t, 0, m.bell.Count())
	assert.Empty(t, m.toasts.Toasts())
	assert.Equal(t, ViewLogin, m.currentView)
	assert.Contains(t, m.View(), "token expired")
}

func TestLogoutCommandResetsState(t *testing.T) {
	m, f := newApp(t, testutil.Note("A", false))
	m = drain(t, m, session.AuthChangedMsg{Authenticated: true})

	m = drain(t, m, commandLine("logout"))
	assert.False(t, f.sess.Authenticated())
	assert.Equal(t, appsync.StateIdle, m.scheduler.State())
	assert.Equal(t, 0, m.bell.Count())
	assert.Equal(t, "", m.scheduler.Watcher().LastObservedID())

	// The bell does nothing while signed out.
	m = drain(t, m, keyMsg("b"))
	assert.False(t, m.bell.Open())
}

func TestLoginSubmitStartsSession(t *testing.T) {
	m, f := newApp(t, testutil.Note("A", false))
	require.NoError(t, f.sess.Logout())
	m = drain(t, m, session.AuthChangedMsg{Authenticated: false})

	m.currentView = ViewLogin
	m = drain(t, m, loginSubmitted("fresh-token"))
	assert.Equal(t, "fresh-token", f.sess.Token())
	assert.Equal(t, appsync.StateVisible, m.scheduler.State())
	assert.Equal(t, 1, m.bell.Count())
}

func TestReloginStartsFreshSession(t *testing.T) {
	m, f := newApp(t, testutil.Note("A", false))
	m = drain(t, m, session.AuthChangedMsg{Authenticated: true})
	require.Equal(t, "A", m.scheduler.Watcher().LastObservedID())
	require.Len(t, m.toasts.Toasts(), 1)

	m = drain(t, m, keyMsg("b"))
	require.True(t, m.bell.Open())
	require.Len(t, m.panel.Items(), 1)

	// A list fetch issued under the old token, answered after re-login.
	late := m.panel.Load()()
	lists := f.src.Calls("list")

	m = drain(t, m, keyMsg("L"))
	require.Equal(t, ViewLogin, m.currentView)
	m = drain(t, m, loginSubmitted("other-user-token"))

	assert.Equal(t, "other-user-token", f.sess.Token())
	assert.Equal(t, appsync.StateVisible, m.scheduler.State())
	assert.Empty(t, m.scheduler.Watcher().LastObservedID(), "read head is not recorded")
	assert.Empty(t, m.toasts.Toasts())
	assert.False(t, m.bell.Open())
	assert.Empty(t, m.panel.Items())
	assert.Equal(t, lists+1, f.src.Calls("list"), "fresh check for the new session")

	m = drain(t, m, late)
	assert.Empty(t, m.panel.Items(), "old session result dropped")
}

func TestFilterCommandOpensPanelOnCategory(t *testing.T) {
	business := testutil.Note("B", true)
	business.Category = model.CategoryBusiness
	m, _ := newApp(t, testutil.Note("A", true), business)
	m = drain(t, m, session.AuthChangedMsg{Authenticated: true})

	m = drain(t, m, commandLine("filter business"))
	assert.True(t, m.bell.Open())
	assert.Equal(t, "Business", m.panel.ActiveTab().Label)
	require.Len(t, m.panel.Items(), 1)
	assert.Equal(t, "B", m.panel.Items()[0].ID)

	m = drain(t, m, commandLine("filter nope"))
	assert.True(t, strings.HasPrefix(m.keyHints(), "Unknown filter"))
}

func TestSettingsSaveAppliesWebURL(t *testing.T) {
	m, _ := newApp(t)
	m.saveCfg = func(*model.AppConfig) error { return nil }

	m = drain(t, m, commandLine("settings"))
	require.Equal(t, ViewSettings, m.currentView)

	edited := *m.cfg
	edited.Web.BaseURL = "https://new.example"
	m = drain(t, m, configview.SavedMsg{Config: &edited})
	assert.Equal(t, ViewMain, m.currentView)
	assert.Equal(t, "https://new.example", m.cfg.Web.BaseURL)

	m.saveCfg = nil
	m = drain(t, m, commandLine("settings"))
	assert.Equal(t, ViewMain, m.currentView)
}

func TestUnknownCommandIsReported(t *testing.T) {
	m, _ := newApp(t)
	m = drain(t, m, commandLine("frobnicate"))
	assert.Equal(t, "Unknown command: frobnicate", m.keyHints())
}
