package app

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/nhle/marketbell/internal/keys"
	"github.com/nhle/marketbell/internal/model"
	"github.com/nhle/marketbell/internal/notify"
	"github.com/nhle/marketbell/internal/session"
	"github.com/nhle/marketbell/internal/source"
	appsync "github.com/nhle/marketbell/internal/sync"
	"github.com/nhle/marketbell/internal/theme"
	"github.com/nhle/marketbell/internal/ui"
	"github.com/nhle/marketbell/internal/ui/bell"
	"github.com/nhle/marketbell/internal/ui/command"
	configview "github.com/nhle/marketbell/internal/ui/config"
	helpview "github.com/nhle/marketbell/internal/ui/help"
	"github.com/nhle/marketbell/internal/ui/login"
	"github.com/nhle/marketbell/internal/ui/panel"
	"github.com/nhle/marketbell/internal/ui/toast"
)

const title = "Marketbell"

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewMain ViewState = iota
	ViewHelp
	ViewCommand
	ViewLogin
	ViewSettings
)

// Deps are the collaborators of the root model.
type Deps struct {
	Config   *model.AppConfig
	Source   source.NotificationSource
	Session  *session.Session
	Notifier notify.Notifier
	Log      logrus.FieldLogger
	// Clipboard receives action links. Defaults to the system clipboard.
	Clipboard func(string) error
	// SaveConfig persists edited settings. The settings view is
	// unavailable when nil.
	SaveConfig func(*model.AppConfig) error
	// Probe tests an API base URL before settings are saved. Defaults to
	// an unread count request with the session token.
	Probe configview.Prober
}

// Model is the root Bubble Tea model. It routes the visibility and
// session signals to the background components and owns view routing.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap

	cfg       *model.AppConfig
	session   *session.Session
	notifier  notify.Notifier
	log       logrus.FieldLogger
	clipboard func(string) error
	saveCfg   func(*model.AppConfig) error
	probe     configview.Prober

	scheduler *appsync.Scheduler
	tracker   *appsync.UnreadTracker

	bell        bell.Model
	panel       panel.Model
	toasts      toast.Model
	helpView    helpview.Model
	commandView command.Model
	loginView   login.Model
	settings    configview.Model

	ready  bool
	status string
}

// New creates the root model. Nothing polls until Init reports the
// session state.
func New(d Deps) Model {
	k := keys.DefaultKeyMap()
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = notify.Nop()
	}
	clip := d.Clipboard
	if clip == nil {
		clip = clipboard.WriteAll
	}

	probe := d.Probe
	if probe == nil {
		probe = configview.NewProber(d.Session, d.Config.APITimeout())
	}

	watcher := appsync.NewWatcher(d.Source, log)

	m := Model{
		currentView: ViewMain,
		keys:        k,
		cfg:         d.Config,
		session:     d.Session,
		notifier:    notifier,
		log:         log,
		clipboard:   clip,
		saveCfg:     d.SaveConfig,
		probe:       probe,
		scheduler:   appsync.NewScheduler(watcher, d.Config.WatchInterval()),
		tracker:     appsync.NewUnreadTracker(d.Source, d.Config.UnreadInterval(), log),
		bell:        bell.New(d.Source, log),
		panel:       panel.New(d.Source, k, log, 80, 24),
		toasts:      toast.New(d.Config.ToastDuration()),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		loginView:   login.New("", 80),
	}
	m.helpView.SetStatus(fmt.Sprintf(
		"While this terminal has focus, new notifications are checked every %s and the unread count refreshes every %s.",
		d.Config.WatchInterval(), d.Config.UnreadInterval(),
	))
	if !d.Session.Authenticated() {
		m.currentView = ViewLogin
	}
	return m
}

// Init reports the restored session state to the background components.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{session.Changed(m.session.Authenticated())}
	if m.currentView == ViewLogin {
		cmds = append(cmds, m.loginView.Init())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.panel.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		m.toasts.SetWidth(contentWidth)
		if m.currentView == ViewSettings {
			m.settings.SetSize(contentWidth, contentHeight)
		}
		if m.currentView == ViewLogin {
			var cmd tea.Cmd
			m.loginView, cmd = m.loginView.Update(msg)
			return m, cmd
		}
		return m, nil

	// Terminal focus is the visibility signal.
	case tea.FocusMsg, tea.ResumeMsg:
		return m, m.setVisible(true)

	case tea.BlurMsg:
		return m, m.setVisible(false)

	case session.AuthChangedMsg:
		return m, m.applyAuth(msg.Authenticated)

	case session.ExpiredMsg:
		if !m.session.Authenticated() {
			return m, nil
		}
		m.log.WithField("reason", msg.Reason).Info("session expired")
		m.session.Expire()
		cmd := m.applyAuth(false)
		return m, tea.Batch(cmd, m.openLogin("Session expired: "+msg.Reason))

	case appsync.TickMsg:
		cmd := tea.Batch(m.scheduler.Update(msg), m.tracker.Update(msg))
		m.bell.SetCount(m.tracker.Count())
		return m, cmd

	case appsync.CheckResultMsg:
		return m, m.scheduler.Update(msg)

	case appsync.RefreshUnreadMsg, appsync.UnreadCountMsg:
		cmd := m.tracker.Update(msg)
		m.bell.SetCount(m.tracker.Count())
		return m, cmd

	case appsync.AnnouncementMsg:
		var cmd tea.Cmd
		m.toasts, cmd = m.toasts.Update(msg)
		return m, tea.Batch(cmd, m.desktop(msg))

	case bell.ToggledMsg:
		if msg.Open {
			return m, m.panel.Load()
		}
		return m, nil

	case bell.MarkedAllMsg:
		if m.bell.Open() {
			return m, m.panel.Load()
		}
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(msg)

	case login.SubmittedMsg:
		if m.currentView != ViewLogin {
			return m, nil
		}
		m.currentView = ViewMain
		relogin := m.session.Authenticated()
		if err := m.session.Login(msg.Token); err != nil {
			m.log.WithError(err).Warn("logging in")
			m.status = "Could not log in: " + err.Error()
			return m, nil
		}
		m.status = "Logged in"
		// A new token is a new session. Tear the old one down so its
		// state and in-flight results are dropped before starting again.
		var teardown tea.Cmd
		if relogin {
			teardown = m.applyAuth(false)
		}
		return m, tea.Batch(teardown, session.Changed(true))

	case configview.SavedMsg:
		m.cfg.Web = msg.Config.Web
		m.cfg.Toast.Desktop = msg.Config.Toast.Desktop
		m.currentView = ViewMain
		m.status = "Settings saved. Polling and API changes apply after restart."
		return m, nil

	case configview.DoneMsg:
		m.currentView = ViewMain
		return m, nil

	case login.CancelledMsg:
		if m.currentView != ViewLogin {
			return m, nil
		}
		m.currentView = ViewMain
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateComponents(msg)
}

// applyAuth starts or stops everything that depends on a session.
func (m *Model) applyAuth(auth bool) tea.Cmd {
	if !auth {
		m.bell.Reset()
		m.panel.Reset()
		m.toasts.Clear()
	}
	cmd := tea.Batch(
		m.scheduler.SetAuthenticated(auth).Cmd(),
		m.tracker.SetAuthenticated(auth),
	)
	m.bell.SetCount(m.tracker.Count())
	return cmd
}

func (m *Model) setVisible(visible bool) tea.Cmd {
	return tea.Batch(
		m.scheduler.SetVisible(visible).Cmd(),
		m.tracker.SetVisible(visible),
	)
}

// updateComponents forwards results addressed to a component's private
// message types. Each component ignores what is not its own.
func (m Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.bell, cmd = m.bell.Update(msg)
	cmds = append(cmds, cmd)
	m.panel, cmd = m.panel.Update(msg)
	cmds = append(cmds, cmd)
	m.toasts, cmd = m.toasts.Update(msg)
	cmds = append(cmds, cmd)

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
		cmds = append(cmds, cmd)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
		cmds = append(cmds, cmd)
	case ViewSettings:
		m.settings, cmd = m.settings.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.currentView {
	case ViewLogin:
		if key.Matches(msg, m.keys.Back) {
			m.currentView = ViewMain
			return m, nil
		}
		var cmd tea.Cmd
		m.loginView, cmd = m.loginView.Update(msg)
		return m, cmd

	case ViewCommand:
		if key.Matches(msg, m.keys.Back) || key.Matches(msg, m.keys.Command) {
			m.currentView = m.previousView
			return m, nil
		}
		var cmd tea.Cmd
		m.commandView, cmd = m.commandView.Update(msg)
		return m, cmd

	case ViewSettings:
		var cmd tea.Cmd
		m.settings, cmd = m.settings.Update(msg)
		return m, cmd

	case ViewHelp:
		if key.Matches(msg, m.keys.Back) || key.Matches(msg, m.keys.Help) {
			m.currentView = m.previousView
		}
		return m, nil
	}

	m.status = ""
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m, m.commandView.Focus()

	case key.Matches(msg, m.keys.Login):
		return m, m.openLogin("")

	case key.Matches(msg, m.keys.Bell):
		if !m.session.Authenticated() {
			m.status = "Not logged in. Press L to log in."
			return m, nil
		}
		var cmd tea.Cmd
		m.bell, cmd = m.bell.Toggle()
		return m, cmd

	case key.Matches(msg, m.keys.Back):
		m.bell.Close()
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refresh()

	case key.Matches(msg, m.keys.Open):
		m.openAction()
		return m, nil
	}

	if m.bell.Open() {
		var cmd tea.Cmd
		m.panel, cmd = m.panel.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) openLogin(reason string) tea.Cmd {
	m.previousView = ViewMain
	m.currentView = ViewLogin
	m.loginView = login.New(reason, m.layout.ContentWidth())
	return m.loginView.Init()
}

func (m *Model) openSettings() tea.Cmd {
	if m.saveCfg == nil {
		m.status = "Settings cannot be saved in this session"
		return nil
	}
	m.currentView = ViewSettings
	m.settings = configview.New(m.cfg, m.probe, m.saveCfg, m.layout.ContentWidth(), m.layout.ContentHeight())
	return m.settings.Init()
}

// refresh checks for new notifications and refetches the count and,
// when shown, the list.
func (m *Model) refresh() tea.Cmd {
	if !m.session.Authenticated() {
		return nil
	}
	cmds := []tea.Cmd{m.tracker.Refresh()}
	if m.scheduler.State() != appsync.StateIdle {
		cmds = append(cmds, m.scheduler.Watcher().Check())
	}
	if m.bell.Open() {
		cmds = append(cmds, m.panel.Load())
	}
	return tea.Batch(cmds...)
}

// openAction copies the web link of the newest toast action.
func (m *Model) openAction() {
	action, ok := m.toasts.LatestAction()
	if !ok {
		m.status = "Nothing to open"
		return
	}
	link := m.cfg.Web.BaseURL + action.Route
	if err := m.clipboard(link); err != nil {
		m.log.WithError(err).Warn("copying link")
		m.status = action.Label + ": " + link
		return
	}
	m.status = "Copied " + link
}

// desktop mirrors an announcement to the desktop when enabled.
func (m Model) desktop(ann appsync.AnnouncementMsg) tea.Cmd {
	if !m.cfg.Toast.Desktop {
		return nil
	}
	n := notify.Notification{
		Title:   ann.Title,
		Body:    ann.Message,
		Timeout: int32(m.cfg.ToastDuration().Milliseconds()),
		Urgency: notify.UrgencyFor(ann.Priority),
	}
	notifier, log := m.notifier, m.log
	return func() tea.Msg {
		if err := notifier.Notify(n); err != nil {
			log.WithError(err).Warn("sending desktop notification")
		}
		return nil
	}
}

// executeCommand handles a command from the command palette.
func (m *Model) executeCommand(cmd command.CommandMsg) tea.Cmd {
	switch cmd.Name {
	case command.Refresh:
		return m.refresh()
	case command.Login:
		return m.openLogin("")
	case command.Logout:
		if err := m.session.Logout(); err != nil {
			m.log.WithError(err).Warn("logging out")
		}
		m.status = "Logged out"
		return session.Changed(false)
	case command.Open:
		m.openAction()
		return nil
	case command.Filter:
		return m.filter(cmd.Args)
	case command.Settings:
		return m.openSettings()
	case command.Quit:
		return tea.Quit
	default:
		m.status = "Unknown command: " + cmd.Name
		return nil
	}
}

// filter selects a panel tab by name and shows the panel.
func (m *Model) filter(args []string) tea.Cmd {
	if len(args) == 0 {
		m.status = "Usage: filter all|unread|<category>"
		return nil
	}

	var load tea.Cmd
	switch name := strings.ToLower(args[0]); name {
	case "all":
		load = m.panel.SetTab(0)
	case "unread":
		load = m.panel.SetTab(1)
	default:
		load = m.panel.SetCategory(model.Category(name))
		if load == nil {
			m.status = "Unknown filter: " + name
			return nil
		}
	}

	if m.bell.Open() || !m.session.Authenticated() {
		return load
	}
	var cmd tea.Cmd
	m.bell, cmd = m.bell.Toggle()
	return cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(title, m.scheduler.State().String(), m.bell.View())
	content := m.renderContent()
	if stack := m.toasts.View(); stack != "" {
		content = lipgloss.JoinVertical(lipgloss.Left,
			content,
			lipgloss.PlaceHorizontal(m.layout.ContentWidth(), lipgloss.Right, stack),
		)
	}
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewLogin:
		return m.loginView.View()
	case ViewSettings:
		return m.settings.View()
	}

	if m.bell.Open() {
		return m.panel.View()
	}
	hint := "Press b to open your notifications."
	if !m.session.Authenticated() {
		hint = "Not logged in. Press L to log in."
	}
	return theme.PanelStyle.
		Width(m.layout.ContentWidth() - 4).
		Render(theme.MutedStyle.Render(hint))
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.status != "" && m.currentView == ViewMain {
		return m.status
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return ": close command | enter execute | esc back"
	case ViewLogin:
		return "enter submit | esc cancel"
	case ViewSettings:
		return "enter next | shift+tab back | esc cancel"
	}
	if m.bell.Open() {
		return "m read | d delete | D delete all | tab filter | c category | esc close"
	}
	return "b bell | o copy link | r refresh | : command | ? help | q quit"
}
