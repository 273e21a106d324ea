// Package config edits the client settings and tests the API connection
// before saving them.
package config

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/marketbell/internal/model"
	"github.com/nhle/marketbell/internal/source"
	"github.com/nhle/marketbell/internal/source/rest"
	"github.com/nhle/marketbell/internal/theme"
)

// Mode is the current step of the settings view.
type Mode int

const (
	ModeForm       Mode = iota // Editing fields
	ModeValidating             // Testing connection
	ModeResult                 // Connection failed
)

// SavedMsg is sent after the settings were written.
type SavedMsg struct {
	Config *model.AppConfig
}

// DoneMsg signals the settings view should close without saving.
type DoneMsg struct{}

// ValidateResultMsg carries the result of a connection test.
type ValidateResultMsg struct {
	Err error
}

type savedInternalMsg struct {
	cfg *model.AppConfig
	err error
}

// Prober reaches the API at baseURL and reports whether it answered.
type Prober func(ctx context.Context, baseURL string) error

// Saver persists cfg.
type Saver func(cfg *model.AppConfig) error

// NewProber returns a Prober that fetches the unread count with tokens.
// A rejected token still proves the server is reachable.
func NewProber(tokens rest.TokenSource, timeout time.Duration) Prober {
	return func(ctx context.Context, baseURL string) error {
		_, err := rest.NewAdapter(baseURL, tokens, timeout).UnreadCount(ctx)
		if source.IsAuthError(err) {
			return nil
		}
		return err
	}
}

// Model is the settings view.
type Model struct {
	mode  Mode
	form  *huh.Form
	base  *model.AppConfig
	probe Prober
	save  Saver

	// Form field values (huh binds to these)
	fields *fields

	validError error
	statusMsg  string
	spinner    spinner.Model

	width, height int
}

type fields struct {
	apiURL        string
	webURL        string
	watchInterval string
	unreadPeriod  string
	toastDuration string
	desktop       bool
}

// New creates a settings view editing a copy of cfg.
func New(cfg *model.AppConfig, probe Prober, save Saver, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		base:    cfg,
		probe:   probe,
		save:    save,
		spinner: sp,
		width:   width,
		height:  height,
	}
	m.reset()
	return m
}

func (m *Model) reset() {
	m.mode = ModeForm
	m.validError = nil
	m.fields = &fields{
		apiURL:        m.base.API.BaseURL,
		webURL:        m.base.Web.BaseURL,
		watchInterval: strconv.Itoa(m.base.Polling.WatchIntervalSec),
		unreadPeriod:  strconv.Itoa(m.base.Polling.UnreadIntervalSec),
		toastDuration: strconv.Itoa(m.base.Toast.DurationSec),
		desktop:       m.base.Toast.Desktop,
	}
	m.form = m.buildForm()
}

// Init focuses the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Mode returns the current step.
func (m Model) Mode() Mode {
	return m.mode
}

func (m Model) buildForm() *huh.Form {
	f := m.fields
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API base URL").
				Description("Notification API root (e.g., https://market.example.com/api)").
				Value(&f.apiURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Web base URL").
				Description("Prefix for links copied from toasts").
				Value(&f.webURL).
				Validate(validateURL),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Check interval (seconds)").
				Description(fmt.Sprintf("How often to look for new notifications, at least %d", model.MinWatchInterval)).
				Value(&f.watchInterval).
				Validate(validateSeconds(model.MinWatchInterval)),
			huh.NewInput().
				Title("Unread count interval (seconds)").
				Value(&f.unreadPeriod).
				Validate(validateSeconds(1)),
			huh.NewInput().
				Title("Toast duration (seconds)").
				Value(&f.toastDuration).
				Validate(validateSeconds(1)),
			huh.NewConfirm().
				Title("Desktop notifications").
				Description("Mirror toasts to the desktop notification daemon").
				Value(&f.desktop),
		),
	).WithWidth(m.formWidth())
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ValidateResultMsg:
		if m.mode != ModeValidating {
			return m, nil
		}
		if msg.Err != nil {
			m.validError = msg.Err
			m.mode = ModeResult
			return m, nil
		}
		return m, m.persist()

	case savedInternalMsg:
		if msg.err != nil {
			m.validError = fmt.Errorf("save failed: %w", msg.err)
			m.mode = ModeResult
			return m, nil
		}
		m.base = msg.cfg
		m.reset()
		cfg := msg.cfg
		return m, func() tea.Msg { return SavedMsg{Config: cfg} }

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeValidating:
			if msg.String() == "esc" {
				m.mode = ModeForm
				m.reset()
			}
			return m, nil
		case ModeResult:
			return m.handleResultKeys(msg)
		}
		if msg.String() == "esc" {
			m.reset()
			return m, func() tea.Msg { return DoneMsg{} }
		}
	}

	if m.mode != ModeForm {
		return m, nil
	}
	return m.updateForm(msg)
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.mode = ModeValidating
		return m, tea.Batch(m.spinner.Tick, m.validate())
	case huh.StateAborted:
		m.reset()
		return m, func() tea.Msg { return DoneMsg{} }
	}
	return m, cmd
}

func (m Model) handleResultKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "r":
		m.mode = ModeValidating
		m.validError = nil
		return m, tea.Batch(m.spinner.Tick, m.validate())
	case "s":
		m.mode = ModeValidating
		return m, m.persist()
	case "esc", "enter":
		m.reset()
		return m, func() tea.Msg { return DoneMsg{} }
	}
	return m, nil
}

// candidate returns the edited configuration. Fields were validated by
// the form.
func (m Model) candidate() *model.AppConfig {
	cfg := *m.base
	f := m.fields
	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(f.apiURL), "/")
	cfg.Web.BaseURL = strings.TrimRight(strings.TrimSpace(f.webURL), "/")
	cfg.Polling.WatchIntervalSec, _ = strconv.Atoi(strings.TrimSpace(f.watchInterval))
	cfg.Polling.UnreadIntervalSec, _ = strconv.Atoi(strings.TrimSpace(f.unreadPeriod))
	cfg.Toast.DurationSec, _ = strconv.Atoi(strings.TrimSpace(f.toastDuration))
	cfg.Toast.Desktop = f.desktop
	return &cfg
}

func (m Model) validate() tea.Cmd {
	probe, baseURL, timeout := m.probe, m.candidate().API.BaseURL, m.base.APITimeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return ValidateResultMsg{Err: probe(ctx, baseURL)}
	}
}

func (m Model) persist() tea.Cmd {
	save, cfg := m.save, m.candidate()
	return func() tea.Msg {
		return savedInternalMsg{cfg: cfg, err: save(cfg)}
	}
}

// View renders the current step.
func (m Model) View() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	var content string
	switch m.mode {
	case ModeValidating:
		content = fmt.Sprintf("%s Testing connection...\n\nPress esc to cancel.", m.spinner.View())
	case ModeResult:
		errStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorRed)
		content = errStyle.Render("Connection failed") + "\n\n" +
			source.Reason(m.validError) + "\n\n" +
			lipgloss.NewStyle().Foreground(theme.ColorGray).
				Render("r retry | s save anyway | esc back")
	default:
		content = m.form.View()
	}

	return style.Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Settings"), content))
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.form = m.form.WithWidth(m.formWidth())
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://example.com)")
	}
	return nil
}

func validateSeconds(minimum int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("must be a whole number of seconds")
		}
		if n < minimum {
			return fmt.Errorf("must be at least %d", minimum)
		}
		return nil
	}
}
