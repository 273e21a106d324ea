// Package login collects an API token with a huh form.
package login

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/marketbell/internal/theme"
)

// SubmittedMsg carries the token the user entered.
type SubmittedMsg struct {
	Token string
}

// CancelledMsg is sent when the user aborts the form.
type CancelledMsg struct{}

// Model is the token entry form.
type Model struct {
	form   *huh.Form
	token  *string
	reason string
	width  int
}

// New creates a login form. reason, when set, explains why the user is
// asked to log in (for example an expired session).
func New(reason string, width int) Model {
	token := new(string)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API token").
				Description("Bearer token for the marketplace API (see `marketbell token`)").
				EchoMode(huh.EchoModePassword).
				Value(token).
				Validate(validateToken),
		),
	).WithWidth(formWidth(width)).WithShowHelp(true)

	return Model{form: form, token: token, reason: reason, width: width}
}

func validateToken(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("token is required")
	}
	return nil
}

func formWidth(width int) int {
	return max(min(width-8, 72), 20)
}

// Init focuses the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update forwards input to the form and reports completion.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		token := strings.TrimSpace(*m.token)
		return m, func() tea.Msg { return SubmittedMsg{Token: token} }
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelledMsg{} }
	}
	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1).
		Render("Log in")

	parts := []string{title}
	if m.reason != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.reason), "")
	}
	parts = append(parts, m.form.View())

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
