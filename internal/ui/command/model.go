package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/marketbell/internal/theme"
)

// Names of the commands the palette accepts.
const (
	Refresh  = "refresh"
	Login    = "login"
	Logout   = "logout"
	Open     = "open"
	Filter   = "filter"
	Settings = "settings"
	Quit     = "quit"
)

var known = []string{Refresh, Login, Logout, Open, Filter, Settings, Quit}

// CommandMsg is emitted when the user executes a command.
type CommandMsg struct {
	Name string
	Args []string
}

// Parse splits a palette line into a command. Unknown names are
// returned as-is so the caller can report them.
func Parse(line string) (CommandMsg, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return CommandMsg{}, false
	}
	return CommandMsg{Name: strings.ToLower(fields[0]), Args: fields[1:]}, true
}

// Known reports whether name is a palette command.
func Known(name string) bool {
	for _, k := range known {
		if k == name {
			return true
		}
	}
	return false
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "refresh, login, logout, open, filter <tab>, settings, quit"
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions(known)
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.Type == tea.KeyEnter {
		line := m.input.Value()
		m.input.Reset()
		if cmd, ok := Parse(line); ok {
			return m, func() tea.Msg { return cmd }
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Command Palette"),
		m.input.View(),
	)

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
