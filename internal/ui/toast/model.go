// Package toast renders transient notices for announcements and
// user-action failures.
package toast

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/marketbell/internal/model"
	"github.com/nhle/marketbell/internal/sync"
	"github.com/nhle/marketbell/internal/theme"
)

// maxVisible bounds how many toasts are stacked on screen.
const maxVisible = 3

// ErrorMsg asks the announcer to show a failure notice.
type ErrorMsg struct {
	Text string
}

// Error returns a command emitting ErrorMsg.
func Error(text string) tea.Cmd {
	return func() tea.Msg { return ErrorMsg{Text: text} }
}

type expireMsg struct {
	id int
}

// Toast is one displayed notice.
type Toast struct {
	ID       int
	Title    string
	Message  string
	Priority model.Priority
	Action   *sync.Action
	Error    bool
}

// Model stacks toasts, newest last. It does not deduplicate.
type Model struct {
	toasts   []Toast
	nextID   int
	duration time.Duration
	width    int
}

// New creates an announcer whose toasts stay up for duration.
func New(duration time.Duration) Model {
	return Model{duration: duration}
}

// Update handles announcements, error notices and expiry.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case sync.AnnouncementMsg:
		return m.push(Toast{
			Title:    msg.Title,
			Message:  msg.Message,
			Priority: msg.Priority,
			Action:   msg.Action,
		})

	case ErrorMsg:
		return m.push(Toast{Title: "Error", Message: msg.Text, Error: true})

	case expireMsg:
		for i, t := range m.toasts {
			if t.ID == msg.id {
				m.toasts = append(m.toasts[:i:i], m.toasts[i+1:]...)
				break
			}
		}
	}
	return m, nil
}

func (m Model) push(t Toast) (Model, tea.Cmd) {
	m.nextID++
	t.ID = m.nextID
	m.toasts = append(m.toasts, t)

	id := t.ID
	return m, tea.Tick(m.duration, func(time.Time) tea.Msg {
		return expireMsg{id: id}
	})
}

// Toasts returns the toasts currently displayed.
func (m Model) Toasts() []Toast {
	return m.toasts
}

// LatestAction returns the action of the newest toast that has one.
func (m Model) LatestAction() (*sync.Action, bool) {
	for i := len(m.toasts) - 1; i >= 0; i-- {
		if a := m.toasts[i].Action; a != nil {
			return a, true
		}
	}
	return nil, false
}

// Clear drops every toast.
func (m *Model) Clear() {
	m.toasts = nil
}

// SetWidth sets the maximum toast width.
func (m *Model) SetWidth(width int) {
	m.width = width
}

// View renders the visible stack, or "" when empty.
func (m Model) View() string {
	if len(m.toasts) == 0 {
		return ""
	}

	visible := m.toasts
	if len(visible) > maxVisible {
		visible = visible[len(visible)-maxVisible:]
	}

	width := min(max(m.width/2, 30), 60)
	rendered := make([]string, 0, len(visible))
	for _, t := range visible {
		rendered = append(rendered, render(t, width))
	}
	return lipgloss.JoinVertical(lipgloss.Right, rendered...)
}

func render(t Toast, width int) string {
	style := theme.ToastStyle
	title := lipgloss.NewStyle().Bold(true).Render(t.Title)
	if t.Error {
		style = theme.ToastErrorStyle
		title = theme.ErrorStyle.Bold(true).Render(t.Title)
	} else if t.Priority == model.PriorityHigh || t.Priority == model.PriorityUrgent {
		title = theme.PriorityStyle(t.Priority).Render("! " + t.Title)
	}

	lines := []string{title}
	if t.Message != "" {
		lines = append(lines, t.Message)
	}
	if t.Action != nil {
		lines = append(lines, theme.HelpStyle.Render("o: "+t.Action.Label+" ("+t.Action.Route+")"))
	}
	return style.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
