package panel

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/marketbell/internal/model"
	"github.com/nhle/marketbell/internal/theme"
)

// Mutation is the state of an optimistic change applied to an item.
type Mutation int

const (
	MutationNone Mutation = iota
	MutationPending
	MutationConfirmed
	MutationFailed
)

func (s Mutation) String() string {
	switch s {
	case MutationPending:
		return "pending"
	case MutationConfirmed:
		return "confirmed"
	case MutationFailed:
		return "failed"
	default:
		return ""
	}
}

// Item wraps a notification for the bubbles list.
type Item struct {
	Notification model.Notification
	Mutation     Mutation
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Notification.Title }

type delegate struct{}

func (delegate) Height() int                         { return 2 }
func (delegate) Spacing() int                        { return 0 }
func (delegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

// Render draws a title line with badges and a message line.
func (delegate) Render(w io.Writer, m list.Model, index int, li list.Item) {
	it, ok := li.(Item)
	if !ok {
		return
	}
	n := it.Notification

	marker := theme.MutedStyle.Render("○")
	title := n.Title
	if !n.IsRead {
		marker = theme.UnreadStyle.Render("●")
		title = theme.UnreadStyle.Render(title)
	}

	badges := []string{
		theme.CategoryStyle(n.Category).Render(strings.ToUpper(string(n.Category))),
	}
	if n.Priority == model.PriorityHigh || n.Priority == model.PriorityUrgent {
		badges = append(badges, theme.PriorityStyle(n.Priority).Render(string(n.Priority)))
	}
	switch it.Mutation {
	case MutationPending:
		badges = append(badges, theme.MutedStyle.Render("…"))
	case MutationFailed:
		badges = append(badges, theme.ErrorStyle.Render("✗ not saved"))
	}

	body := n.Message
	if name := n.Sender.DisplayName(); name != "" {
		body = name + " · " + body
	}
	if n.TimeAgo != "" {
		body += "  " + theme.MutedStyle.Render(n.TimeAgo)
	}

	line := fmt.Sprintf("%s %s %s\n  %s", marker, strings.Join(badges, " "), title, theme.MutedStyle.Render(body))
	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}
	fmt.Fprint(w, line)
}
