// Package panel implements the notification list. Every filter change
// is a fresh server-side fetch that fully replaces the displayed set.
package panel

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/nhle/marketbell/internal/keys"
	"github.com/nhle/marketbell/internal/model"
	"github.com/nhle/marketbell/internal/session"
	"github.com/nhle/marketbell/internal/source"
	"github.com/nhle/marketbell/internal/sync"
	"github.com/nhle/marketbell/internal/theme"
	"github.com/nhle/marketbell/internal/ui/toast"
)

const callTimeout = 30 * time.Second

// Tab is one filter of the panel.
type Tab struct {
	Label  string
	Filter model.Filter
}

// Tabs returns the panel filters: all, unread, then one per category.
func Tabs() []Tab {
	tabs := []Tab{
		{Label: "All"},
		{Label: "Unread", Filter: model.Unread()},
	}
	for _, c := range model.Categories {
		c := c
		tabs = append(tabs, Tab{
			Label:  strings.ToUpper(string(c[:1])) + string(c[1:]),
			Filter: model.Filter{Category: &c},
		})
	}
	return tabs
}

// categoryStart is the index of the first category tab.
const categoryStart = 2

type loadedMsg struct {
	gen   uint64
	seq   uint64
	items []model.Notification
	err   error
}

type mutationMsg struct {
	gen uint64
	op  source.Op
	id  string
	err error
}

// Model is the notification list panel.
type Model struct {
	src  source.NotificationSource
	log  logrus.FieldLogger
	keys *keys.KeyMap

	tabs   []Tab
	active int

	items     []model.Notification
	mutations map[string]Mutation

	// seq identifies the latest fetch; older responses are dropped.
	seq uint64
	// gen changes on Reset so results from a previous session are dropped.
	gen uint64

	loading bool
	loadErr string

	list   list.Model
	width  int
	height int
}

// New creates a panel reading from src.
func New(src source.NotificationSource, k *keys.KeyMap, log logrus.FieldLogger, width, height int) Model {
	l := list.New([]list.Item{}, delegate{}, width, height)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	return Model{
		src:       src,
		log:       log.WithField("component", "panel"),
		keys:      k,
		tabs:      Tabs(),
		mutations: map[string]Mutation{},
		list:      l,
		width:     width,
		height:    height,
	}
}

// Items returns the displayed notifications.
func (m Model) Items() []model.Notification {
	return m.items
}

// MutationOf returns the optimistic state of the item with id.
func (m Model) MutationOf(id string) Mutation {
	return m.mutations[id]
}

// ActiveTab returns the current filter tab.
func (m Model) ActiveTab() Tab {
	return m.tabs[m.active]
}

// Loading reports whether a fetch is outstanding.
func (m Model) Loading() bool {
	return m.loading
}

// Load fetches the active filter. Any earlier fetch still in flight
// becomes stale.
func (m *Model) Load() tea.Cmd {
	m.seq++
	m.loading = true

	src, filter, gen, seq := m.src, m.tabs[m.active].Filter, m.gen, m.seq
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		items, err := src.ListNotifications(ctx, filter)
		return loadedMsg{gen: gen, seq: seq, items: items, err: err}
	}
}

// SetTab switches to tab i and fetches it.
func (m *Model) SetTab(i int) tea.Cmd {
	n := len(m.tabs)
	m.active = ((i % n) + n) % n
	return m.Load()
}

// SetCategory switches to the tab of category c.
func (m *Model) SetCategory(c model.Category) tea.Cmd {
	for i, t := range m.tabs {
		if t.Filter.Category != nil && *t.Filter.Category == c {
			return m.SetTab(i)
		}
	}
	return nil
}

// Reset clears the panel for a signed-out session.
func (m *Model) Reset() {
	m.gen++
	m.seq++
	m.active = 0
	m.items = nil
	m.mutations = map[string]Mutation{}
	m.loading = false
	m.loadErr = ""
	m.sync()
}

// Update handles fetch and mutation results and panel keys.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		return m.applyLoaded(msg)

	case mutationMsg:
		return m.applyMutation(msg)

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) applyLoaded(msg loadedMsg) (Model, tea.Cmd) {
	if msg.gen != m.gen || msg.seq != m.seq {
		return m, nil
	}
	m.loading = false

	if msg.err != nil {
		m.log.WithError(msg.err).Warn("loading notifications")
		m.loadErr = source.Reason(msg.err)
		if source.IsAuthError(msg.err) {
			return m, session.Expired(m.loadErr)
		}
		return m, nil
	}

	m.loadErr = ""
	m.items = msg.items
	m.mutations = map[string]Mutation{}
	m.sync()
	return m, nil
}

func (m Model) applyMutation(msg mutationMsg) (Model, tea.Cmd) {
	if msg.gen != m.gen {
		return m, nil
	}

	if msg.err != nil {
		m.log.WithError(msg.err).WithField("op", msg.op).Warn("notification action failed")
		if msg.id != "" {
			m.mutations[msg.id] = MutationFailed
			m.sync()
		}
		if source.IsAuthError(msg.err) {
			return m, session.Expired(source.Reason(msg.err))
		}
		return m, toast.Error(source.UserMessage(msg.op, msg.err))
	}

	if msg.id != "" {
		m.mutations[msg.id] = MutationConfirmed
		m.sync()
	}
	return m, sync.RefreshUnread()
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.NextTab):
		cmd := m.SetTab(m.active + 1)
		return m, cmd

	case key.Matches(msg, m.keys.PrevTab):
		cmd := m.SetTab(m.active - 1)
		return m, cmd

	case key.Matches(msg, m.keys.Category):
		next := categoryStart
		if m.active >= categoryStart {
			next = categoryStart + (m.active-categoryStart+1)%len(model.Categories)
		}
		cmd := m.SetTab(next)
		return m, cmd

	case key.Matches(msg, m.keys.MarkRead):
		return m.markSelected()

	case key.Matches(msg, m.keys.Delete):
		return m.deleteSelected()

	case key.Matches(msg, m.keys.DeleteAll):
		return m.deleteAll()
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// markSelected flips the selected item to read before the remote call.
// A failed call leaves the item read and tags it.
func (m Model) markSelected() (Model, tea.Cmd) {
	n, ok := m.selected()
	if !ok || n.IsRead {
		return m, nil
	}

	for i := range m.items {
		if m.items[i].ID == n.ID {
			m.items[i].IsRead = true
		}
	}
	m.mutations[n.ID] = MutationPending
	m.sync()

	return m, m.mutate(source.OpMarkRead, n.ID, func(ctx context.Context) error {
		return m.src.MarkAsRead(ctx, n.ID)
	})
}

// deleteSelected removes the selected item before the remote call.
func (m Model) deleteSelected() (Model, tea.Cmd) {
	n, ok := m.selected()
	if !ok {
		return m, nil
	}

	kept := make([]model.Notification, 0, len(m.items))
	for _, it := range m.items {
		if it.ID != n.ID {
			kept = append(kept, it)
		}
	}
	m.items = kept
	m.sync()

	return m, m.mutate(source.OpDelete, "", func(ctx context.Context) error {
		return m.src.DeleteNotification(ctx, n.ID)
	})
}

// deleteAll clears the list and issues one bulk call. The call removes
// every notification on the server, so it only runs from the All tab.
// An empty local list still issues it.
func (m Model) deleteAll() (Model, tea.Cmd) {
	if m.active != 0 {
		return m, toast.Error("Delete all is only available on the All tab")
	}
	m.items = nil
	m.mutations = map[string]Mutation{}
	m.sync()

	return m, m.mutate(source.OpDeleteAll, "", m.src.DeleteAll)
}

// mutate runs call in the background. id names the item whose tag the
// result updates; it is empty when the item is no longer displayed.
func (m Model) mutate(op source.Op, id string, call func(context.Context) error) tea.Cmd {
	gen := m.gen
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		return mutationMsg{gen: gen, op: op, id: id, err: call(ctx)}
	}
}

// sync rebuilds the list items from the displayed set.
func (m *Model) sync() {
	items := make([]list.Item, len(m.items))
	for i, n := range m.items {
		items[i] = Item{Notification: n, Mutation: m.mutations[n.ID]}
	}
	m.list.SetItems(items)
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width-4, max(height-4, 1))
}

// View renders the tabs and the list.
func (m Model) View() string {
	tabs := make([]string, len(m.tabs))
	for i, t := range m.tabs {
		label := " " + t.Label + " "
		if i == m.active {
			tabs[i] = theme.HeaderStyle.Render(label)
		} else {
			tabs[i] = theme.MutedStyle.Render(label)
		}
	}

	var body string
	switch {
	case m.loadErr != "":
		body = theme.ErrorStyle.Render("Could not load notifications: " + m.loadErr)
	case m.loading && len(m.items) == 0:
		body = theme.MutedStyle.Render("Loading…")
	case len(m.items) == 0:
		body = theme.MutedStyle.Render("No notifications")
	default:
		body = m.list.View()
	}

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, lipgloss.JoinHorizontal(lipgloss.Top, tabs...), "", body))
}
