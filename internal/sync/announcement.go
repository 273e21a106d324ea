package sync

import (
	"strings"

	"github.com/nhle/marketbell/internal/model"
)

// Action is the optional contextual action attached to an announcement.
type Action struct {
	Label string
	// Route is a path on the marketplace web front-end.
	Route string
}

// AnnouncementMsg instructs the toast announcer to show one notice.
type AnnouncementMsg struct {
	NotificationID string
	Title          string
	Message        string
	Priority       model.Priority
	Action         *Action
}

// NewAnnouncement builds the announcement for n.
func NewAnnouncement(n model.Notification) AnnouncementMsg {
	title := n.Title
	if title == "" {
		title = "New notification"
	}
	msg := n.Message
	if name := n.Sender.DisplayName(); name != "" && !strings.Contains(msg, name) {
		msg = name + ": " + msg
	}

	return AnnouncementMsg{
		NotificationID: n.ID,
		Title:          title,
		Message:        msg,
		Priority:       n.Priority,
		Action:         ActionFor(n),
	}
}

// ActionFor resolves where a notification leads. A "link" in the data
// payload wins over the per-type default.
func ActionFor(n model.Notification) *Action {
	if link := n.DataString("link"); strings.HasPrefix(link, "/") {
		return &Action{Label: "Open", Route: link}
	}

	switch n.Type {
	case model.TypeNewMessage:
		if conv := n.DataString("conversationId"); conv != "" {
			return &Action{Label: "Reply", Route: "/messages/" + conv}
		}
		return &Action{Label: "Reply", Route: "/messages"}
	case model.TypeConnectionRequest:
		return &Action{Label: "Review", Route: "/connections/requests"}
	case model.TypeConnectionAccepted, model.TypeConnectionRejected:
		return &Action{Label: "View", Route: "/connections"}
	case model.TypeAchievement:
		return &Action{Label: "View", Route: "/achievements"}
	default:
		return nil
	}
}
