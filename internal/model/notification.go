package model

import (
	"encoding/json"
	"strings"
	"time"
)

// NotificationType identifies the business event behind a notification.
type NotificationType string

const (
	TypeConnectionRequest  NotificationType = "connection_request"
	TypeConnectionAccepted NotificationType = "connection_accepted"
	TypeConnectionRejected NotificationType = "connection_rejected"
	TypeNewMessage         NotificationType = "new_message"
	TypeAchievement        NotificationType = "achievement_unlocked"
	TypeSystem             NotificationType = "system"
)

// Category groups notifications for filtering in the panel.
type Category string

const (
	CategorySocial      Category = "social"
	CategoryBusiness    Category = "business"
	CategorySystem      Category = "system"
	CategoryAchievement Category = "achievement"
)

// Categories lists every category in panel tab order.
var Categories = []Category{
	CategorySocial,
	CategoryBusiness,
	CategorySystem,
	CategoryAchievement,
}

// Priority is the server-assigned urgency of a notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Sender identifies the user whose action produced a notification.
type Sender struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Avatar    string `json:"avatar,omitempty"`
}

// DisplayName returns the sender's full name, or "" for system events.
func (s *Sender) DisplayName() string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Notification mirrors a server-owned notification. The client never
// creates one; it only reads and flips IsRead through the source.
type Notification struct {
	// ID is opaque and stable across fetches.
	ID string `json:"id"`

	Type     NotificationType `json:"type"`
	Category Category         `json:"category"`
	Priority Priority         `json:"priority"`

	Title   string  `json:"title"`
	Message string  `json:"message"`
	Sender  *Sender `json:"sender,omitempty"`

	// Data is an opaque payload used only for action routing.
	Data json.RawMessage `json:"data,omitempty"`

	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`

	// TimeAgo is a presentation string computed by the server.
	// It must never be used for ordering.
	TimeAgo string `json:"timeAgo,omitempty"`
}

// DataString returns a string field from the opaque data payload, or "".
func (n Notification) DataString(key string) string {
	if len(n.Data) == 0 {
		return ""
	}
	var fields map[string]any
	if err := json.Unmarshal(n.Data, &fields); err != nil {
		return ""
	}
	s, _ := fields[key].(string)
	return s
}

// Filter selects notifications server-side. Nil fields are not sent.
type Filter struct {
	IsRead   *bool
	Category *Category
	Limit    int
}

// Unread returns a filter matching unread notifications only.
func Unread() Filter {
	f := false
	return Filter{IsRead: &f}
}

// Newest returns the filter used by the watcher: the single most recent item.
func Newest() Filter {
	return Filter{Limit: 1}
}

// CategoryFor returns the default category of a notification type.
func CategoryFor(t NotificationType) Category {
	switch t {
	case TypeConnectionRequest, TypeConnectionAccepted, TypeConnectionRejected, TypeNewMessage:
		return CategorySocial
	case TypeAchievement:
		return CategoryAchievement
	default:
		return CategorySystem
	}
}
