// Package notify mirrors announcements to the desktop notification
// daemon over D-Bus.
package notify

import "github.com/nhle/marketbell/internal/model"

// Urgency is the freedesktop notification urgency level.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// Notification is one desktop notification.
type Notification struct {
	Title   string
	Body    string
	Timeout int32 // ms, -1 = server default
	Urgency Urgency
}

// Notifier sends desktop notifications.
type Notifier interface {
	// Notify sends n. It returns nil when no daemon is available.
	Notify(n Notification) error
	Close() error
}

// UrgencyFor maps a notification priority to a desktop urgency.
func UrgencyFor(p model.Priority) Urgency {
	switch p {
	case model.PriorityLow:
		return UrgencyLow
	case model.PriorityHigh, model.PriorityUrgent:
		return UrgencyCritical
	default:
		return UrgencyNormal
	}
}

// Nop returns a notifier that drops everything.
func Nop() Notifier {
	return nopNotifier{}
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) error { return nil }
func (nopNotifier) Close() error              { return nil }
