package sync

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/nhle/marketbell/internal/model"
	"github.com/nhle/marketbell/internal/source"
)

// fetchTimeout is the maximum time allowed for a single background fetch.
const fetchTimeout = 30 * time.Second

// CheckResultMsg carries the outcome of one watcher check.
type CheckResultMsg struct {
	epoch uint64
	Items []model.Notification
	Err   error
}

// Watcher detects notifications that have not been surfaced this session.
// It owns lastObservedID exclusively.
//
// Only the newest item is inspected on each check, so several
// notifications created between two checks collapse into a single
// announcement for the newest one.
type Watcher struct {
	src            source.NotificationSource
	log            logrus.FieldLogger
	lastObservedID string
	busy           bool
	epoch          uint64
}

// NewWatcher creates a watcher reading from src.
func NewWatcher(src source.NotificationSource, log logrus.FieldLogger) *Watcher {
	return &Watcher{
		src: src,
		log: log.WithField("component", "watcher"),
	}
}

// LastObservedID returns the watcher head id.
func (w *Watcher) LastObservedID() string {
	return w.lastObservedID
}

// Busy reports whether a check is in flight.
func (w *Watcher) Busy() bool {
	return w.busy
}

// Check starts one fetch of the newest notification. It returns nil
// while a previous check is still outstanding.
func (w *Watcher) Check() tea.Cmd {
	if w.busy {
		w.log.Debug("previous check still in flight, skipping")
		return nil
	}
	w.busy = true

	src, epoch := w.src, w.epoch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		items, err := src.ListNotifications(ctx, model.Newest())
		return CheckResultMsg{epoch: epoch, Items: items, Err: err}
	}
}

// Observe applies a check result and returns the announcement to emit,
// if the newest item is unread and differs from the head id. Results
// that belong to a previous session are ignored.
func (w *Watcher) Observe(msg CheckResultMsg) (AnnouncementMsg, bool) {
	if msg.epoch != w.epoch {
		return AnnouncementMsg{}, false
	}
	w.busy = false

	if msg.Err != nil {
		w.log.WithError(msg.Err).Warn("checking newest notification")
		return AnnouncementMsg{}, false
	}
	if len(msg.Items) == 0 {
		return AnnouncementMsg{}, false
	}

	head := msg.Items[0]
	if head.ID == w.lastObservedID || head.IsRead {
		return AnnouncementMsg{}, false
	}

	w.lastObservedID = head.ID
	w.log.WithField("id", head.ID).Info("new notification")
	return NewAnnouncement(head), true
}

// Reset forgets the current session. In-flight results are discarded
// when they arrive.
func (w *Watcher) Reset() {
	w.epoch++
	w.busy = false
	w.lastObservedID = ""
}
