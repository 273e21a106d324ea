package sync

import (
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TickMsg is delivered when an armed timer elapses. Ticks from a timer
// that has since been disarmed or re-armed are ignored.
type TickMsg struct {
	TimerID int64
	Gen     uint64
}

var lastTimerID atomic.Int64

// timer is a restartable one-shot tick. Periodic cadence comes from
// re-arming on every fire; disarming bumps the generation so a tick that
// is already scheduled by the runtime is dropped when it arrives.
type timer struct {
	id       int64
	interval time.Duration
	gen      uint64
	armed    bool
}

func newTimer(interval time.Duration) timer {
	return timer{
		id:       lastTimerID.Add(1),
		interval: interval,
	}
}

// arm schedules the next tick and invalidates any previous one.
func (t *timer) arm() tea.Cmd {
	t.gen++
	t.armed = true

	id, gen := t.id, t.gen
	return tea.Tick(t.interval, func(time.Time) tea.Msg {
		return TickMsg{TimerID: id, Gen: gen}
	})
}

func (t *timer) disarm() {
	t.gen++
	t.armed = false
}

// fired reports whether msg is the live tick of this timer.
func (t *timer) fired(msg TickMsg) bool {
	return t.armed && msg.TimerID == t.id && msg.Gen == t.gen
}

// owns reports whether msg was produced by this timer, live or stale.
func (t *timer) owns(msg TickMsg) bool {
	return msg.TimerID == t.id
}
