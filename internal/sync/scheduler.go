package sync

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/marketbell/internal/session"
	"github.com/nhle/marketbell/internal/source"
)

// State is the scheduler's position in its lifecycle.
type State int

const (
	// StateIdle means no session; no timers are armed.
	StateIdle State = iota
	// StateVisible means the periodic timer is armed.
	StateVisible
	// StateHidden means the session is live but the terminal is not
	// focused; polling is suspended.
	StateHidden
)

func (s State) String() string {
	switch s {
	case StateVisible:
		return "watching"
	case StateHidden:
		return "paused"
	default:
		return "signed out"
	}
}

// Transition is what the caller must run after a scheduler input.
// Check performs one immediate watcher check; Tick arms the next periodic
// tick. Either may be nil.
type Transition struct {
	Check tea.Cmd
	Tick  tea.Cmd
}

// Cmd batches the transition into a single command.
func (t Transition) Cmd() tea.Cmd {
	return tea.Batch(t.Check, t.Tick)
}

// Scheduler decides when the watcher polls. It is driven entirely by
// explicit inputs: SetAuthenticated, SetVisible and its own ticks.
type Scheduler struct {
	state   State
	visible bool
	timer   timer
	watcher *Watcher
}

// NewScheduler creates an idle scheduler polling w every interval.
// The terminal is assumed visible until told otherwise.
func NewScheduler(w *Watcher, interval time.Duration) *Scheduler {
	return &Scheduler{
		state:   StateIdle,
		visible: true,
		timer:   newTimer(interval),
		watcher: w,
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return s.state
}

// Armed reports whether a periodic tick is scheduled.
func (s *Scheduler) Armed() bool {
	return s.timer.armed
}

// Watcher returns the watcher driven by this scheduler.
func (s *Scheduler) Watcher() *Watcher {
	return s.watcher
}

// SetAuthenticated moves the scheduler in or out of Idle. Entering
// from Idle while visible checks immediately and arms the timer.
func (s *Scheduler) SetAuthenticated(auth bool) Transition {
	if !auth {
		if s.state != StateIdle {
			s.timer.disarm()
			s.watcher.Reset()
			s.state = StateIdle
		}
		return Transition{}
	}

	if s.state != StateIdle {
		return Transition{}
	}
	if !s.visible {
		s.state = StateHidden
		return Transition{}
	}
	return s.enterVisible()
}

// SetVisible records the visibility signal. Becoming visible while
// hidden checks immediately before resuming the cadence.
func (s *Scheduler) SetVisible(visible bool) Transition {
	s.visible = visible

	switch {
	case s.state == StateVisible && !visible:
		s.timer.disarm()
		s.state = StateHidden
	case s.state == StateHidden && visible:
		return s.enterVisible()
	}
	return Transition{}
}

// HandleTick runs a periodic check for a live tick. It reports false
// when msg belongs to a different timer.
func (s *Scheduler) HandleTick(msg TickMsg) (Transition, bool) {
	if !s.timer.owns(msg) {
		return Transition{}, false
	}
	if !s.timer.fired(msg) || s.state != StateVisible {
		return Transition{}, true
	}
	return Transition{
		Check: s.watcher.Check(),
		Tick:  s.timer.arm(),
	}, true
}

// Update routes scheduler and watcher messages. An announcement is
// emitted together with an unread count refresh trigger.
func (s *Scheduler) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case TickMsg:
		tr, _ := s.HandleTick(msg)
		return tr.Cmd()

	case CheckResultMsg:
		if s.state == StateIdle {
			return nil
		}
		if source.IsAuthError(msg.Err) && msg.epoch == s.watcher.epoch {
			s.watcher.busy = false
			return session.Expired(source.Reason(msg.Err))
		}
		ann, ok := s.watcher.Observe(msg)
		if !ok {
			return nil
		}
		return tea.Batch(
			func() tea.Msg { return ann },
			RefreshUnread(),
		)
	}
	return nil
}

func (s *Scheduler) enterVisible() Transition {
	s.state = StateVisible
	return Transition{
		Check: s.watcher.Check(),
		Tick:  s.timer.arm(),
	}
}
