package calibration

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/teslashibe/go-eyecue/internal/log"
)

// State is a calibration run phase.
type State int

const (
	StateIdle State = iota
	StateWaiting
	StateCollecting
	StateAggregating
	StateMoving
	StateTraining
	StateTrained
	StateFailed
	StateAborted
)

var stateNames = [...]string{
	StateIdle:        "idle",
	StateWaiting:     "waiting",
	StateCollecting:  "collecting",
	StateAggregating: "aggregating",
	StateMoving:      "moving",
	StateTraining:    "training",
	StateTrained:     "trained",
	StateFailed:      "failed",
	StateAborted:     "aborted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether the run has ended.
func (s State) Terminal() bool {
	return s == StateTrained || s == StateFailed || s == StateAborted
}

// transitions lists the allowed next states. Burst deadlines show up as
// Collecting -> Waiting (retry) or Collecting -> Aggregating.
var transitions = map[State][]State{
	StateIdle:        {StateWaiting, StateMoving, StateFailed, StateAborted},
	StateWaiting:     {StateCollecting, StateFailed, StateAborted},
	StateCollecting:  {StateAggregating, StateWaiting, StateFailed, StateAborted},
	StateAggregating: {StateWaiting, StateMoving, StateTraining, StateFailed, StateAborted},
	StateMoving:      {StateTraining, StateFailed, StateAborted},
	StateTraining:    {StateTrained, StateFailed},
	StateTrained:     {StateIdle},
	StateFailed:      {StateIdle},
	StateAborted:     {StateIdle},
}

// Transition is one observable state change.
type Transition struct {
	From   State     `json:"from"`
	To     State     `json:"to"`
	Index  int       `json:"index"` // anchor index, -1 outside the anchor protocol
	Total  int       `json:"total"`
	Target Target    `json:"target"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// Machine tracks the calibration state. Safe for concurrent use; observers
// run synchronously on the goroutine that made the transition.
type Machine struct {
	mu        sync.RWMutex
	state     State
	last      Transition
	observers []func(Transition)
}

// NewMachine creates a machine in StateIdle.
func NewMachine() *Machine {
	return &Machine{last: Transition{Index: -1}}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Last returns the most recent transition.
func (m *Machine) Last() Transition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// OnTransition registers an observer.
func (m *Machine) OnTransition(fn func(Transition)) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// To moves to next. Disallowed moves return ErrInvalidTransition and leave
// the state unchanged.
func (m *Machine) To(next State, t Transition) error {
	m.mu.Lock()
	from := m.state
	if !allowed(from, next) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next)
	}
	t.From, t.To = from, next
	if t.At.IsZero() {
		t.At = time.Now()
	}
	m.state = next
	m.last = t
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	log.Debug("calibration state", "from", from, "to", next, "index", t.Index, "reason", t.Reason)
	for _, fn := range observers {
		fn(t)
	}
	return nil
}

// Reset forces the machine back to idle, abandoning any unfinished run.
func (m *Machine) Reset() {
	m.mu.Lock()
	from := m.state
	m.state = StateIdle
	m.last = Transition{From: from, To: StateIdle, Index: -1, At: time.Now()}
	m.mu.Unlock()
}

func allowed(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
