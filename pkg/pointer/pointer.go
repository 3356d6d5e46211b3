// Package pointer moves the system cursor.
package pointer

import (
	"sync"
)

// Actuator moves the pointer to an absolute screen position.
type Actuator interface {
	MoveTo(x, y int) error
}

// Recorder is an in-memory Actuator for tests and dry runs.
type Recorder struct {
	mu    sync.Mutex
	moves [][2]int
	err   error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// FailWith makes subsequent moves return err without recording.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// MoveTo implements Actuator.
func (r *Recorder) MoveTo(x, y int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.moves = append(r.moves, [2]int{x, y})
	return nil
}

// Moves returns a copy of every recorded position.
func (r *Recorder) Moves() [][2]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][2]int, len(r.moves))
	copy(out, r.moves)
	return out
}

// Last returns the most recent position.
func (r *Recorder) Last() (x, y int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.moves) == 0 {
		return 0, 0, false
	}
	m := r.moves[len(r.moves)-1]
	return m[0], m[1], true
}

// Toggle wraps an Actuator with an on/off switch. Moves while disabled
// are dropped.
type Toggle struct {
	mu      sync.RWMutex
	inner   Actuator
	enabled bool
}

// NewToggle wraps a.
func NewToggle(a Actuator, enabled bool) *Toggle {
	return &Toggle{inner: a, enabled: enabled}
}

// SetEnabled switches actuation on or off.
func (t *Toggle) SetEnabled(on bool) {
	t.mu.Lock()
	t.enabled = on
	t.mu.Unlock()
}

// Enabled reports whether moves are forwarded.
func (t *Toggle) Enabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// MoveTo implements Actuator.
func (t *Toggle) MoveTo(x, y int) error {
	t.mu.RLock()
	on, inner := t.enabled, t.inner
	t.mu.RUnlock()
	if !on || inner == nil {
		return nil
	}
	return inner.MoveTo(x, y)
}
