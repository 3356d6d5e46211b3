package calibration

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_Transitions(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, StateIdle, m.State())

	var seen []State
	m.OnTransition(func(tr Transition) { seen = append(seen, tr.To) })

	require.NoError(t, m.To(StateWaiting, Transition{Index: 0}))
	require.NoError(t, m.To(StateCollecting, Transition{Index: 0}))

	err := m.To(StateTrained, Transition{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateCollecting, m.State(), "rejected transition must not change state")

	require.NoError(t, m.To(StateAggregating, Transition{Index: 0}))
	require.NoError(t, m.To(StateTraining, Transition{}))
	require.NoError(t, m.To(StateTrained, Transition{}))
	assert.True(t, m.State().Terminal())

	assert.Equal(t, []State{StateWaiting, StateCollecting, StateAggregating, StateTraining, StateTrained}, seen)
	assert.Equal(t, StateTraining, m.Last().From)

	m.Reset()
	assert.Equal(t, StateIdle, m.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "collecting", StateCollecting.String())
	assert.Equal(t, "State(42)", State(42).String())

	b, err := StateAborted.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "aborted", string(b))
}

func TestSessions(t *testing.T) {
	store := NewSessions()

	_, ok := store.Get()
	assert.False(t, ok)
	_, err := store.RecordNode(uuid.New(), 0, nil)
	assert.ErrorIs(t, err, ErrNoSession)

	s := store.Start("anchors", 9)
	assert.Equal(t, SessionRunning, s.Status)
	assert.Equal(t, 9, s.TotalNodes)

	_, err = store.RecordNode(uuid.New(), 0, nil)
	assert.ErrorIs(t, err, ErrSessionMismatch)

	s, err = store.RecordNode(s.ID, 0, map[string]any{"x": 192.0})
	require.NoError(t, err)
	s, err = store.RecordNode(s.ID, 0, nil)
	require.NoError(t, err)
	s, err = store.RecordNode(s.ID, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, s.CompletedNodes)
	assert.Equal(t, 2, s.ActiveNode)
	assert.Len(t, s.Events, 3)

	// Snapshots do not alias the store.
	s.CompletedNodes[0] = 99
	cur, _ := store.Get()
	assert.Equal(t, 0, cur.CompletedNodes[0])

	done, err := store.Complete(s.ID)
	require.NoError(t, err)
	assert.Equal(t, SessionCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, 8, done.ActiveNode)

	_, err = store.RecordNode(s.ID, 2, nil)
	assert.ErrorIs(t, err, ErrSessionNotRunning)

	aborted, ok := store.Abort("user quit")
	require.True(t, ok)
	assert.Equal(t, SessionAborted, aborted.Status)
	assert.Equal(t, "user quit", aborted.AbortReason)
}
