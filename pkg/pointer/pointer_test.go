package pointer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	_, _, ok := r.Last()
	assert.False(t, ok)

	require.NoError(t, r.MoveTo(1, 2))
	require.NoError(t, r.MoveTo(3, 4))
	x, y, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, 3, x)
	assert.Equal(t, 4, y)

	moves := r.Moves()
	moves[0] = [2]int{9, 9}
	assert.Equal(t, [][2]int{{1, 2}, {3, 4}}, r.Moves())

	boom := errors.New("boom")
	r.FailWith(boom)
	assert.ErrorIs(t, r.MoveTo(5, 6), boom)
	assert.Len(t, r.Moves(), 2)
}

func TestToggle(t *testing.T) {
	r := NewRecorder()
	tg := NewToggle(r, false)

	require.NoError(t, tg.MoveTo(1, 1))
	assert.Empty(t, r.Moves())

	tg.SetEnabled(true)
	assert.True(t, tg.Enabled())
	require.NoError(t, tg.MoveTo(2, 2))
	assert.Equal(t, [][2]int{{2, 2}}, r.Moves())

	assert.NoError(t, NewToggle(nil, true).MoveTo(0, 0))
}
