package gpio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakePinsReadInitial(t *testing.T) {
	f := NewFakePins([2]int{1, 0})

	v, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, [2]int{1, 0}, v)
	assert.Equal(t, 1, f.Reads)
}

func TestFakePinsWriteLatches(t *testing.T) {
	f := NewFakePins([2]int{0, 0})

	require.NoError(t, f.Write([2]int{0, 1}))
	v, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, [2]int{0, 1}, v)

	last, ok := f.LastWrite()
	assert.True(t, ok)
	assert.Equal(t, [2]int{0, 1}, last)
}

func TestFakePinsStuck(t *testing.T) {
	f := NewFakePins([2]int{1, 0})
	f.Stuck = true

	require.NoError(t, f.Write([2]int{0, 0}))
	v, _ := f.Read()
	assert.Equal(t, [2]int{1, 0}, v, "stuck pins keep their level")
	assert.Len(t, f.Writes, 1)
}

func TestFakePinsErrors(t *testing.T) {
	f := NewFakePins([2]int{0, 0})
	f.ReadError = errors.New("simulated read error")
	f.WriteError = errors.New("simulated write error")

	_, err := f.Read()
	assert.EqualError(t, err, "simulated read error")
	assert.EqualError(t, f.Write([2]int{1, 0}), "simulated write error")
	_, ok := f.LastWrite()
	assert.False(t, ok)
}

func TestFakePinsClose(t *testing.T) {
	f := NewFakePins([2]int{0, 0})
	assert.False(t, f.Closed)
	assert.NoError(t, f.Close())
	assert.True(t, f.Closed)
}

func TestFakePinsCloseKeepsLevels(t *testing.T) {
	f := NewFakePins([2]int{0, 0})
	require.NoError(t, f.Write([2]int{0, 1}))
	require.NoError(t, f.Close())

	assert.Equal(t, [2]int{0, 1}, f.State)
	assert.Len(t, f.Writes, 1, "close must not drive the lines")
}
