package shape

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCell(t *testing.T) {
	var c Cell[int]
	calls := 0
	fn := func() (int, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.Get(fn)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, 1, calls)
}

func TestCell_Panic(t *testing.T) {
	var c Cell[string]
	boom := errors.New("boom")

	_, err := c.Get(func() (string, error) { panic(boom) })
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	_, err = c.Get(func() (string, error) { return "ok", nil })
	assert.ErrorIs(t, err, boom)

	var s Cell[string]
	_, err = s.Get(func() (string, error) { panic("bad") })
	assert.ErrorContains(t, err, "bad")
}
