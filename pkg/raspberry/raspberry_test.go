package raspberry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmulatorInput(t *testing.T) {
	e := NewEmulator()

	in, err := e.RequestInput(17, PullUp)
	require.NoError(t, err)

	v, err := in.Read()
	require.NoError(t, err)
	assert.True(t, v, "a pulled up line idles high")

	e.SetLevel(17, false)
	v, err = in.Read()
	require.NoError(t, err)
	assert.False(t, v)
}

func TestEmulatorOutput(t *testing.T) {
	e := NewEmulator()

	out, err := e.RequestOutput(27, false)
	require.NoError(t, err)
	assert.False(t, e.Level(27))

	require.NoError(t, out.Set(true))
	assert.True(t, e.Level(27))
}

func TestEmulatorPinUsedTwice(t *testing.T) {
	e := NewEmulator()

	in, err := e.RequestInput(17, None)
	require.NoError(t, err)

	_, err = e.RequestOutput(17, false)
	assert.Error(t, err)

	// a closed pin can be requested again
	require.NoError(t, in.Close())
	_, err = e.RequestOutput(17, false)
	assert.NoError(t, err)
}

func TestEmulatorInvalidTermination(t *testing.T) {
	e := NewEmulator()

	_, err := e.RequestInput(17, "weak")
	assert.ErrorIs(t, err, ErrInvalidParam)
}
