package galvo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galvonium/galvolink/internal/protocol"
)

func TestStepSetRoundTrip(t *testing.T) {
	buf := NewBuffer()
	step, err := buf.Step(7)
	require.NoError(t, err)

	for _, v := range []int{0, 1, 127, 128, 254, 255} {
		require.NoError(t, step.Set(v, v, v))
		assert.Equal(t, v, step.X())
		assert.Equal(t, v, step.Y())
		assert.Equal(t, v, step.Flags())
	}
}

func TestStepSetRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name      string
		x, y, f   int
		wantField string
	}{
		{name: "x negative", x: -1, y: 0, f: 0, wantField: "x"},
		{name: "x too large", x: 256, y: 0, f: 0, wantField: "x"},
		{name: "y too large", x: 0, y: 300, f: 0, wantField: "y"},
		{name: "flags too large", x: 0, y: 0, f: 1000, wantField: "flags"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewBuffer()
			step, err := buf.Step(3)
			require.NoError(t, err)
			require.NoError(t, step.Set(10, 20, 30))

			err = step.Set(tt.x, tt.y, tt.f)
			require.Error(t, err)
			var rangeErr *protocol.RangeError
			require.ErrorAs(t, err, &rangeErr)
			assert.Equal(t, tt.wantField, rangeErr.Field)

			// Atomic: the rejected call left every field untouched.
			assert.Equal(t, 10, step.X())
			assert.Equal(t, 20, step.Y())
			assert.Equal(t, 30, step.Flags())
		})
	}
}

func TestStepIsEmpty(t *testing.T) {
	buf := NewBuffer()
	step, _ := buf.Step(0)
	assert.True(t, step.IsEmpty())

	require.NoError(t, step.Set(0, 0, 1))
	assert.False(t, step.IsEmpty())

	require.NoError(t, step.Set(0, 0, 0))
	assert.True(t, step.IsEmpty())
}

func TestStepWriteCommand(t *testing.T) {
	buf := NewBuffer()
	step, _ := buf.Step(10)
	require.NoError(t, step.Set(128, 64, 240))

	assert.Equal(t, "WRITE 10 128 64 240 INACTIVE", step.WriteCommand("INACTIVE"))
	assert.Equal(t, "WRITE 10 128 64 240 ACTIVE", step.WriteCommand("active"))
	assert.Equal(t, "WRITE 10 128 64 240 INACTIVE", step.WriteCommand(""))
}

func TestStepFlagsBinary(t *testing.T) {
	buf := NewBuffer()
	step, _ := buf.Step(0)
	require.NoError(t, step.Set(0, 0, 240))
	assert.Equal(t, "11110000", step.FlagsBinary())

	require.NoError(t, step.Set(0, 0, 5))
	assert.Equal(t, "00000101", step.FlagsBinary())
}
