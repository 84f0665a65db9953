// Package galvo holds the host-side model of the device's 256-step motion
// buffer and its translation to and from the wire protocol.
package galvo

import (
	"fmt"

	"github.com/galvonium/galvolink/internal/protocol"
)

// BufferSize is the fixed number of steps in a device buffer.
const BufferSize = 256

// Step is one motion instruction: an X/Y galvo position plus a flags
// bitmask, each an 8-bit value. The index is the step's identity within its
// owning buffer and never changes after construction.
type Step struct {
	index int
	x     uint8
	y     uint8
	flags uint8
}

// Index returns the step's position in its buffer (0-255).
func (s *Step) Index() int { return s.index }

// X returns the X coordinate.
func (s *Step) X() int { return int(s.x) }

// Y returns the Y coordinate.
func (s *Step) Y() int { return int(s.y) }

// Flags returns the flags bitmask.
func (s *Step) Flags() int { return int(s.flags) }

// Set updates all three values atomically: every input is validated against
// [0,255] before any field is touched, so a rejected call leaves the step
// exactly as it was.
func (s *Step) Set(x, y, flags int) error {
	for _, v := range []struct {
		field string
		val   int
	}{{"x", x}, {"y", y}, {"flags", flags}} {
		if v.val < 0 || v.val > 255 {
			return &protocol.RangeError{Field: v.field, Value: v.val, Min: 0, Max: 255}
		}
	}
	s.x = uint8(x)
	s.y = uint8(y)
	s.flags = uint8(flags)
	return nil
}

// IsEmpty reports whether the step carries no data (x, y and flags all zero).
func (s *Step) IsEmpty() bool {
	return s.x == 0 && s.y == 0 && s.flags == 0
}

// WriteCommand renders the step as a WRITE command line for the given
// target buffer. The step's own values are always in range, so encoding
// cannot fail.
func (s *Step) WriteCommand(target string) string {
	cmd, _ := protocol.Write(s.index, int(s.x), int(s.y), int(s.flags), target)
	return cmd
}

// FlagsBinary returns the flags bitmask as an 8-bit binary string, the way
// the dashboard table displays it.
func (s *Step) FlagsBinary() string {
	return fmt.Sprintf("%08b", s.flags)
}

func (s *Step) String() string {
	return fmt.Sprintf("Step[%d]: (%d, %d) flags=%s", s.index, s.x, s.y, s.FlagsBinary())
}
