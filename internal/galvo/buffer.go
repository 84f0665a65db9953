package galvo

import (
	"fmt"

	"github.com/galvonium/galvolink/internal/protocol"
)

// Buffer is the host-side image of one on-device motion buffer: exactly 256
// steps, index equal to slot position, never resized. A Buffer owns its
// steps for its whole lifetime; loading from the device replaces the Buffer
// wholesale rather than mutating it in place.
type Buffer struct {
	steps [BufferSize]Step
}

// NewBuffer returns a buffer with all 256 steps empty.
func NewBuffer() *Buffer {
	b := &Buffer{}
	for i := range b.steps {
		b.steps[i].index = i
	}
	return b
}

// Clear resets every step to (0,0,0).
func (b *Buffer) Clear() {
	for i := range b.steps {
		b.steps[i].x = 0
		b.steps[i].y = 0
		b.steps[i].flags = 0
	}
}

// Step returns the step at index, or a RangeError if index is outside
// [0,255].
func (b *Buffer) Step(index int) (*Step, error) {
	if index < 0 || index >= BufferSize {
		return nil, &protocol.RangeError{Field: "index", Value: index, Min: 0, Max: BufferSize - 1}
	}
	return &b.steps[index], nil
}

// SetStep validates the index and then the three values; the step is
// updated all-or-nothing.
func (b *Buffer) SetStep(index, x, y, flags int) error {
	step, err := b.Step(index)
	if err != nil {
		return err
	}
	return step.Set(x, y, flags)
}

// LastUsedIndex returns the highest index holding a non-empty step, or 0 for
// an entirely empty buffer. The scan runs top-down every call: steps can be
// mutated through Step handles, so no cached value could be trusted.
//
// An all-zero buffer is indistinguishable from a buffer whose only entry is
// a zero step at index 0. That is a property of the wire encoding, not a bug.
func (b *Buffer) LastUsedIndex() int {
	for i := BufferSize - 1; i >= 0; i-- {
		if !b.steps[i].IsEmpty() {
			return i
		}
	}
	return 0
}

// SizeForWrite returns the entry count declared by the SIZE command:
// LastUsedIndex()+1, so never less than 1.
func (b *Buffer) SizeForWrite() int {
	return b.LastUsedIndex() + 1
}

// WriteCommands renders one WRITE line per step from 0 through
// LastUsedIndex inclusive. Empty steps inside that range are sent as
// explicit zero writes: gaps are part of the motion sequence, not an
// encoding shortcut to skip.
func (b *Buffer) WriteCommands(target string) []string {
	last := b.LastUsedIndex()
	cmds := make([]string, 0, last+1)
	for i := 0; i <= last; i++ {
		cmds = append(cmds, b.steps[i].WriteCommand(target))
	}
	return cmds
}

// SizeCommand renders the SIZE command for the buffer's current extent.
func (b *Buffer) SizeCommand(target string) string {
	cmd, _ := protocol.Size(b.SizeForWrite(), target)
	return cmd
}

// WriteSequence is the complete transfer transaction the firmware expects:
// CLEAR first, then every WRITE, then SIZE to finalize the entry count.
func (b *Buffer) WriteSequence(target string) []string {
	cmds := make([]string, 0, b.SizeForWrite()+2)
	cmds = append(cmds, protocol.Clear(target))
	cmds = append(cmds, b.WriteCommands(target)...)
	cmds = append(cmds, b.SizeCommand(target))
	return cmds
}

// StepValues is one (x, y, flags) tuple for bulk loading.
type StepValues struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Flags int `json:"flags"`
}

// LoadSteps clears the buffer and loads tuples positionally from index 0.
// Tuples beyond the 256th are ignored. On a validation error the buffer
// keeps the tuples applied so far; the error names the offending field.
func (b *Buffer) LoadSteps(values []StepValues) error {
	b.Clear()
	for i, v := range values {
		if i >= BufferSize {
			break
		}
		if err := b.SetStep(i, v.X, v.Y, v.Flags); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

// Snapshot returns a copy of all 256 step values for rendering or
// serialization. The copy shares nothing with the live buffer.
func (b *Buffer) Snapshot() []StepValues {
	out := make([]StepValues, BufferSize)
	for i := range b.steps {
		out[i] = StepValues{X: int(b.steps[i].x), Y: int(b.steps[i].y), Flags: int(b.steps[i].flags)}
	}
	return out
}

// Equal reports whether two buffers hold identical step values.
func (b *Buffer) Equal(other *Buffer) bool {
	if other == nil {
		return false
	}
	for i := range b.steps {
		if b.steps[i].x != other.steps[i].x ||
			b.steps[i].y != other.steps[i].y ||
			b.steps[i].flags != other.steps[i].flags {
			return false
		}
	}
	return true
}

func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer: %d steps used", b.SizeForWrite())
}
