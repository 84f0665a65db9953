package galvo

import (
	"regexp"
	"strconv"
	"strings"
)

// dumpLinePattern matches one step line of a DUMP response:
//
//	<index>: <x>,<y> <flags>
//
// e.g. "0: 128,64 255". The colon may be followed by optional whitespace.
var dumpLinePattern = regexp.MustCompile(`^(\d+):\s*(\d+),(\d+)\s+(\d+)$`)

// ParseDump decodes an accumulated DUMP blob (terminator already stripped)
// into a brand-new Buffer. Lines that do not match the step pattern (the
// firmware's "DUMP START"/"DUMP END" framing, status chatter, partial lines
// from a live serial stream) are skipped silently, as are step lines whose
// index or values fall outside the 8-bit domain. Indices absent from the
// input stay at their empty default, and out-of-order indices land at their
// stated positions. Bad input can therefore never corrupt a partially-built
// buffer: the result is always a fully-formed Buffer.
func ParseDump(text string) *Buffer {
	buf := NewBuffer()
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		m := dumpLinePattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		index, err := strconv.Atoi(m[1])
		if err != nil || index < 0 || index >= BufferSize {
			continue
		}
		x, errX := strconv.Atoi(m[2])
		y, errY := strconv.Atoi(m[3])
		flags, errF := strconv.Atoi(m[4])
		if errX != nil || errY != nil || errF != nil {
			continue
		}
		if buf.SetStep(index, x, y, flags) != nil {
			// Out-of-range value: treat the whole line as malformed.
			continue
		}
	}
	return buf
}

// DumpText renders the buffer as the device would dump it, one step line per
// index through LastUsedIndex. It is the inverse of ParseDump for any buffer
// state and is used by the demo device and round-trip tests.
func (b *Buffer) DumpText() string {
	last := b.LastUsedIndex()
	lines := make([]string, 0, last+1)
	for i := 0; i <= last; i++ {
		s := &b.steps[i]
		lines = append(lines, strconv.Itoa(i)+": "+strconv.Itoa(int(s.x))+","+strconv.Itoa(int(s.y))+" "+strconv.Itoa(int(s.flags)))
	}
	return strings.Join(lines, "\n")
}
