package protocol

import "strings"

// Terminator is the end-of-communication line closing a DUMP response.
const Terminator = "EOC"

// IsTerminator reports whether a received line is the EOC terminator.
// Matching is whitespace-trimmed and case-insensitive; "eoc" and " EOC \r\n"
// terminate, "EOC!" does not.
func IsTerminator(line string) bool {
	return strings.EqualFold(strings.TrimSpace(line), Terminator)
}

// AccumulatorState is the dump accumulator's position in a DUMP exchange.
type AccumulatorState int

const (
	// StateIdle means no dump is in progress.
	StateIdle AccumulatorState = iota
	// StateAccumulating means response lines are being collected.
	StateAccumulating
)

// DumpAccumulator collects DUMP response lines until the EOC terminator
// arrives. It holds raw text only; decoding the finished blob into a buffer
// is galvo.ParseDump's job. Not safe for concurrent use; the transport
// contract delivers lines one at a time in arrival order.
type DumpAccumulator struct {
	state AccumulatorState
	lines []string
}

// State returns the current accumulator state.
func (a *DumpAccumulator) State() AccumulatorState {
	return a.state
}

// Start discards any previously collected lines and begins a new
// accumulation.
func (a *DumpAccumulator) Start() {
	a.state = StateAccumulating
	a.lines = a.lines[:0]
}

// Feed consumes one received line. It returns true when the line is the
// terminator, at which point the accumulator is back in the idle state and
// Text returns the completed blob. Lines fed while idle are ignored.
func (a *DumpAccumulator) Feed(line string) bool {
	if a.state != StateAccumulating {
		return false
	}
	if IsTerminator(line) {
		a.state = StateIdle
		return true
	}
	a.lines = append(a.lines, line)
	return false
}

// Text returns the retained lines joined with single newlines, no trailing
// separator. Empty if nothing was retained.
func (a *DumpAccumulator) Text() string {
	return strings.Join(a.lines, "\n")
}

// Reset abandons any in-progress accumulation.
func (a *DumpAccumulator) Reset() {
	a.state = StateIdle
	a.lines = a.lines[:0]
}

// Accumulate reduces an ordered batch of raw lines into a dump blob. The
// scan stops at the first terminator; the terminator itself and anything
// after it are discarded. terminated reports whether a terminator was seen;
// false means the stream ended mid-dump and the caller owns the give-up
// policy.
func Accumulate(lines []string) (text string, terminated bool) {
	acc := DumpAccumulator{}
	acc.Start()
	for _, line := range lines {
		if acc.Feed(line) {
			return acc.Text(), true
		}
	}
	return acc.Text(), false
}
