// Package device provides the transport layer between the controller and a
// Galvonium device: a line-oriented connection over a real serial port, plus
// an in-process emulator for hardware-free runs.
package device

// LineHandler receives decoded lines from the device. The transport calls it
// with exactly one line per invocation, in the order the bytes arrived, with
// line terminators stripped. Handlers run on the connection's reader
// goroutine and should return promptly.
type LineHandler func(line string)

// Conn is a line-oriented device connection. The controller drives it and
// knows nothing about ports, threads or byte framing.
type Conn interface {
	// Name returns a human-readable description of the connection.
	Name() string
	// Open establishes the connection and starts line delivery.
	Open() error
	// Close shuts the connection down; no lines are delivered afterwards.
	Close() error
	// Connected reports whether the connection is open.
	Connected() bool
	// WriteLine sends a single command line, appending the newline itself.
	// Concurrent callers are serialized so two commands never interleave.
	WriteLine(line string) error
}
