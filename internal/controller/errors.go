package controller

import "fmt"

// WriteAbortedError reports a transfer that failed partway: the command at
// the given position never reached the transport and no later command was
// sent. Commands already sent cannot be recalled; the protocol has no
// rollback, so the device buffer may be left inconsistent until the next
// full write.
type WriteAbortedError struct {
	// Command is the line that failed to send.
	Command string
	// Sent is how many commands of the sequence reached the transport.
	Sent int
	// Total is the full sequence length (CLEAR + writes + SIZE).
	Total int
	// Err is the underlying transport failure.
	Err error
}

func (e *WriteAbortedError) Error() string {
	return fmt.Sprintf("write aborted after %d/%d commands at %q: %v", e.Sent, e.Total, e.Command, e.Err)
}

func (e *WriteAbortedError) Unwrap() error { return e.Err }

// ErrNotConnected is returned by operations that need an open device
// connection.
var ErrNotConnected = fmt.Errorf("controller: not connected to device")
