package controller

import "github.com/galvonium/galvolink/internal/galvo"

// Direction labels a traffic line for the terminal pane.
type Direction string

const (
	// TX is a line sent to the device.
	TX Direction = "tx"
	// RX is a line received from the device.
	RX Direction = "rx"
)

// Callbacks is the controller's event surface. The dashboard server
// registers these to push state to clients; any field may be nil. Callbacks
// fire on the goroutine that triggered them (line events on the transport's
// reader goroutine) so implementations should hand off quickly.
type Callbacks struct {
	// BufferChanged fires when the authoritative buffer is mutated locally
	// or replaced wholesale by a completed device load.
	BufferChanged func(buf *galvo.Buffer)

	// Line fires once per raw protocol line, sent or received, in order.
	Line func(dir Direction, line string)

	// Progress fires during a multi-command transfer with the number of
	// commands sent so far out of the total.
	Progress func(op string, sent, total int)

	// Status fires with short human-readable operation updates.
	Status func(msg string)

	// Error fires when an operation fails asynchronously.
	Error func(err error)

	// Connection fires when the device connection is established or lost.
	Connection func(connected bool)
}

func (cb *Callbacks) bufferChanged(buf *galvo.Buffer) {
	if cb.BufferChanged != nil {
		cb.BufferChanged(buf)
	}
}

func (cb *Callbacks) line(dir Direction, line string) {
	if cb.Line != nil {
		cb.Line(dir, line)
	}
}

func (cb *Callbacks) progress(op string, sent, total int) {
	if cb.Progress != nil {
		cb.Progress(op, sent, total)
	}
}

func (cb *Callbacks) status(msg string) {
	if cb.Status != nil {
		cb.Status(msg)
	}
}

func (cb *Callbacks) error(err error) {
	if cb.Error != nil {
		cb.Error(err)
	}
}

func (cb *Callbacks) connection(connected bool) {
	if cb.Connection != nil {
		cb.Connection(connected)
	}
}
