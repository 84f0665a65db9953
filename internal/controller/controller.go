// Package controller coordinates the buffer model, the command protocol and
// the device transport. It owns the single authoritative host-side buffer
// and drives the load and write transactions the firmware expects.
package controller

import (
	"fmt"
	"log"
	"sync"

	"github.com/galvonium/galvolink/internal/device"
	"github.com/galvonium/galvolink/internal/galvo"
	"github.com/galvonium/galvolink/internal/protocol"
)

// Controller sequences protocol exchanges with a Galvonium device. One
// buffer is authoritative at a time; a completed load replaces it wholesale
// so a render pass never observes a half-built buffer.
type Controller struct {
	mu        sync.Mutex
	conn      device.Conn
	buf       *galvo.Buffer
	acc       protocol.DumpAccumulator
	loading   bool
	loadLines int
	cb        Callbacks
}

// New creates a Controller with an empty buffer and the given event
// callbacks.
func New(cb Callbacks) *Controller {
	return &Controller{
		buf: galvo.NewBuffer(),
		cb:  cb,
	}
}

// Use adopts an opened device connection. The caller must have constructed
// the connection with HandleLine as its line handler.
func (c *Controller) Use(conn device.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.loading = false
	c.acc.Reset()
	c.mu.Unlock()
	c.cb.connection(true)
	c.cb.status(fmt.Sprintf("Connected to %s", conn.Name()))
}

// Disconnect closes the current connection, abandoning any in-flight load.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.loading = false
	c.acc.Reset()
	c.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			log.Printf("[controller] close: %v", err)
		}
		c.cb.connection(false)
		c.cb.status("Disconnected")
	}
}

// ConnectionLost is for the transport to report an asynchronous close (port
// unplugged, read failure). The in-flight load, if any, is abandoned; the
// buffer keeps its last authoritative state.
func (c *Controller) ConnectionLost(err error) {
	c.mu.Lock()
	wasAttached := c.conn != nil
	c.conn = nil
	c.loading = false
	c.acc.Reset()
	c.mu.Unlock()

	if !wasAttached {
		return
	}
	if err != nil {
		c.cb.error(fmt.Errorf("controller: connection lost: %w", err))
	}
	c.cb.connection(false)
}

// Connected reports whether a device connection is attached and open.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	return conn != nil && conn.Connected()
}

// Buffer returns the authoritative buffer. Callers mutate it through
// SetStep/ClearBuffer/LoadSteps so change events fire.
func (c *Controller) Buffer() *galvo.Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf
}

// SetStep updates one step of the local buffer.
func (c *Controller) SetStep(index, x, y, flags int) error {
	c.mu.Lock()
	err := c.buf.SetStep(index, x, y, flags)
	buf := c.buf
	c.mu.Unlock()

	if err != nil {
		return err
	}
	c.cb.bufferChanged(buf)
	return nil
}

// ClearBuffer zeroes the local buffer. The device is untouched.
func (c *Controller) ClearBuffer() {
	c.mu.Lock()
	c.buf.Clear()
	buf := c.buf
	c.mu.Unlock()

	c.cb.bufferChanged(buf)
	c.cb.status("Buffer cleared")
}

// LoadSteps bulk-loads the local buffer from (x,y,flags) tuples.
func (c *Controller) LoadSteps(values []galvo.StepValues) error {
	c.mu.Lock()
	err := c.buf.LoadSteps(values)
	buf := c.buf
	c.mu.Unlock()

	if err != nil {
		return err
	}
	c.cb.bufferChanged(buf)
	return nil
}

// sendLine writes one command to the transport and mirrors it to the
// terminal. Caller holds c.mu.
func (c *Controller) sendLine(line string) error {
	if c.conn == nil || !c.conn.Connected() {
		return ErrNotConnected
	}
	if err := c.conn.WriteLine(line); err != nil {
		return err
	}
	c.cb.line(TX, line)
	return nil
}

// Load requests a dump of the given device buffer. The operation completes
// asynchronously when the EOC terminator arrives at HandleLine; there is no
// timeout here; give-up policy belongs to the caller closing the
// connection.
func (c *Controller) Load(target string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.acc.Start()
	c.loading = true
	c.loadLines = 0
	if err := c.sendLine(protocol.Dump(target)); err != nil {
		c.loading = false
		c.acc.Reset()
		return fmt.Errorf("controller: send DUMP: %w", err)
	}
	c.cb.status(fmt.Sprintf("Loading %s buffer...", protocol.NormalizeTarget(target)))
	return nil
}

// Write transfers the local buffer to the device: CLEAR, one WRITE per step
// through the last used index, then SIZE. On a transport failure the
// remaining commands are not sent and the returned WriteAbortedError names
// the command that failed.
func (c *Controller) Write(target string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	seq := c.buf.WriteSequence(target)
	total := len(seq)
	for i, cmd := range seq {
		if err := c.sendLine(cmd); err != nil {
			abort := &WriteAbortedError{Command: cmd, Sent: i, Total: total, Err: err}
			c.cb.error(abort)
			return abort
		}
		c.cb.progress("write", i+1, total)
	}
	c.cb.status(fmt.Sprintf("Buffer written to %s (%d commands)", protocol.NormalizeTarget(target), total))
	return nil
}

// Swap asks the device to exchange its active and inactive buffers.
func (c *Controller) Swap() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sendLine(protocol.Swap()); err != nil {
		return fmt.Errorf("controller: send SWAP: %w", err)
	}
	c.cb.status("Buffers swapped")
	return nil
}

// ClearDevice zeroes a buffer on the device. The local buffer is untouched.
func (c *Controller) ClearDevice(target string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sendLine(protocol.Clear(target)); err != nil {
		return fmt.Errorf("controller: send CLEAR: %w", err)
	}
	return nil
}

// SendCommand passes a raw command line through to the device, for the
// terminal pane.
func (c *Controller) SendCommand(cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLine(cmd)
}

// HandleLine consumes one received line. The transport calls it exactly
// once per line, in arrival order. During a load the line feeds the dump
// accumulator; the terminator completes the operation by replacing the
// authoritative buffer with the decoded dump.
func (c *Controller) HandleLine(line string) {
	c.cb.line(RX, line)

	c.mu.Lock()
	if !c.loading {
		c.mu.Unlock()
		return
	}
	if !c.acc.Feed(line) {
		c.loadLines++
		lines := c.loadLines
		c.mu.Unlock()
		c.cb.progress("load", lines, 0)
		return
	}

	// Terminator seen: decode and replace wholesale. The old buffer stays
	// untouched until the new one is fully built.
	newBuf := galvo.ParseDump(c.acc.Text())
	c.buf = newBuf
	c.loading = false
	c.mu.Unlock()

	c.cb.bufferChanged(newBuf)
	c.cb.status(fmt.Sprintf("Buffer loaded from device (%d steps)", newBuf.SizeForWrite()))
}
