package device

import (
	"bufio"
	"fmt"
	"log"
	"sync"

	"go.bug.st/serial"
)

// SerialConfig holds connection settings for a real device.
type SerialConfig struct {
	PortPath string `yaml:"port_path" json:"portPath"`
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
}

// SerialConn talks to a Galvonium board over a serial port. A dedicated
// reader goroutine scans incoming bytes into lines and hands each one to the
// LineHandler; writes go through a single mutex-guarded path so concurrent
// senders cannot interleave bytes of two commands.
type SerialConn struct {
	portPath string
	baudRate int
	handler  LineHandler

	mu        sync.Mutex
	port      serial.Port
	connected bool

	writeMu sync.Mutex

	onClosed func(err error)
}

// NewSerialConn creates a serial connection. handler receives every decoded
// line; onClosed, if non-nil, is called once when the reader loop ends (nil
// error for a local Close, otherwise the read failure).
func NewSerialConn(cfg SerialConfig, handler LineHandler, onClosed func(err error)) *SerialConn {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 9600
	}
	return &SerialConn{
		portPath: cfg.PortPath,
		baudRate: cfg.BaudRate,
		handler:  handler,
		onClosed: onClosed,
	}
}

func (c *SerialConn) Name() string {
	return fmt.Sprintf("%s @ %d", c.portPath, c.baudRate)
}

// Open opens the port and starts the reader goroutine.
func (c *SerialConn) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return fmt.Errorf("serial: %s already open", c.portPath)
	}

	mode := &serial.Mode{
		BaudRate: c.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(c.portPath, mode)
	if err != nil {
		return fmt.Errorf("serial: failed to open %s: %w", c.portPath, err)
	}

	c.port = port
	c.connected = true
	log.Printf("[serial] opened %s at %d baud", c.portPath, c.baudRate)

	go c.readLoop(port)
	return nil
}

// readLoop delivers lines one at a time, in arrival order, until the port
// is closed or reading fails. Closing the port from Close unblocks the
// pending read.
func (c *SerialConn) readLoop(port serial.Port) {
	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		line := scanner.Text()
		if c.handler != nil {
			c.handler(line)
		}
	}
	err := scanner.Err()

	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.port = nil
	c.mu.Unlock()

	if wasConnected && err != nil {
		log.Printf("[serial] read loop ended: %v", err)
	}
	if c.onClosed != nil {
		if wasConnected {
			c.onClosed(err)
		} else {
			c.onClosed(nil)
		}
	}
}

// Close stops the reader and closes the port.
func (c *SerialConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false
	err := c.port.Close()
	c.port = nil
	if err != nil {
		return fmt.Errorf("serial: close %s: %w", c.portPath, err)
	}
	return nil
}

// Connected reports whether the port is open.
func (c *SerialConn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// WriteLine sends one command line terminated with '\n'.
func (c *SerialConn) WriteLine(line string) error {
	c.mu.Lock()
	port := c.port
	connected := c.connected
	c.mu.Unlock()

	if !connected || port == nil {
		return fmt.Errorf("serial: not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := port.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("serial: write failed: %w", err)
	}
	return nil
}

// ListPorts enumerates the serial ports visible on this machine.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("serial: list ports: %w", err)
	}
	return ports, nil
}
