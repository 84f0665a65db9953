package device

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// demoStep mirrors one firmware buffer slot.
type demoStep struct {
	x, y, flags uint8
}

// demoBuffer mirrors one on-device buffer: 256 slots plus the declared step
// count that DUMP iterates over.
type demoBuffer struct {
	steps [256]demoStep
	count int
}

// DemoConn emulates the Galvonium firmware's serial command handler for
// development and testing without hardware. Command parsing and reply text
// follow the board's behavior: WRITE/CLEAR/SWAP/DUMP/SIZE with an optional
// ACTIVE/INACTIVE modifier, OK/ERR acknowledgements, and DUMP responses
// framed by DUMP START / DUMP END / EOC.
//
// Replies are delivered on a dedicated goroutine, one line per handler call
// in order, matching the real transport's contract.
type DemoConn struct {
	handler LineHandler

	mu        sync.Mutex
	active    demoBuffer
	inactive  demoBuffer
	connected bool
	out       chan string
	done      chan struct{}
}

// NewDemoConn creates an emulated device.
func NewDemoConn(handler LineHandler) *DemoConn {
	return &DemoConn{handler: handler}
}

func (d *DemoConn) Name() string { return "Demo (Emulated Galvonium)" }

// Open starts the reply delivery goroutine and announces the boot banner the
// firmware prints after reset.
func (d *DemoConn) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.connected {
		return fmt.Errorf("demo: already open")
	}
	d.out = make(chan string, 1024)
	d.done = make(chan struct{})
	d.connected = true

	go func(out chan string, done chan struct{}) {
		defer close(done)
		for line := range out {
			if d.handler != nil {
				d.handler(line)
			}
		}
	}(d.out, d.done)

	d.out <- "Galvonium ready."
	return nil
}

// Close stops reply delivery. Pending replies are flushed first.
func (d *DemoConn) Close() error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return nil
	}
	d.connected = false
	close(d.out)
	done := d.done
	d.mu.Unlock()

	<-done
	return nil
}

func (d *DemoConn) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// WriteLine accepts one command line and queues the firmware's replies.
func (d *DemoConn) WriteLine(line string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return fmt.Errorf("demo: not connected")
	}
	for _, reply := range d.execute(line) {
		d.out <- reply
	}
	return nil
}

// selectBuffer resolves an optional ACTIVE/INACTIVE modifier the way the
// firmware does: only the first letter is inspected, missing means INACTIVE.
func (d *DemoConn) selectBuffer(modifier string) (*demoBuffer, bool, bool) {
	if modifier == "" {
		return &d.inactive, false, true
	}
	switch modifier[0] {
	case 'A':
		return &d.active, true, true
	case 'I':
		return &d.inactive, false, true
	}
	return nil, false, false
}

// execute runs one command and returns the reply lines. Caller holds d.mu.
func (d *DemoConn) execute(line string) []string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	verb, args := fields[0], fields[1:]

	switch verb {
	case "WRITE":
		return d.execWrite(args)
	case "CLEAR":
		return d.execClear(args)
	case "SWAP":
		d.active, d.inactive = d.inactive, d.active
		return []string{"OK"}
	case "DUMP":
		return d.execDump(args)
	case "SIZE":
		return d.execSize(args)
	default:
		return []string{"ERR: Unknown command"}
	}
}

func (d *DemoConn) execWrite(args []string) []string {
	if len(args) < 4 {
		return []string{"ERR: Usage WRITE idx x y flags [ACTIVE|INACTIVE]"}
	}
	idx, err1 := strconv.Atoi(args[0])
	x, err2 := strconv.Atoi(args[1])
	y, err3 := strconv.Atoi(args[2])
	flags, err4 := strconv.Atoi(args[3])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || idx < 0 || x < 0 || y < 0 {
		return []string{"ERR: Usage WRITE idx x y flags [ACTIVE|INACTIVE]"}
	}

	modifier := ""
	if len(args) > 4 {
		modifier = args[4]
	}
	buf, useActive, ok := d.selectBuffer(modifier)
	if !ok {
		return []string{"ERR: Buffer modifier must be ACTIVE or INACTIVE"}
	}
	if idx > 255 {
		return []string{"ERR: Index out of range"}
	}
	buf.steps[idx] = demoStep{x: uint8(x), y: uint8(y), flags: uint8(flags)}

	ack := " OK"
	if useActive {
		ack = " OK (active buffer modified!)"
	}
	return []string{fmt.Sprintf("%d: %d, %d,%d%s", idx, x, y, flags, ack)}
}

func (d *DemoConn) execClear(args []string) []string {
	modifier := ""
	if len(args) > 0 {
		modifier = args[0]
	}
	buf, useActive, ok := d.selectBuffer(modifier)
	if !ok {
		return []string{"ERR: Buffer modifier must be ACTIVE or INACTIVE"}
	}
	*buf = demoBuffer{}
	if useActive {
		return []string{"OK (active buffer cleared!)"}
	}
	return []string{"OK"}
}

func (d *DemoConn) execDump(args []string) []string {
	modifier := ""
	if len(args) > 0 {
		modifier = args[0]
	}
	buf, useActive, ok := d.selectBuffer(modifier)
	if !ok {
		return []string{"ERR: Buffer modifier must be ACTIVE or INACTIVE", "EOC"}
	}
	name := "INACTIVE"
	if useActive {
		name = "ACTIVE"
	}

	lines := make([]string, 0, buf.count+4)
	lines = append(lines, fmt.Sprintf("DUMP START (%s)", name))
	lines = append(lines, fmt.Sprintf("Buffer Steps: %d", buf.count))
	for i := 0; i < buf.count; i++ {
		s := buf.steps[i]
		lines = append(lines, fmt.Sprintf("%d: %d,%d %d", i, s.x, s.y, s.flags))
	}
	lines = append(lines, "DUMP END", "EOC")
	return lines
}

func (d *DemoConn) execSize(args []string) []string {
	if len(args) < 1 {
		return []string{"ERR: Usage SIZE n [ACTIVE|INACTIVE]"}
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 || n > 256 {
		return []string{"ERR: Usage SIZE n [ACTIVE|INACTIVE]"}
	}

	modifier := ""
	if len(args) > 1 {
		modifier = args[1]
	}
	buf, useActive, ok := d.selectBuffer(modifier)
	if !ok {
		return []string{"ERR: Buffer modifier must be ACTIVE or INACTIVE"}
	}
	buf.count = n
	if useActive {
		return []string{"OK (active buffer size changed!)"}
	}
	return []string{"OK"}
}
