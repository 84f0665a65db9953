package device

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galvonium/galvolink/internal/galvo"
	"github.com/galvonium/galvolink/internal/protocol"
)

// collector gathers handler lines for assertions. DemoConn delivers on its
// own goroutine so access is locked.
type collector struct {
	mu    sync.Mutex
	lines []string
}

func (c *collector) handle(line string) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
}

func (c *collector) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// waitFor polls until the predicate holds or the deadline passes.
func (c *collector) waitFor(t *testing.T, pred func([]string) bool) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		lines := c.all()
		if pred(lines) {
			return lines
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for replies, got %q", c.all())
	return nil
}

func openDemo(t *testing.T) (*DemoConn, *collector) {
	t.Helper()
	col := &collector{}
	conn := NewDemoConn(col.handle)
	require.NoError(t, conn.Open())
	t.Cleanup(func() { _ = conn.Close() })
	return conn, col
}

func TestDemoBootBanner(t *testing.T) {
	_, col := openDemo(t)
	lines := col.waitFor(t, func(lines []string) bool { return len(lines) >= 1 })
	assert.Equal(t, "Galvonium ready.", lines[0])
}

func TestDemoOpenTwice(t *testing.T) {
	conn, _ := openDemo(t)
	assert.Error(t, conn.Open())
	assert.True(t, conn.Connected())
}

func TestDemoCloseFlushesAndRejectsWrites(t *testing.T) {
	col := &collector{}
	conn := NewDemoConn(col.handle)
	require.NoError(t, conn.Open())
	require.NoError(t, conn.WriteLine("SWAP"))
	require.NoError(t, conn.Close())

	// Close waits for delivery, so everything queued has arrived.
	assert.Equal(t, []string{"Galvonium ready.", "OK"}, col.all())
	assert.False(t, conn.Connected())
	assert.Error(t, conn.WriteLine("SWAP"))

	// Closing again is a no-op.
	assert.NoError(t, conn.Close())
}

func TestDemoWriteEcho(t *testing.T) {
	conn, col := openDemo(t)

	require.NoError(t, conn.WriteLine("WRITE 0 100 100 128"))
	require.NoError(t, conn.WriteLine("WRITE 1 150 150 128 ACTIVE"))

	lines := col.waitFor(t, func(lines []string) bool { return len(lines) >= 3 })
	assert.Equal(t, "0: 100, 100,128 OK", lines[1])
	assert.Equal(t, "1: 150, 150,128 OK (active buffer modified!)", lines[2])
}

func TestDemoErrorReplies(t *testing.T) {
	conn, col := openDemo(t)

	require.NoError(t, conn.WriteLine("FROB"))
	require.NoError(t, conn.WriteLine("WRITE 0 1"))
	require.NoError(t, conn.WriteLine("WRITE 300 1 1 1"))
	require.NoError(t, conn.WriteLine("WRITE 0 1 1 1 SHADOW"))

	lines := col.waitFor(t, func(lines []string) bool { return len(lines) >= 5 })
	assert.Equal(t, "ERR: Unknown command", lines[1])
	assert.Contains(t, lines[2], "ERR: Usage WRITE")
	assert.Equal(t, "ERR: Index out of range", lines[3])
	assert.Equal(t, "ERR: Buffer modifier must be ACTIVE or INACTIVE", lines[4])
}

func TestDemoDumpEmptyBuffer(t *testing.T) {
	conn, col := openDemo(t)
	require.NoError(t, conn.WriteLine("DUMP"))

	lines := col.waitFor(t, func(lines []string) bool {
		return len(lines) > 0 && lines[len(lines)-1] == "EOC"
	})
	assert.Equal(t, []string{
		"Galvonium ready.",
		"DUMP START (INACTIVE)",
		"Buffer Steps: 0",
		"DUMP END",
		"EOC",
	}, lines)
}

func TestDemoSwapExchangesBuffers(t *testing.T) {
	conn, col := openDemo(t)

	require.NoError(t, conn.WriteLine("WRITE 0 10 20 1 INACTIVE"))
	require.NoError(t, conn.WriteLine("SIZE 1 INACTIVE"))
	require.NoError(t, conn.WriteLine("SWAP"))
	require.NoError(t, conn.WriteLine("DUMP ACTIVE"))

	lines := col.waitFor(t, func(lines []string) bool {
		return len(lines) > 0 && lines[len(lines)-1] == "EOC"
	})
	text := strings.Join(lines, "\n")
	assert.Contains(t, text, "DUMP START (ACTIVE)")
	assert.Contains(t, text, "Buffer Steps: 1")
	assert.Contains(t, text, "0: 10,20 1")
}

// TestDemoRoundTrip drives the full transfer transaction against the
// emulated firmware and reads it back: the decoded dump must match the
// buffer that was sent.
func TestDemoRoundTrip(t *testing.T) {
	conn, col := openDemo(t)

	buf := galvo.NewBuffer()
	require.NoError(t, buf.SetStep(0, 100, 100, 128))
	require.NoError(t, buf.SetStep(3, 150, 150, 128)) // gap at 1 and 2
	require.NoError(t, buf.SetStep(7, 255, 0, 1))

	for _, cmd := range buf.WriteSequence("INACTIVE") {
		require.NoError(t, conn.WriteLine(cmd))
	}
	require.NoError(t, conn.WriteLine("DUMP INACTIVE"))

	lines := col.waitFor(t, func(lines []string) bool {
		return len(lines) > 0 && protocol.IsTerminator(lines[len(lines)-1])
	})

	var acc protocol.DumpAccumulator
	acc.Start()
	for _, line := range lines {
		if acc.Feed(line) {
			break
		}
	}
	decoded := galvo.ParseDump(acc.Text())
	assert.True(t, buf.Equal(decoded))
}
