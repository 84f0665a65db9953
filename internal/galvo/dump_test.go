package galvo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDump(t *testing.T) {
	buf := ParseDump("0: 100,100 255\n1: 150,150 255\n2: 200,200 0")

	step0, _ := buf.Step(0)
	assert.Equal(t, [3]int{100, 100, 255}, [3]int{step0.X(), step0.Y(), step0.Flags()})
	step2, _ := buf.Step(2)
	assert.Equal(t, [3]int{200, 200, 0}, [3]int{step2.X(), step2.Y(), step2.Flags()})
	assert.Equal(t, 2, buf.LastUsedIndex())
}

func TestParseDumpSkipsMalformedLines(t *testing.T) {
	text := "0: 100,100 255\n" +
		"garbage\n" +
		"1: 150,150 255"
	buf := ParseDump(text)

	step0, _ := buf.Step(0)
	assert.Equal(t, 100, step0.X())
	step1, _ := buf.Step(1)
	assert.Equal(t, 150, step1.X())
}

func TestParseDumpSkipsFirmwareFraming(t *testing.T) {
	// A real dump arrives wrapped in status chatter; none of it may leak
	// into the decoded steps.
	text := "DUMP START (INACTIVE)\n" +
		"Buffer Steps: 2\n" +
		"0: 10,20 1\n" +
		"1: 30,40 2\n" +
		"DUMP END"
	buf := ParseDump(text)

	step0, _ := buf.Step(0)
	assert.Equal(t, [3]int{10, 20, 1}, [3]int{step0.X(), step0.Y(), step0.Flags()})
	step1, _ := buf.Step(1)
	assert.Equal(t, [3]int{30, 40, 2}, [3]int{step1.X(), step1.Y(), step1.Flags()})
	assert.Equal(t, 1, buf.LastUsedIndex())
}

func TestParseDumpIgnoresOutOfRangeIndex(t *testing.T) {
	buf := ParseDump("0: 1,1 1\n300: 2,2 2\n999: 3,3 3")
	assert.Equal(t, 0, buf.LastUsedIndex())
	step0, _ := buf.Step(0)
	assert.Equal(t, 1, step0.X())
}

func TestParseDumpIgnoresOutOfRangeValues(t *testing.T) {
	buf := ParseDump("0: 300,1 1\n1: 1,1 1")
	step0, _ := buf.Step(0)
	assert.True(t, step0.IsEmpty())
	step1, _ := buf.Step(1)
	assert.Equal(t, 1, step1.X())
}

func TestParseDumpOutOfOrderIndices(t *testing.T) {
	buf := ParseDump("5: 50,50 5\n2: 20,20 2\n0: 1,1 1")

	step5, _ := buf.Step(5)
	assert.Equal(t, 50, step5.X())
	step2, _ := buf.Step(2)
	assert.Equal(t, 20, step2.Y())
	assert.Equal(t, 5, buf.LastUsedIndex())
}

func TestParseDumpWhitespaceTolerance(t *testing.T) {
	buf := ParseDump("  0: 10,20 30  \r\n1:5,6 7")
	step0, _ := buf.Step(0)
	assert.Equal(t, [3]int{10, 20, 30}, [3]int{step0.X(), step0.Y(), step0.Flags()})
	step1, _ := buf.Step(1)
	assert.Equal(t, [3]int{5, 6, 7}, [3]int{step1.X(), step1.Y(), step1.Flags()})
}

func TestParseDumpEmpty(t *testing.T) {
	buf := ParseDump("")
	assert.Equal(t, 0, buf.LastUsedIndex())
	assert.True(t, buf.Equal(NewBuffer()))
}

func TestDumpTextRoundTrip(t *testing.T) {
	buf := NewBuffer()
	require.NoError(t, buf.SetStep(0, 100, 100, 128))
	require.NoError(t, buf.SetStep(3, 150, 150, 128)) // leaves a gap at 1 and 2
	require.NoError(t, buf.SetStep(255, 1, 2, 3))

	decoded := ParseDump(buf.DumpText())
	assert.True(t, buf.Equal(decoded))
}

func TestDumpTextEmptyBuffer(t *testing.T) {
	buf := NewBuffer()
	assert.Equal(t, "0: 0,0 0", buf.DumpText())
}
