package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTerminator(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"EOC", true},
		{"eoc", true},
		{" EOC ", true},
		{"EOC\r\n", true},
		{"\tEoC", true},
		{"EOC!", false},
		{"ENDOFCOMM", false},
		{"", false},
		{"0: 1,2 3", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsTerminator(tt.line), "line %q", tt.line)
	}
}

func TestDumpAccumulator(t *testing.T) {
	acc := DumpAccumulator{}
	assert.Equal(t, StateIdle, acc.State())

	// Lines fed while idle are ignored.
	assert.False(t, acc.Feed("0: 1,1 1"))
	assert.Empty(t, acc.Text())

	acc.Start()
	assert.Equal(t, StateAccumulating, acc.State())
	assert.False(t, acc.Feed("0: 100,100 255"))
	assert.False(t, acc.Feed("1: 150,150 255"))
	require.True(t, acc.Feed("EOC"))
	assert.Equal(t, StateIdle, acc.State())
	assert.Equal(t, "0: 100,100 255\n1: 150,150 255", acc.Text())

	// Restarting discards prior lines.
	acc.Start()
	assert.Empty(t, acc.Text())
}

func TestDumpAccumulatorCaseInsensitiveTerminator(t *testing.T) {
	acc := DumpAccumulator{}
	acc.Start()
	acc.Feed("3: 8,8 1")
	require.True(t, acc.Feed("  eoc \r\n"))
	assert.Equal(t, "3: 8,8 1", acc.Text())
}

func TestDumpAccumulatorReset(t *testing.T) {
	acc := DumpAccumulator{}
	acc.Start()
	acc.Feed("0: 1,2 3")
	acc.Reset()
	assert.Equal(t, StateIdle, acc.State())
	assert.Empty(t, acc.Text())
}

func TestAccumulate(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		wantText string
		wantDone bool
	}{
		{
			name:     "terminated stream",
			lines:    []string{"0: 1,2 3", "1: 4,5 6", "EOC"},
			wantText: "0: 1,2 3\n1: 4,5 6",
			wantDone: true,
		},
		{
			name:     "lines after terminator discarded",
			lines:    []string{"0: 1,2 3", "EOC", "9: 9,9 9", "EOC"},
			wantText: "0: 1,2 3",
			wantDone: true,
		},
		{
			name:     "terminator only yields empty text",
			lines:    []string{"EOC"},
			wantText: "",
			wantDone: true,
		},
		{
			name:     "no terminator leaves stream incomplete",
			lines:    []string{"0: 1,2 3", "1: 4,5 6"},
			wantText: "0: 1,2 3\n1: 4,5 6",
			wantDone: false,
		},
		{
			name:     "empty input",
			lines:    nil,
			wantText: "",
			wantDone: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, done := Accumulate(tt.lines)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantDone, done)
		})
	}
}
