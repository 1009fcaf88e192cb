package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quasarlabs/starkverify/pkg/client"
)

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name    string
		percent int
		want    string
	}{
		{name: "empty", percent: 0, want: "[                    ]"},
		{name: "half", percent: 50, want: "[==========          ]"},
		{name: "full", percent: 100, want: "[====================]"},
		{name: "clamped low", percent: -5, want: "[                    ]"},
		{name: "clamped high", percent: 150, want: "[====================]"},
		{name: "rounds down", percent: 85, want: "[=================   ]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, progressBar(tt.percent))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{name: "seconds", d: 42 * time.Second, want: "42s"},
		{name: "zero", d: 0, want: "0s"},
		{name: "rounds", d: 1500 * time.Millisecond, want: "2s"},
		{name: "minutes", d: 90 * time.Second, want: "1m30s"},
		{name: "pads seconds", d: 2*time.Minute + 5*time.Second, want: "2m05s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDuration(tt.d))
		})
	}
}

func TestStatusEmoji(t *testing.T) {
	assert.Equal(t, "✅", statusEmoji(client.StatusSuccess))
	assert.Equal(t, "❌", statusEmoji(client.StatusFail))
	assert.Equal(t, "❌", statusEmoji(client.StatusCompileFailed))
	assert.Equal(t, "❓", statusEmoji(client.StatusUnknown))
	assert.Equal(t, "⏳", statusEmoji(client.StatusProcessing))
	assert.Equal(t, "⏳", statusEmoji(client.StatusSubmitted))
}

func TestTruncateHash(t *testing.T) {
	assert.Equal(t, "0x1234", truncateHash("0x1234"))
	assert.Equal(t,
		"0x044dc2...da18",
		truncateHash("0x044dc2b3239382230d8b1e943df23b96f52eebcac93efe6e8bde92f9a2f1da18"))
}

func TestProgressPercentFor(t *testing.T) {
	tests := []struct {
		status client.JobStatus
		want   int
	}{
		{status: client.StatusSubmitted, want: 10},
		{status: client.StatusProcessing, want: 40},
		{status: client.StatusCompiled, want: 85},
		{status: client.StatusSuccess, want: 100},
		{status: client.StatusFail, want: 100},
		{status: client.StatusCompileFailed, want: 100},
		{status: client.StatusUnknown, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, progressPercentFor(tt.status))
		})
	}
}
