package smoke

import (
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/stretchr/testify/require"
)

func fixedMemory() MemoryStats {
	return MemoryStats{Heap: common.StorageSize(64 * 1024 * 1024)}
}

func TestProgressBacksOff(t *testing.T) {
	logger, buf := bufferLogger()
	clock := new(mclock.Simulated)
	p := newProgress(logger, clock, fixedMemory, "keys", 1, 0)

	var printed []int
	for i := 1; i <= 205; i++ {
		clock.Run(time.Second)
		if p.Add(1, 0) {
			printed = append(printed, p.Count())
		}
	}
	// Five lines every 10 items, then the window grows to floor(10^1.5) = 31,
	// then to floor(31^1.5) = 172 after the tenth line.
	require.Equal(t, []int{10, 20, 30, 40, 50, 81, 112, 143, 174, 205}, printed)
	require.Equal(t, 172, p.Frequency())

	out := buf.String()
	require.Equal(t, 10, strings.Count(out, "Scan progress"))
	require.Equal(t, 2, strings.Count(out, "Increased logging threshold"))
	require.Contains(t, out, "every=31")
	require.Contains(t, out, "every=172")
	// No total, no estimate.
	require.NotContains(t, out, "Estimated time left")
}

func TestProgressEstimatesTimeLeft(t *testing.T) {
	logger, buf := bufferLogger()
	clock := new(mclock.Simulated)
	const total = 1000
	p := newProgress(logger, clock, fixedMemory, "accounts", 1, total)

	for i := 1; i <= 205; i++ {
		clock.Run(time.Second)
		p.Add(1, total-i)
	}
	out := buf.String()
	// One item per second with 795 left.
	require.Equal(t, 1, strings.Count(out, "Estimated time left"))
	require.Contains(t, out, "13 minutes")
	require.Contains(t, out, "20.5%")
}

func TestProgressStepsByPage(t *testing.T) {
	logger, _ := bufferLogger()
	clock := new(mclock.Simulated)
	p := newProgress(logger, clock, fixedMemory, "keys", 500, 0)

	for i := 0; i < 9; i++ {
		require.False(t, p.Add(500, 0))
	}
	require.True(t, p.Add(500, 0))
	require.Equal(t, 5000, p.Count())

	// Partial pages still cross the threshold.
	for i := 0; i < 10; i++ {
		p.Add(499, 0)
	}
	require.True(t, p.Add(499, 0))
}

func TestProgressNil(t *testing.T) {
	var p *Progress
	require.False(t, p.Add(10, 0))
	require.Zero(t, p.Count())
	require.Zero(t, p.Elapsed())
}

func TestFormatDurations(t *testing.T) {
	require.Equal(t, "12.5 seconds", formatElapsed(12500*time.Millisecond))
	require.Equal(t, "60.0 seconds", formatElapsed(time.Minute))
	require.Equal(t, "1.5 minutes", formatElapsed(90*time.Second))

	require.Equal(t, "59 seconds", formatETA(59*time.Second))
	require.Equal(t, "2 minutes", formatETA(130*time.Second))
}
