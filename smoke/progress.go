package smoke

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/log"
	"github.com/shirou/gopsutil/process"
)

const (
	initialLogFrequency = 10  // progress windows are step*frequency items wide
	logFrequencyGrowth  = 1.5 // frequency = floor(frequency^growth) ...
	logGrowthEvery      = 5   // ... after this many progress lines
	logETAEvery         = 10  // progress lines between time-left estimates
)

// MemoryStats is a point-in-time view of the process memory.
type MemoryStats struct {
	Heap common.StorageSize // live heap objects
	RSS  common.StorageSize // resident set size, 0 if unavailable
}

// SampleMemory reads the Go heap size and the resident set size of the
// current process.
func SampleMemory() MemoryStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := MemoryStats{Heap: common.StorageSize(ms.HeapAlloc)}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfo(); err == nil {
			stats.RSS = common.StorageSize(info.RSS)
		}
	}
	return stats
}

// Progress reports the throughput of a long scan. Lines are emitted every
// step*frequency items and the frequency grows geometrically, so the log
// volume stays sub-linear in the size of the scan.
type Progress struct {
	logger log.Logger
	clock  mclock.Clock
	memory func() MemoryStats

	unit  string // "keys", "accounts"
	step  int
	total int // expected item count, 0 if unknown

	frequency int
	prints    int
	count     int
	next      int
	lastCount int
	start     mclock.AbsTime
	last      mclock.AbsTime
}

func newProgress(logger log.Logger, clock mclock.Clock, memory func() MemoryStats, unit string, step, total int) *Progress {
	if step < 1 {
		step = 1
	}
	now := clock.Now()
	return &Progress{
		logger:    logger,
		clock:     clock,
		memory:    memory,
		unit:      unit,
		step:      step,
		total:     total,
		frequency: initialLogFrequency,
		next:      step * initialLogFrequency,
		start:     now,
		last:      now,
	}
}

// Add records n processed items. Remaining is the number of items still
// queued and feeds the time-left estimate; it is ignored when the total is
// unknown. Add reports whether a progress line was written.
func (p *Progress) Add(n, remaining int) bool {
	if p == nil {
		return false
	}
	p.count += n
	if p.count < p.next {
		return false
	}
	now := p.clock.Now()
	elapsed := now.Sub(p.last)
	rate := float64(p.count-p.lastCount) / math.Max(elapsed.Seconds(), 1e-9)
	mem := p.memory()

	ctx := []interface{}{
		"unit", p.unit,
		"count", p.count,
		p.unit + "/s", fmt.Sprintf("%.0f", rate),
		"heap", mem.Heap,
	}
	if mem.RSS > 0 {
		ctx = append(ctx, "rss", mem.RSS)
	}
	if p.total > 0 {
		ctx = append(ctx, "complete", fmt.Sprintf("%.1f%%", float64(p.count)*100/float64(p.total)))
	}
	p.logger.Info("Scan progress", ctx...)

	p.prints++
	p.last = now
	p.lastCount = p.count

	if p.prints%logGrowthEvery == 0 {
		p.frequency = int(math.Floor(math.Pow(float64(p.frequency), logFrequencyGrowth)))
		p.logger.Info("Increased logging threshold", "every", p.frequency*p.step, "unit", p.unit)
	}
	if p.total > 0 && p.prints%logETAEvery == 0 && rate > 0 {
		left := time.Duration(float64(remaining) / rate * float64(time.Second))
		p.logger.Info("Estimated time left", "eta", formatETA(left))
	}
	p.next = p.count + p.frequency*p.step
	return true
}

// Count returns the number of items recorded so far.
func (p *Progress) Count() int {
	if p == nil {
		return 0
	}
	return p.count
}

// Frequency returns the current logging frequency in steps.
func (p *Progress) Frequency() int {
	return p.frequency
}

// Elapsed returns the time since the progress tracker was created.
func (p *Progress) Elapsed() time.Duration {
	if p == nil {
		return 0
	}
	return p.clock.Now().Sub(p.start)
}

// formatElapsed renders a phase duration: seconds up to a minute, minutes
// with one decimal beyond.
func formatElapsed(d time.Duration) string {
	if d > time.Minute {
		return fmt.Sprintf("%.1f minutes", d.Minutes())
	}
	return fmt.Sprintf("%.1f seconds", d.Seconds())
}

func formatETA(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0f seconds", d.Seconds())
	}
	return fmt.Sprintf("%.0f minutes", d.Minutes())
}
