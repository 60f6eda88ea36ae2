package monitor

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// cpuWindowSize is how many samples the rolling window retains.
const cpuWindowSize = 100

// userHZ is the kernel clock-tick rate /proc accounting is reported in.
const userHZ = 100

// CPUStats summarizes the rolling utilization window.
type CPUStats struct {
	Current float64 `json:"current"`
	Average float64 `json:"average"`
	Max     float64 `json:"max"`
}

// cpuSampler tracks this process's CPU utilization from /proc/self/stat.
// Purely diagnostic: the monitor never throttles on it.
type cpuSampler struct {
	mu        sync.Mutex
	samples   []float64
	next      int
	filled    bool
	lastTicks uint64
	lastTime  time.Time

	readTicks func() (uint64, bool)
	now       func() time.Time
}

func newCPUSampler() *cpuSampler {
	return &cpuSampler{
		samples:   make([]float64, cpuWindowSize),
		readTicks: readProcSelfTicks,
		now:       time.Now,
	}
}

// Sample records one utilization reading, a percentage of one core spent
// since the previous sample.
func (c *cpuSampler) Sample() {
	ticks, ok := c.readTicks()
	if !ok {
		return
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastTime.IsZero() {
		elapsed := now.Sub(c.lastTime).Seconds()
		if elapsed > 0 && ticks >= c.lastTicks {
			cpuSeconds := float64(ticks-c.lastTicks) / userHZ
			c.samples[c.next] = cpuSeconds / elapsed * 100
			c.next = (c.next + 1) % cpuWindowSize
			if c.next == 0 {
				c.filled = true
			}
		}
	}
	c.lastTicks = ticks
	c.lastTime = now
}

// Stats reports the current, average, and max utilization over the window.
func (c *cpuSampler) Stats() CPUStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := c.next
	if c.filled {
		count = cpuWindowSize
	}
	if count == 0 {
		return CPUStats{}
	}

	var sum, max float64
	for i := 0; i < count; i++ {
		v := c.samples[i]
		sum += v
		if v > max {
			max = v
		}
	}
	currentIdx := (c.next - 1 + cpuWindowSize) % cpuWindowSize
	return CPUStats{
		Current: c.samples[currentIdx],
		Average: sum / float64(count),
		Max:     max,
	}
}

// readProcSelfTicks returns this process's combined user+system clock
// ticks. The command field (2) may contain spaces, so parsing starts after
// the closing paren; utime and stime are fields 14 and 15 of the full line.
func readProcSelfTicks() (uint64, bool) {
	data, err := os.ReadFile("/proc/self/stat")
	if err != nil {
		return 0, false
	}
	raw := string(data)
	close := strings.LastIndexByte(raw, ')')
	if close < 0 {
		return 0, false
	}
	fields := strings.Fields(raw[close+1:])
	// fields[0] is stat field 3 (state); utime and stime are fields 14
	// and 15, so indexes 11 and 12 here.
	if len(fields) < 13 {
		return 0, false
	}
	utime, err1 := strconv.ParseUint(fields[11], 10, 64)
	stime, err2 := strconv.ParseUint(fields[12], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, false
	}
	return utime + stime, true
}
