package activity

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ProcProber reads cpu and memory load from the /proc filesystem.
// Input idle time and the foreground process have no portable OS counter,
// so they come from injectable hooks supplied by the session transport;
// absent hooks report zero idle, which classifies conservatively.
type ProcProber struct {
	// IdleFunc reports seconds since the last human input event.
	IdleFunc func(ctx context.Context) (float64, error)
	// ForegroundFunc reports the focused process name.
	ForegroundFunc func(ctx context.Context) (string, error)

	statPath    string
	meminfoPath string

	mu        sync.Mutex
	prevTotal uint64
	prevIdle  uint64
	hasPrev   bool
}

// NewProcProber creates a prober reading the standard /proc paths.
func NewProcProber() *ProcProber {
	return &ProcProber{
		statPath:    "/proc/stat",
		meminfoPath: "/proc/meminfo",
	}
}

// Probe reads all activity signals. Any unreadable counter fails the whole
// probe; the monitor degrades to intensive on error.
func (p *ProcProber) Probe(ctx context.Context) (Sample, error) {
	cpu, err := p.cpuPercent()
	if err != nil {
		return Sample{}, fmt.Errorf("cpu: %w", err)
	}

	mem, err := p.memPercent()
	if err != nil {
		return Sample{}, fmt.Errorf("mem: %w", err)
	}

	s := Sample{
		Timestamp:  time.Now(),
		CPUPercent: cpu,
		MemPercent: mem,
	}

	if p.IdleFunc != nil {
		idle, err := p.IdleFunc(ctx)
		if err != nil {
			return Sample{}, fmt.Errorf("input idle: %w", err)
		}
		s.InputIdleSeconds = idle
	}

	if p.ForegroundFunc != nil {
		fg, err := p.ForegroundFunc(ctx)
		if err != nil {
			return Sample{}, fmt.Errorf("foreground: %w", err)
		}
		s.ForegroundProcess = fg
	}

	return s, nil
}

// cpuPercent computes utilization from the delta of the aggregate cpu line
// in /proc/stat. The first call has no delta and reports zero.
func (p *ProcProber) cpuPercent() (float64, error) {
	data, err := os.ReadFile(p.statPath)
	if err != nil {
		return 0, err
	}

	var line string
	for _, l := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(l, "cpu ") {
			line = l
			break
		}
	}
	if line == "" {
		return 0, fmt.Errorf("no aggregate cpu line in %s", p.statPath)
	}

	fields := strings.Fields(line)[1:]
	if len(fields) < 4 {
		return 0, fmt.Errorf("malformed cpu line in %s", p.statPath)
	}

	var total, idle uint64
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("malformed cpu field: %w", err)
		}
		total += v
		// idle + iowait
		if i == 3 || i == 4 {
			idle += v
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.hasPrev {
		p.prevTotal, p.prevIdle, p.hasPrev = total, idle, true
		return 0, nil
	}

	dTotal := total - p.prevTotal
	dIdle := idle - p.prevIdle
	p.prevTotal, p.prevIdle = total, idle

	if dTotal == 0 {
		return 0, nil
	}
	return 100 * float64(dTotal-dIdle) / float64(dTotal), nil
}

// memPercent computes used memory from MemTotal and MemAvailable.
func (p *ProcProber) memPercent() (float64, error) {
	data, err := os.ReadFile(p.meminfoPath)
	if err != nil {
		return 0, err
	}

	var total, available uint64
	for _, l := range strings.Split(string(data), "\n") {
		fields := strings.Fields(l)
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total = v
		case "MemAvailable:":
			available = v
		}
	}

	if total == 0 {
		return 0, fmt.Errorf("no MemTotal in %s", p.meminfoPath)
	}
	return 100 * float64(total-available) / float64(total), nil
}
