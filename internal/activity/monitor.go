// Package activity classifies how actively a human is using the machine and
// answers whether it is currently safe to inject synthetic input.
package activity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/config"
)

// Level is the coarse activity classification.
type Level string

const (
	LevelIdle      Level = "idle"
	LevelLight     Level = "light"
	LevelIntensive Level = "intensive"
)

// Sample is one point-in-time reading of human and system activity.
// Produced per safety check, never retained beyond the latest.
type Sample struct {
	Timestamp         time.Time
	CPUPercent        float64
	MemPercent        float64
	InputIdleSeconds  float64
	ForegroundProcess string
}

// ResourceSnapshot is the diagnostics view of the latest resource reading.
type ResourceSnapshot struct {
	CPUPercent float64   `json:"cpu_percent"`
	MemPercent float64   `json:"mem_percent"`
	SampledAt  time.Time `json:"sampled_at"`
	Degraded   bool      `json:"degraded"`
}

// Prober reads the raw activity signals from the host.
// Implementations must return quickly (sub-second) and may fail; failures
// degrade classification to the most conservative level.
type Prober interface {
	Probe(ctx context.Context) (Sample, error)
}

// Monitor samples activity on a fixed interval and classifies the current
// level against a replaceable threshold table.
type Monitor struct {
	prober   Prober
	interval time.Duration
	log      *logrus.Entry

	mu         sync.RWMutex
	thresholds config.Thresholds
	critical   []string
	latest     Sample
	degraded   bool
	sampled    bool
}

// New creates a Monitor. The config must already be validated.
func New(prober Prober, cfg config.ActivityConfig, log *logrus.Logger) *Monitor {
	if log == nil {
		log = logrus.New()
	}
	critical := make([]string, 0, len(cfg.CriticalProcesses))
	for _, p := range cfg.CriticalProcesses {
		critical = append(critical, strings.ToLower(p))
	}
	return &Monitor{
		prober:     prober,
		interval:   cfg.SampleInterval,
		log:        log.WithField("component", "activity"),
		thresholds: cfg.Thresholds,
		critical:   critical,
	}
}

// Run updates the cached sample on a fixed interval. Blocks until ctx is
// cancelled. Safe to run concurrently with every other method.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.refresh(ctx)
		}
	}
}

// Sample probes immediately, updates the cache, and returns the reading.
// On probe failure the returned sample is zero and the monitor is marked
// degraded, which classifies as intensive (fail safe, never fail open).
func (m *Monitor) Sample() Sample {
	ctx, cancel := context.WithTimeout(context.Background(), m.interval)
	defer cancel()
	return m.refresh(ctx)
}

func (m *Monitor) refresh(ctx context.Context) Sample {
	s, err := m.prober.Probe(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.degraded = true
		m.sampled = true
		m.log.WithError(err).Warn("activity probe failed, degrading to intensive")
		return m.latest
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	m.latest = s
	m.degraded = false
	m.sampled = true
	return s
}

// CurrentLevel derives the activity level from the latest sample.
// An unsampled or degraded monitor reports intensive.
func (m *Monitor) CurrentLevel() Level {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.sampled || m.degraded {
		return LevelIntensive
	}
	return classify(m.latest, m.thresholds, m.critical)
}

// IsSafeForAutomation is true only when the level is idle or light and
// cpu/mem are below the saturation bounds.
func (m *Monitor) IsSafeForAutomation() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.sampled || m.degraded {
		return false
	}
	level := classify(m.latest, m.thresholds, m.critical)
	if level == LevelIntensive {
		return false
	}
	return m.latest.CPUPercent < m.thresholds.CPUSaturation &&
		m.latest.MemPercent < m.thresholds.MemSaturation
}

// SetThresholds atomically replaces the threshold table. Safe to call while
// sampling is in progress. Values must be positive.
func (m *Monitor) SetThresholds(t config.Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.thresholds = t
	m.mu.Unlock()
	return nil
}

// Thresholds returns the current threshold table.
func (m *Monitor) Thresholds() config.Thresholds {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.thresholds
}

// CheckResources exposes the latest resource reading for diagnostics and
// for the permission gate's risk escalation.
func (m *Monitor) CheckResources() ResourceSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ResourceSnapshot{
		CPUPercent: m.latest.CPUPercent,
		MemPercent: m.latest.MemPercent,
		SampledAt:  m.latest.Timestamp,
		Degraded:   m.degraded || !m.sampled,
	}
}

// classify maps a sample to a level. A critical foreground process forces
// intensive regardless of idle time.
func classify(s Sample, t config.Thresholds, critical []string) Level {
	fg := strings.ToLower(s.ForegroundProcess)
	for _, c := range critical {
		if fg != "" && strings.Contains(fg, c) {
			return LevelIntensive
		}
	}

	switch {
	case s.InputIdleSeconds >= t.IdleSeconds:
		return LevelIdle
	case s.InputIdleSeconds >= t.LightSeconds:
		return LevelLight
	default:
		return LevelIntensive
	}
}
