package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/model"
)

// Thresholds defines the activity classification boundaries.
// All values must be positive; monotonicity between levels is not required.
type Thresholds struct {
	// IdleSeconds is the input idle time above which the session counts as idle.
	IdleSeconds float64 `yaml:"idle_seconds" json:"idle_seconds"`
	// LightSeconds is the input idle time above which the session counts as
	// light (below IdleSeconds).
	LightSeconds float64 `yaml:"light_seconds" json:"light_seconds"`
	// CPUSaturation / MemSaturation are the resource headroom bounds in percent.
	CPUSaturation float64 `yaml:"cpu_saturation" json:"cpu_saturation"`
	MemSaturation float64 `yaml:"mem_saturation" json:"mem_saturation"`
}

// Validate rejects non-positive boundary values.
func (t Thresholds) Validate() error {
	if t.IdleSeconds <= 0 {
		return fmt.Errorf("thresholds: idle_seconds must be positive, got %v", t.IdleSeconds)
	}
	if t.LightSeconds <= 0 {
		return fmt.Errorf("thresholds: light_seconds must be positive, got %v", t.LightSeconds)
	}
	if t.CPUSaturation <= 0 {
		return fmt.Errorf("thresholds: cpu_saturation must be positive, got %v", t.CPUSaturation)
	}
	if t.MemSaturation <= 0 {
		return fmt.Errorf("thresholds: mem_saturation must be positive, got %v", t.MemSaturation)
	}
	return nil
}

// ActivityConfig configures the activity monitor.
type ActivityConfig struct {
	SampleInterval time.Duration `yaml:"sample_interval"`
	Thresholds     Thresholds    `yaml:"thresholds"`
	// CriticalProcesses forces the intensive level while any of these is the
	// foreground process, regardless of idle time.
	CriticalProcesses []string `yaml:"critical_processes"`
}

// PermissionConfig configures the session permission gate.
type PermissionConfig struct {
	RequireConfirmation bool `yaml:"require_confirmation"`
	// AutoApproveCeiling is the highest tier label auto-approved when
	// confirmation is not required.
	AutoApproveCeiling string            `yaml:"auto_approve_ceiling"`
	ApprovalTimeout    time.Duration     `yaml:"approval_timeout"`
	HistorySize        int               `yaml:"history_size"`
	Tiers              map[string]string `yaml:"tiers"`
}

// DenylistPatterns are the dangerous-text patterns scanned before typing.
type DenylistPatterns struct {
	Substrings []string `yaml:"substrings"`
	Regex      []string `yaml:"regex"`
}

// TimeoutConfig bounds every collaborator call made during dispatch.
type TimeoutConfig struct {
	Action  time.Duration `yaml:"action"`
	Display time.Duration `yaml:"display"`
}

// TemplateConfig configures reference image resolution.
type TemplateConfig struct {
	Root       string   `yaml:"root"`
	Categories []string `yaml:"categories"`
}

// Config holds every externally supplied knob of the control plane.
type Config struct {
	Activity    ActivityConfig   `yaml:"activity"`
	Permissions PermissionConfig `yaml:"permissions"`
	Denylist    DenylistPatterns `yaml:"denylist"`
	Timeouts    TimeoutConfig    `yaml:"timeouts"`
	Templates   TemplateConfig   `yaml:"templates"`
	AuditLog    string           `yaml:"audit_log"`
}

// Default returns the conservative built-in configuration.
func Default() *Config {
	return &Config{
		Activity: ActivityConfig{
			SampleInterval: 2 * time.Second,
			Thresholds: Thresholds{
				IdleSeconds:   300,
				LightSeconds:  60,
				CPUSaturation: 85,
				MemSaturation: 90,
			},
			CriticalProcesses: []string{"zoom", "teams", "obs", "skype", "webex"},
		},
		Permissions: PermissionConfig{
			RequireConfirmation: false,
			AutoApproveCeiling:  "moderate",
			ApprovalTimeout:     30 * time.Second,
			HistorySize:         50,
			Tiers: map[string]string{
				"click":        "moderate",
				"type":         "moderate",
				"screenshot":   "low",
				"find_element": "low",
			},
		},
		Timeouts: TimeoutConfig{
			Action:  10 * time.Second,
			Display: 5 * time.Second,
		},
		Templates: TemplateConfig{
			Root:       "assets/templates",
			Categories: []string{"browsers", "editors", "system", "office"},
		},
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "blackice", "config.yaml")
	}
	return filepath.Join(home, ".blackice", "config.yaml")
}

// Load reads configuration from a YAML file. Empty path falls back to
// DefaultPath. A missing file returns defaults. Invalid YAML or invalid
// values are fatal initialization errors.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Start with defaults, YAML overwrites only specified fields
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every externally supplied value the control plane relies on.
func (c *Config) Validate() error {
	if err := c.Activity.Thresholds.Validate(); err != nil {
		return err
	}
	if c.Activity.SampleInterval <= 0 {
		return fmt.Errorf("activity: sample_interval must be positive")
	}
	if c.Permissions.ApprovalTimeout <= 0 {
		return fmt.Errorf("permissions: approval_timeout must be positive")
	}
	if c.Permissions.HistorySize <= 0 {
		return fmt.Errorf("permissions: history_size must be positive")
	}
	if _, err := ParseTier(c.Permissions.AutoApproveCeiling); err != nil {
		return fmt.Errorf("permissions: auto_approve_ceiling: %w", err)
	}
	for kind, tier := range c.Permissions.Tiers {
		if _, err := model.ParseKind(kind); err != nil {
			return fmt.Errorf("permissions: tiers: %w", err)
		}
		if _, err := ParseTier(tier); err != nil {
			return fmt.Errorf("permissions: tier for %q: %w", kind, err)
		}
	}
	if c.Timeouts.Action <= 0 || c.Timeouts.Display <= 0 {
		return fmt.Errorf("timeouts: action and display must be positive")
	}
	if len(c.Templates.Categories) == 0 {
		return fmt.Errorf("templates: at least one category is required")
	}
	return nil
}

// ParseTier maps a tier label to its numeric tier. Fail-closed: unknown
// labels are an error rather than a permissive default.
func ParseTier(label string) (int, error) {
	switch label {
	case "low":
		return model.TierLow, nil
	case "moderate":
		return model.TierModerate, nil
	case "high":
		return model.TierHigh, nil
	default:
		return 0, fmt.Errorf("unknown risk tier %q", label)
	}
}

// TierForKind resolves the configured tier for an action kind.
// Unconfigured kinds resolve to the highest tier (fail closed).
func (c *Config) TierForKind(kind model.ActionKind) int {
	label, ok := c.Permissions.Tiers[string(kind)]
	if !ok {
		return model.TierHigh
	}
	tier, err := ParseTier(label)
	if err != nil {
		return model.TierHigh
	}
	return tier
}
