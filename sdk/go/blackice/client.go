package blackice

import (
	"context"
	"fmt"

	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/activity"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/audit"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/config"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/denylist"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/dispatch"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/model"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/permission"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/template"
)

// Client holds the full safety pipeline for in-process enforcement.
// Safe for concurrent tool calls; actions are serialized internally.
type Client struct {
	dispatcher *dispatch.Dispatcher
	monitor    *activity.Monitor
	gate       *permission.Gate
}

// New creates a Client with the given options. A display context and an
// injector are required; everything else falls back to config defaults.
func New(opts ...Option) (*Client, error) {
	var cc clientConfig
	for _, o := range opts {
		o(&cc)
	}

	if cc.surface == nil || cc.injector == nil {
		return nil, fmt.Errorf("blackice: a display and an injector are required")
	}

	cfg := cc.cfg
	if cfg == nil {
		var err error
		cfg, err = config.Load(cc.configPath)
		if err != nil {
			return nil, fmt.Errorf("blackice: failed to load config: %w", err)
		}
	}

	prober := cc.prober
	if prober == nil {
		prober = activity.NewProcProber()
	}
	monitor := activity.New(prober, cfg.Activity, cc.log)
	monitor.Sample()

	gate := permission.NewGate(cfg.Permissions, cc.approver, cc.log)

	dl := denylist.NewDefault()
	if len(cfg.Denylist.Substrings) > 0 || len(cfg.Denylist.Regex) > 0 {
		dl = denylist.New(cfg.Denylist)
	}

	var auditLog *audit.Log
	if cc.auditPath != "" {
		var err error
		auditLog, err = audit.Open(cc.auditPath)
		if err != nil {
			return nil, fmt.Errorf("blackice: failed to open session log: %w", err)
		}
	}

	dispatcher, err := dispatch.New(dispatch.Deps{
		Gate:      gate,
		Monitor:   monitor,
		Display:   cc.surface,
		Injector:  cc.injector,
		Matcher:   cc.matcher,
		Templates: template.NewCache(cfg.Templates.Root, cfg.Templates.Categories),
		Denylist:  dl,
		Audit:     auditLog,
		Timeouts:  cfg.Timeouts,
		Log:       cc.log,
	})
	if err != nil {
		return nil, fmt.Errorf("blackice: %w", err)
	}

	return &Client{dispatcher: dispatcher, monitor: monitor, gate: gate}, nil
}

// Start runs continuous activity sampling. Blocks until ctx is cancelled.
// Without it the client still works, but classifies from one-shot samples
// taken at creation time.
func (c *Client) Start(ctx context.Context) error {
	return c.monitor.Run(ctx)
}

// SessionID identifies this automation session in logs and records.
func (c *Client) SessionID() string { return c.dispatcher.SessionID() }

// Click performs a guarded click at screen coordinates.
func (c *Client) Click(ctx context.Context, x, y int) model.ActionResult {
	return c.dispatcher.SafeClick(ctx, x, y)
}

// Type injects text as guarded keystrokes.
func (c *Client) Type(ctx context.Context, text string) model.ActionResult {
	return c.dispatcher.SafeType(ctx, text)
}

// Screenshot captures the AI surface to path. Empty string means failure.
func (c *Client) Screenshot(ctx context.Context, path string) string {
	return c.dispatcher.CaptureScreenshot(ctx, path)
}

// FindElement locates a template on the current frame, nil when absent.
func (c *Client) FindElement(ctx context.Context, category, name string) *model.MatchResult {
	return c.dispatcher.FindElement(ctx, dispatch.TemplateRef{Category: category, Name: name})
}

// EmergencyStop halts all automation immediately. Never blocked, never gated.
func (c *Client) EmergencyStop() {
	c.dispatcher.EmergencyStop()
}

// Reset re-arms automation after an emergency stop.
func (c *Client) Reset() error {
	return c.dispatcher.Reset()
}

// Status reports the session permission counters and recent decisions.
func (c *Client) Status() permission.SessionStatus {
	return c.gate.Status()
}

// SafeForAutomation reports whether an action would currently pass the
// activity gate.
func (c *Client) SafeForAutomation() bool {
	c.monitor.Sample()
	return c.monitor.IsSafeForAutomation()
}

// Close tears the session down. The client is unusable afterwards.
func (c *Client) Close() error {
	return c.dispatcher.Shutdown()
}
