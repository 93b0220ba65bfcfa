// Package dispatch is the safety-gated façade over the injection
// collaborators. Every requested action passes the permission gate, the
// state machine, the activity gate, and parameter validation before any
// synthetic input reaches the display; every fault is contained into a
// tagged result.
package dispatch

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/activity"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/audit"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/config"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/denylist"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/display"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/model"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/permission"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/template"
)

// typeChunkRunes is how many runes are injected between emergency-stop
// checkpoints during SafeType.
const typeChunkRunes = 16

// TemplateRef identifies a reference image for element lookup.
type TemplateRef struct {
	Category string `json:"category"`
	Name     string `json:"name"`
}

// Deps are the collaborators and policy components injected at construction.
type Deps struct {
	Gate      *permission.Gate
	Monitor   *activity.Monitor
	Display   display.Context
	Injector  display.Injector
	Matcher   display.ElementMatcher
	Templates *template.Cache
	Denylist  *denylist.Denylist
	Audit     *audit.Log
	Timeouts  config.TimeoutConfig
	Log       *logrus.Logger
}

// Dispatcher serializes action dispatch for one automation session.
// Only one action may be in flight at a time; EmergencyStop is the single
// preemptive operation and never takes the action lock.
type Dispatcher struct {
	gate      *permission.Gate
	monitor   *activity.Monitor
	display   display.Context
	injector  display.Injector
	matcher   display.ElementMatcher
	templates *template.Cache
	auditLog  *audit.Log
	timeouts  config.TimeoutConfig
	sessionID string
	log       *logrus.Entry

	dl atomic.Pointer[denylist.Denylist]

	mu               sync.Mutex // one action in flight
	state            atomic.Int32
	automationActive atomic.Bool
}

// New creates an Active dispatcher owning a fresh session.
func New(deps Deps) (*Dispatcher, error) {
	if deps.Gate == nil || deps.Monitor == nil {
		return nil, fmt.Errorf("dispatch: gate and monitor are required")
	}
	if deps.Display == nil || deps.Injector == nil {
		return nil, fmt.Errorf("dispatch: display context and injector are required")
	}
	if deps.Timeouts.Action <= 0 || deps.Timeouts.Display <= 0 {
		return nil, fmt.Errorf("dispatch: timeouts must be positive")
	}
	log := deps.Log
	if log == nil {
		log = logrus.New()
	}

	d := &Dispatcher{
		gate:      deps.Gate,
		monitor:   deps.Monitor,
		display:   deps.Display,
		injector:  deps.Injector,
		matcher:   deps.Matcher,
		templates: deps.Templates,
		auditLog:  deps.Audit,
		timeouts:  deps.Timeouts,
		sessionID: newSessionID(),
		log:       log.WithField("component", "dispatch"),
	}
	dl := deps.Denylist
	if dl == nil {
		dl = denylist.NewDefault()
	}
	d.dl.Store(dl)
	d.state.Store(int32(StateActive))
	d.automationActive.Store(true)
	return d, nil
}

// SessionID returns the identifier stamped on session records.
func (d *Dispatcher) SessionID() string { return d.sessionID }

// SetDenylist atomically swaps the dangerous-text patterns (hot reload).
func (d *Dispatcher) SetDenylist(dl *denylist.Denylist) {
	if dl != nil {
		d.dl.Store(dl)
	}
}

// SafeClick validates and performs one synthetic click.
// Check order: permission, state, activity, live bounds, display context,
// injection. Any injection-layer fault becomes a tagged failure result.
func (d *Dispatcher) SafeClick(ctx context.Context, x, y int) model.ActionResult {
	start := time.Now()
	params := map[string]any{"x": x, "y": y}

	if !d.gate.Request(ctx, model.KindClick, params) {
		return d.finish(start, params, model.Failure(model.KindClick,
			model.TagPermissionDenied, "permission denied for click"))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if res := d.preflight(model.KindClick); res != nil {
		return d.finish(start, params, *res)
	}

	width, height, err := d.screenSize(ctx)
	if err != nil {
		return d.finish(start, params, d.collaboratorFailure(model.KindClick, "screen size query", err))
	}
	if x < 0 || x >= width || y < 0 || y >= height {
		return d.finish(start, params, model.Failure(model.KindClick, model.TagBoundsError,
			"click (%d,%d) outside screen bounds (%dx%d)", x, y, width, height))
	}

	if err := d.ensureDisplay(ctx); err != nil {
		return d.finish(start, params, d.collaboratorFailure(model.KindClick, "display context", err))
	}

	if d.stopped() {
		return d.finish(start, params, model.Failure(model.KindClick,
			model.TagSafetyBlocked, "emergency stop engaged"))
	}

	if err := d.bounded(ctx, d.timeouts.Action, func(ctx context.Context) error {
		return d.injector.Click(ctx, x, y)
	}); err != nil {
		return d.finish(start, params, d.collaboratorFailure(model.KindClick, "click injection", err))
	}

	return d.finish(start, params, model.ActionResult{
		Kind:     model.KindClick,
		Success:  true,
		Location: &model.Point{X: x, Y: y},
	})
}

// SafeType validates and injects text as keystrokes. The entire requested
// string is scanned against the denylist before any injection; typing is
// chunked with an emergency-stop checkpoint between chunks.
func (d *Dispatcher) SafeType(ctx context.Context, text string) model.ActionResult {
	start := time.Now()
	params := map[string]any{"text": text}

	if !d.gate.Request(ctx, model.KindType, params) {
		return d.finish(start, params, model.Failure(model.KindType,
			model.TagPermissionDenied, "permission denied for type"))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if res := d.preflight(model.KindType); res != nil {
		return d.finish(start, params, *res)
	}

	if matched, pattern := d.dl.Load().Match(text); matched {
		return d.finish(start, params, model.Failure(model.KindType, model.TagContentBlocked,
			"text blocked for security (matched %q)", pattern))
	}

	if err := d.ensureDisplay(ctx); err != nil {
		return d.finish(start, params, d.collaboratorFailure(model.KindType, "display context", err))
	}

	for _, chunk := range chunkRunes(text, typeChunkRunes) {
		if d.stopped() {
			return d.finish(start, params, model.Failure(model.KindType,
				model.TagSafetyBlocked, "emergency stop engaged mid-action, typing aborted"))
		}
		chunk := chunk
		if err := d.bounded(ctx, d.timeouts.Action, func(ctx context.Context) error {
			return d.injector.TypeText(ctx, chunk)
		}); err != nil {
			return d.finish(start, params, d.collaboratorFailure(model.KindType, "keystroke injection", err))
		}
	}

	return d.finish(start, params, model.ActionResult{
		Kind:      model.KindType,
		Success:   true,
		TextTyped: text,
	})
}

// CaptureScreenshot captures the AI surface to path. Returns the path on
// success, empty string on any failure. Never returns an error.
func (d *Dispatcher) CaptureScreenshot(ctx context.Context, path string) string {
	res := d.CaptureScreenshotResult(ctx, path)
	if !res.Success {
		return ""
	}
	return res.Path
}

// CaptureScreenshotResult is the fully tagged form of CaptureScreenshot.
func (d *Dispatcher) CaptureScreenshotResult(ctx context.Context, path string) model.ActionResult {
	start := time.Now()
	params := map[string]any{"path": path}

	if !d.gate.Request(ctx, model.KindScreenshot, params) {
		return d.finish(start, params, model.Failure(model.KindScreenshot,
			model.TagPermissionDenied, "permission denied for screenshot"))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	res := d.captureLocked(ctx, path)
	return d.finish(start, params, res)
}

// captureLocked performs the state/activity-gated capture. Caller holds mu.
func (d *Dispatcher) captureLocked(ctx context.Context, path string) model.ActionResult {
	if res := d.preflight(model.KindScreenshot); res != nil {
		return *res
	}

	if err := d.ensureDisplay(ctx); err != nil {
		return d.collaboratorFailure(model.KindScreenshot, "display context", err)
	}

	var ok bool
	err := d.bounded(ctx, d.timeouts.Display, func(ctx context.Context) error {
		var captureErr error
		ok, captureErr = d.display.CaptureAIScreenshot(ctx, path)
		return captureErr
	})
	if err != nil {
		return d.collaboratorFailure(model.KindScreenshot, "screenshot capture", err)
	}
	if !ok {
		return model.Failure(model.KindScreenshot, model.TagInjectionFailure,
			"screenshot capture failed")
	}

	return model.ActionResult{Kind: model.KindScreenshot, Success: true, Path: path}
}

// FindElement locates a template on the current frame. Returns nil when the
// frame cannot be captured or the matcher reports not-found.
func (d *Dispatcher) FindElement(ctx context.Context, ref TemplateRef) *model.MatchResult {
	res := d.FindElementResult(ctx, ref)
	if !res.Success || res.Match == nil || !res.Match.Found {
		return nil
	}
	return res.Match
}

// FindElementResult is the fully tagged form of FindElement.
func (d *Dispatcher) FindElementResult(ctx context.Context, ref TemplateRef) model.ActionResult {
	start := time.Now()
	params := map[string]any{"category": ref.Category, "name": ref.Name}

	if !d.gate.Request(ctx, model.KindFindElement, params) {
		return d.finish(start, params, model.Failure(model.KindFindElement,
			model.TagPermissionDenied, "permission denied for find_element"))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.matcher == nil || d.templates == nil {
		return d.finish(start, params, model.Failure(model.KindFindElement,
			model.TagMatchNotFound, "element matcher not configured"))
	}

	framePath := filepath.Join(os.TempDir(),
		fmt.Sprintf("blackice-frame-%s-%d.png", d.sessionID, time.Now().UnixNano()))
	capture := d.captureLocked(ctx, framePath)
	if !capture.Success {
		// Element lookup is moot without a frame; the matcher is never invoked.
		return d.finish(start, params, capture.ForKind(model.KindFindElement))
	}
	defer os.Remove(framePath)

	entry, err := d.templates.Get(ref.Category, ref.Name)
	if err != nil {
		return d.finish(start, params, model.Failure(model.KindFindElement,
			model.TagMatchNotFound, "template lookup failed: %v", err))
	}

	var match *model.MatchResult
	if err := d.bounded(ctx, d.timeouts.Action, func(ctx context.Context) error {
		var matchErr error
		match, matchErr = d.matcher.FindTemplate(ctx, entry.Handle)
		return matchErr
	}); err != nil {
		return d.finish(start, params, d.collaboratorFailure(model.KindFindElement, "template match", err))
	}

	if match == nil || !match.Found {
		return d.finish(start, params, model.Failure(model.KindFindElement,
			model.TagMatchNotFound, "element %s/%s not found on screen", ref.Category, ref.Name))
	}

	return d.finish(start, params, model.ActionResult{
		Kind:    model.KindFindElement,
		Success: true,
		Match:   match,
	})
}

// EmergencyStop halts automation immediately. It is non-blocking (never
// takes the action lock) and its flag flip is visible to the in-flight
// action's next checkpoint. The display is returned to the human exactly
// once per call.
func (d *Dispatcher) EmergencyStop() {
	d.automationActive.Store(false)

	for {
		cur := d.state.Load()
		if State(cur) == StateShutDown || State(cur) == StateEmergencyStopped {
			break
		}
		if d.state.CompareAndSwap(cur, int32(StateEmergencyStopped)) {
			break
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeouts.Display)
	defer cancel()
	if err := d.display.SwitchToUserDisplay(ctx); err != nil {
		d.log.WithError(err).Error("failed to return display to user")
	}

	d.record(model.KindEmergencyStop, "", model.ActionResult{
		Kind:    model.KindEmergencyStop,
		Success: true,
	})
	d.log.Warn("emergency stop engaged")
}

// Reset transitions EmergencyStopped back to Active. Any other state is an
// error; ShutDown is terminal.
func (d *Dispatcher) Reset() error {
	if !d.state.CompareAndSwap(int32(StateEmergencyStopped), int32(StateActive)) {
		return fmt.Errorf("reset is only valid from the emergency-stopped state (current: %s)",
			State(d.state.Load()))
	}
	d.automationActive.Store(true)
	d.log.Info("automation re-armed after emergency stop")
	return nil
}

// Shutdown tears the session down: terminal state, display returned to the
// user, session permission records cleared, audit log closed.
func (d *Dispatcher) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if State(d.state.Load()) == StateShutDown {
		return nil
	}
	d.automationActive.Store(false)
	d.state.Store(int32(StateShutDown))

	ctx, cancel := context.WithTimeout(context.Background(), d.timeouts.Display)
	defer cancel()
	if err := d.display.SwitchToUserDisplay(ctx); err != nil {
		d.log.WithError(err).Error("failed to return display to user during shutdown")
	}

	d.gate.Reset()
	if d.auditLog != nil {
		return d.auditLog.Close()
	}
	return nil
}

// State returns the current lifecycle state.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// --- internals ---

// preflight enforces the state machine and the activity gate.
// Returns nil when dispatch may proceed.
func (d *Dispatcher) preflight(kind model.ActionKind) *model.ActionResult {
	switch State(d.state.Load()) {
	case StateActive:
		// proceed
	case StateEmergencyStopped:
		r := model.Failure(kind, model.TagSafetyBlocked, "emergency stop engaged, reset required")
		return &r
	case StateShutDown:
		r := model.Failure(kind, model.TagSafetyBlocked, "controller is shut down")
		return &r
	default:
		r := model.Failure(kind, model.TagSafetyBlocked, "controller not initialized")
		return &r
	}
	if !d.automationActive.Load() {
		r := model.Failure(kind, model.TagSafetyBlocked, "automation is not active")
		return &r
	}

	if !d.monitor.IsSafeForAutomation() {
		level := d.monitor.CurrentLevel()
		r := model.Failure(kind, model.TagSafetyBlocked,
			"user activity level is %s, automation paused to avoid interference", level)
		return &r
	}
	return nil
}

func (d *Dispatcher) stopped() bool {
	return !d.automationActive.Load() || State(d.state.Load()) != StateActive
}

func (d *Dispatcher) screenSize(ctx context.Context) (int, int, error) {
	var width, height int
	err := d.bounded(ctx, d.timeouts.Display, func(ctx context.Context) error {
		var sizeErr error
		width, height, sizeErr = d.display.ScreenSize(ctx)
		return sizeErr
	})
	return width, height, err
}

func (d *Dispatcher) ensureDisplay(ctx context.Context) error {
	return d.bounded(ctx, d.timeouts.Display, func(ctx context.Context) error {
		return d.display.EnsureAIDisplayContext(ctx)
	})
}

// bounded runs fn under a watchdog timeout and converts panics to errors.
// A hang is reported as context.DeadlineExceeded; the abandoned goroutine
// is left to finish on its own.
func (d *Dispatcher) bounded(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("collaborator panic: %v", r)
			}
		}()
		done <- fn(cctx)
	}()

	select {
	case err := <-done:
		return err
	case <-cctx.Done():
		return cctx.Err()
	}
}

// collaboratorFailure maps a collaborator error to the failure taxonomy:
// deadline expiry is a timeout, everything else an injection failure.
func (d *Dispatcher) collaboratorFailure(kind model.ActionKind, stage string, err error) model.ActionResult {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.Failure(kind, model.TagTimeout, "%s timed out", stage)
	}
	return model.Failure(kind, model.TagInjectionFailure, "%s failed: %v", stage, err)
}

// finish stamps the duration, records the outcome, and returns the result.
func (d *Dispatcher) finish(start time.Time, params map[string]any, res model.ActionResult) model.ActionResult {
	res.Duration = time.Since(start)
	fingerprint := model.ActionRequest{Kind: res.Kind, Params: params}.Fingerprint()
	d.record(res.Kind, fingerprint, res)
	return res
}

func (d *Dispatcher) record(kind model.ActionKind, fingerprint string, res model.ActionResult) {
	entry := d.log.WithFields(logrus.Fields{
		"kind":    kind,
		"success": res.Success,
	})
	if res.Success {
		entry.Info("action dispatched")
	} else {
		entry.WithField("tag", res.Tag).Info(res.ErrorMessage)
	}

	if d.auditLog != nil {
		if err := d.auditLog.Record(audit.Entry{
			SessionID:   d.sessionID,
			Kind:        string(kind),
			Fingerprint: fingerprint,
			Success:     res.Success,
			Tag:         string(res.Tag),
			Reason:      res.ErrorMessage,
		}); err != nil {
			d.log.WithError(err).Warn("failed to record session log entry")
		}
	}
}

// chunkRunes splits text into rune chunks of at most size runes.
func chunkRunes(text string, size int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	var chunks []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

func newSessionID() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("s-%x", time.Now().UnixNano())
	}
	return "s-" + hex.EncodeToString(b)
}
