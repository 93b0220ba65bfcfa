package mcp

import (
	"context"
	"strings"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/activity"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/config"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/dispatch"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/model"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/permission"
)

type stubProber struct{ sample activity.Sample }

func (p stubProber) Probe(ctx context.Context) (activity.Sample, error) { return p.sample, nil }

type stubDisplay struct{}

func (stubDisplay) EnsureAIDisplayContext(ctx context.Context) error { return nil }
func (stubDisplay) CaptureAIScreenshot(ctx context.Context, path string) (bool, error) {
	return true, nil
}
func (stubDisplay) SwitchToUserDisplay(ctx context.Context) error { return nil }
func (stubDisplay) ScreenSize(ctx context.Context) (int, int, error) {
	return 1920, 1080, nil
}

type stubInjector struct{}

func (stubInjector) Click(ctx context.Context, x, y int) error       { return nil }
func (stubInjector) TypeText(ctx context.Context, text string) error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()

	monitor := activity.New(stubProber{sample: activity.Sample{
		InputIdleSeconds: 600, CPUPercent: 10, MemPercent: 30,
	}}, config.Default().Activity, nil)
	monitor.Sample()

	gate := permission.NewGate(config.Default().Permissions, nil, nil)
	d, err := dispatch.New(dispatch.Deps{
		Gate:     gate,
		Monitor:  monitor,
		Display:  stubDisplay{},
		Injector: stubInjector{},
		Timeouts: config.TimeoutConfig{Action: 200 * time.Millisecond, Display: 200 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("dispatch.New: %v", err)
	}

	s, err := New(d, monitor, gate, nil)
	if err != nil {
		t.Fatalf("failed to create MCP server: %v", err)
	}
	return s
}

func TestClickAllowed(t *testing.T) {
	s := newTestServer(t)

	result, out, err := s.handleClick(context.Background(), &mcpsdk.CallToolRequest{}, ClickInput{X: 500, Y: 300})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil && result.IsError {
		t.Fatalf("expected success, got error result: %q", out.Reason)
	}
	if out.X != 500 || out.Y != 300 {
		t.Fatalf("expected (500,300), got (%d,%d)", out.X, out.Y)
	}
}

func TestClickOutOfBounds(t *testing.T) {
	s := newTestServer(t)

	result, out, err := s.handleClick(context.Background(), &mcpsdk.CallToolRequest{}, ClickInput{X: 5000, Y: 300})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatal("expected IsError result for out-of-bounds click")
	}
	if out.Tag != string(model.TagBoundsError) {
		t.Fatalf("expected bounds tag, got %q", out.Tag)
	}
}

func TestTypeBlocked(t *testing.T) {
	s := newTestServer(t)

	result, out, err := s.handleType(context.Background(), &mcpsdk.CallToolRequest{}, TypeInput{Text: "rm -rf /"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatal("expected IsError result for dangerous text")
	}
	if out.Tag != string(model.TagContentBlocked) {
		t.Fatalf("expected content tag, got %q", out.Tag)
	}
	if !strings.Contains(out.Reason, "blocked for security") {
		t.Fatalf("unexpected reason: %q", out.Reason)
	}
}

func TestScreenshotDefaultPath(t *testing.T) {
	s := newTestServer(t)

	result, out, err := s.handleScreenshot(context.Background(), &mcpsdk.CallToolRequest{}, ScreenshotInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil && result.IsError {
		t.Fatalf("expected success, got error result: %q", out.Reason)
	}
	if out.Path == "" || !strings.HasSuffix(out.Path, ".png") {
		t.Fatalf("expected generated png path, got %q", out.Path)
	}
}

func TestFindElementNotFoundIsNotAnError(t *testing.T) {
	s := newTestServer(t)

	// No matcher or template cache is wired, lookup reports not-found.
	result, out, err := s.handleFindElement(context.Background(), &mcpsdk.CallToolRequest{}, FindElementInput{
		Category: "browsers", Name: "firefox_icon",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil && result.IsError {
		t.Fatal("not-found must not be a tool error")
	}
	if out.Found {
		t.Fatal("expected found=false")
	}
}

func TestEmergencyStopTool(t *testing.T) {
	s := newTestServer(t)

	_, out, err := s.handleEmergencyStop(context.Background(), &mcpsdk.CallToolRequest{}, EmergencyStopInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.State != "emergency_stopped" {
		t.Fatalf("state = %q", out.State)
	}

	result, clickOut, err := s.handleClick(context.Background(), &mcpsdk.CallToolRequest{}, ClickInput{X: 1, Y: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatalf("click after stop must be an error result, got %q", clickOut.Reason)
	}
}

func TestStatusTool(t *testing.T) {
	s := newTestServer(t)
	s.handleClick(context.Background(), &mcpsdk.CallToolRequest{}, ClickInput{X: 500, Y: 300})

	_, out, err := s.handleStatus(context.Background(), &mcpsdk.CallToolRequest{}, StatusInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.State != "active" {
		t.Fatalf("state = %q", out.State)
	}
	if out.ActivityLevel != "idle" {
		t.Fatalf("activity = %q", out.ActivityLevel)
	}
	if !out.SafeForAutomation {
		t.Fatal("expected safe_for_automation")
	}
	if out.Permissions.ApprovedActions == 0 {
		t.Fatal("expected at least one approved action")
	}
}

func TestToolRegistration(t *testing.T) {
	s := newTestServer(t)
	if s.mcpServer == nil {
		t.Fatal("expected MCP server to be initialized")
	}
}
