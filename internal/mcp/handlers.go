package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/dispatch"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/model"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/permission"
)

// --- Input/Output types ---

// ClickInput defines parameters for the blackice_click tool.
type ClickInput struct {
	X int `json:"x" jsonschema:"horizontal screen coordinate in pixels"`
	Y int `json:"y" jsonschema:"vertical screen coordinate in pixels"`
}

// ClickOutput reports the click outcome.
type ClickOutput struct {
	Success    bool   `json:"success"`
	X          int    `json:"x,omitempty"`
	Y          int    `json:"y,omitempty"`
	Tag        string `json:"tag,omitempty"`
	Reason     string `json:"reason,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// TypeInput defines parameters for the blackice_type tool.
type TypeInput struct {
	Text string `json:"text" jsonschema:"text to inject as keystrokes"`
}

// TypeOutput reports the typing outcome.
type TypeOutput struct {
	Success    bool   `json:"success"`
	TextTyped  string `json:"text_typed,omitempty"`
	Tag        string `json:"tag,omitempty"`
	Reason     string `json:"reason,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// ScreenshotInput defines parameters for the blackice_screenshot tool.
type ScreenshotInput struct {
	Path string `json:"path,omitempty" jsonschema:"destination file path, a temp path is chosen when omitted"`
}

// ScreenshotOutput reports the capture outcome.
type ScreenshotOutput struct {
	Success bool   `json:"success"`
	Path    string `json:"path,omitempty"`
	Tag     string `json:"tag,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// FindElementInput defines parameters for the blackice_find_element tool.
type FindElementInput struct {
	Category string `json:"category" jsonschema:"template category (e.g. browsers)"`
	Name     string `json:"name" jsonschema:"template name without extension"`
}

// FindElementOutput reports the match, if any.
type FindElementOutput struct {
	Found      bool    `json:"found"`
	CenterX    int     `json:"center_x,omitempty"`
	CenterY    int     `json:"center_y,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Tag        string  `json:"tag,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// EmergencyStopInput is empty, a stop takes no parameters.
type EmergencyStopInput struct{}

// EmergencyStopOutput confirms the stop.
type EmergencyStopOutput struct {
	State string `json:"state"`
}

// StatusInput is empty.
type StatusInput struct{}

// StatusOutput is the controller diagnostics view.
type StatusOutput struct {
	State             string                   `json:"state"`
	SessionID         string                   `json:"session_id"`
	ActivityLevel     string                   `json:"activity_level"`
	SafeForAutomation bool                     `json:"safe_for_automation"`
	CPUPercent        float64                  `json:"cpu_percent"`
	MemPercent        float64                  `json:"mem_percent"`
	Degraded          bool                     `json:"degraded"`
	Permissions       permission.SessionStatus `json:"permissions"`
}

// --- Handlers ---

func (s *Server) handleClick(ctx context.Context, req *mcpsdk.CallToolRequest, input ClickInput) (*mcpsdk.CallToolResult, ClickOutput, error) {
	res := s.dispatcher.SafeClick(ctx, input.X, input.Y)

	out := ClickOutput{
		Success:    res.Success,
		Tag:        string(res.Tag),
		Reason:     res.ErrorMessage,
		DurationMS: res.Duration.Milliseconds(),
	}
	if res.Location != nil {
		out.X, out.Y = res.Location.X, res.Location.Y
	}
	if !res.Success {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleType(ctx context.Context, req *mcpsdk.CallToolRequest, input TypeInput) (*mcpsdk.CallToolResult, TypeOutput, error) {
	res := s.dispatcher.SafeType(ctx, input.Text)

	out := TypeOutput{
		Success:    res.Success,
		TextTyped:  res.TextTyped,
		Tag:        string(res.Tag),
		Reason:     res.ErrorMessage,
		DurationMS: res.Duration.Milliseconds(),
	}
	if !res.Success {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleScreenshot(ctx context.Context, req *mcpsdk.CallToolRequest, input ScreenshotInput) (*mcpsdk.CallToolResult, ScreenshotOutput, error) {
	path := input.Path
	if path == "" {
		path = filepath.Join(os.TempDir(),
			fmt.Sprintf("blackice-shot-%s-%d.png", s.dispatcher.SessionID(), time.Now().UnixNano()))
	}

	res := s.dispatcher.CaptureScreenshotResult(ctx, path)
	out := ScreenshotOutput{
		Success: res.Success,
		Path:    res.Path,
		Tag:     string(res.Tag),
		Reason:  res.ErrorMessage,
	}
	if !res.Success {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleFindElement(ctx context.Context, req *mcpsdk.CallToolRequest, input FindElementInput) (*mcpsdk.CallToolResult, FindElementOutput, error) {
	res := s.dispatcher.FindElementResult(ctx, dispatch.TemplateRef{
		Category: input.Category,
		Name:     input.Name,
	})

	if !res.Success || res.Match == nil {
		out := FindElementOutput{
			Found:  false,
			Tag:    string(res.Tag),
			Reason: res.ErrorMessage,
		}
		// Not-found is a normal answer, not a tool error.
		if res.Tag == model.TagMatchNotFound {
			return nil, out, nil
		}
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}

	m := res.Match
	return nil, FindElementOutput{
		Found:      m.Found,
		CenterX:    m.CenterX,
		CenterY:    m.CenterY,
		Width:      m.Width,
		Height:     m.Height,
		Confidence: m.Confidence,
	}, nil
}

func (s *Server) handleEmergencyStop(ctx context.Context, req *mcpsdk.CallToolRequest, input EmergencyStopInput) (*mcpsdk.CallToolResult, EmergencyStopOutput, error) {
	s.dispatcher.EmergencyStop()
	s.log.Warn("emergency stop requested over mcp")
	return nil, EmergencyStopOutput{State: s.dispatcher.State().String()}, nil
}

func (s *Server) handleStatus(ctx context.Context, req *mcpsdk.CallToolRequest, input StatusInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	resources := s.monitor.CheckResources()
	return nil, StatusOutput{
		State:             s.dispatcher.State().String(),
		SessionID:         s.dispatcher.SessionID(),
		ActivityLevel:     string(s.monitor.CurrentLevel()),
		SafeForAutomation: s.monitor.IsSafeForAutomation(),
		CPUPercent:        resources.CPUPercent,
		MemPercent:        resources.MemPercent,
		Degraded:          resources.Degraded,
		Permissions:       s.gate.Status(),
	}, nil
}
