// Package mcp exposes the guarded desktop actions as MCP tools over stdio,
// so an AI agent can only reach the display through the safety pipeline.
package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/activity"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/dispatch"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/permission"
)

// Server wraps the MCP SDK server around the guarded dispatcher.
type Server struct {
	mcpServer  *mcpsdk.Server
	dispatcher *dispatch.Dispatcher
	monitor    *activity.Monitor
	gate       *permission.Gate
	log        *logrus.Entry
}

// New creates an MCP server with the blackice tools registered.
func New(dispatcher *dispatch.Dispatcher, monitor *activity.Monitor, gate *permission.Gate, log *logrus.Logger) (*Server, error) {
	if dispatcher == nil || monitor == nil || gate == nil {
		return nil, fmt.Errorf("mcp: dispatcher, monitor, and gate are required")
	}
	if log == nil {
		log = logrus.New()
	}

	s := &Server{
		dispatcher: dispatcher,
		monitor:    monitor,
		gate:       gate,
		log:        log.WithField("component", "mcp"),
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "blackice",
			Version: "0.1.0",
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all blackice tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "blackice_click",
		Description: "Click at screen coordinates through the safety pipeline. Unsafe clicks return an error with the reason.",
	}, s.handleClick)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "blackice_type",
		Description: "Type text as keystrokes through the safety pipeline. Dangerous text is blocked before any injection.",
	}, s.handleType)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "blackice_screenshot",
		Description: "Capture the AI display surface to a file.",
	}, s.handleScreenshot)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "blackice_find_element",
		Description: "Locate a reference template on the current screen and return its center coordinates.",
	}, s.handleFindElement)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "blackice_emergency_stop",
		Description: "Halt all automation immediately and return the display to the user. Never blocked.",
	}, s.handleEmergencyStop)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "blackice_status",
		Description: "Report controller state, activity level, resource headroom, and session permission counters.",
	}, s.handleStatus)
}
