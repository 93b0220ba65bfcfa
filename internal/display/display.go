// Package display defines the collaborator contracts the dispatcher injects
// through. The implementations live with the session transport; this core
// only consumes them.
package display

import (
	"context"

	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/model"
)

// Context is the display/session transport contract. It owns which surface
// (AI or human) currently has control.
type Context interface {
	// EnsureAIDisplayContext foregrounds the automation surface.
	EnsureAIDisplayContext(ctx context.Context) error
	// CaptureAIScreenshot writes a frame of the AI surface to path.
	// A false return signals capture failure without an error condition.
	CaptureAIScreenshot(ctx context.Context, path string) (bool, error)
	// SwitchToUserDisplay returns control to the human-facing display.
	SwitchToUserDisplay(ctx context.Context) error
	// ScreenSize reports the current screen dimensions. Queried fresh per
	// action so late display reconfiguration is honored.
	ScreenSize(ctx context.Context) (width, height int, err error)
}

// Injector performs the synthetic input events.
type Injector interface {
	Click(ctx context.Context, x, y int) error
	TypeText(ctx context.Context, text string) error
}

// ElementMatcher locates a reference image within the current frame.
// The matching algorithm itself is an external collaborator.
type ElementMatcher interface {
	FindTemplate(ctx context.Context, handle []byte) (*model.MatchResult, error)
}
