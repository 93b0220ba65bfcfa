package blackice

import (
	"context"
	"fmt"

	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/dispatch"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/model"
)

// Action describes what a wrapped tool intends to do.
type Action struct {
	Kind   model.ActionKind // click, type, screenshot, find_element
	Params map[string]any   // action parameters, hashed into the fingerprint
}

// BlockedError is returned when the safety pipeline refuses an action.
type BlockedError struct {
	Action Action
	Tag    model.FailureTag
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blackice blocked (%s): %s", e.Tag, e.Reason)
}

// ToolFunc is the function signature that Wrap guards.
type ToolFunc func(ctx context.Context, action Action) (any, error)

// Wrap returns a ToolFunc that runs the permission, state, and activity
// gates before calling fn. A refused action returns a *BlockedError without
// fn ever being called. The wrapped function itself is responsible for what
// it injects; prefer the typed Click/Type/Screenshot/FindElement methods
// when the action maps to one of them.
func (c *Client) Wrap(fn ToolFunc) ToolFunc {
	return func(ctx context.Context, action Action) (any, error) {
		if _, err := model.ParseKind(string(action.Kind)); err != nil {
			return nil, &BlockedError{
				Action: action,
				Tag:    model.TagPermissionDenied,
				Reason: err.Error(),
			}
		}

		if state := c.dispatcher.State(); state != dispatch.StateActive {
			return nil, &BlockedError{
				Action: action,
				Tag:    model.TagSafetyBlocked,
				Reason: fmt.Sprintf("controller is %s", state),
			}
		}

		if !c.gate.Request(ctx, action.Kind, action.Params) {
			return nil, &BlockedError{
				Action: action,
				Tag:    model.TagPermissionDenied,
				Reason: fmt.Sprintf("permission denied for %s", action.Kind),
			}
		}

		if !c.monitor.IsSafeForAutomation() {
			return nil, &BlockedError{
				Action: action,
				Tag:    model.TagSafetyBlocked,
				Reason: fmt.Sprintf("user activity level is %s, automation paused to avoid interference",
					c.monitor.CurrentLevel()),
			}
		}

		return fn(ctx, action)
	}
}
