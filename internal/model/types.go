package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ActionKind identifies an automation action mediated by the control plane.
type ActionKind string

const (
	KindClick         ActionKind = "click"
	KindType          ActionKind = "type"
	KindScreenshot    ActionKind = "screenshot"
	KindFindElement   ActionKind = "find_element"
	KindEmergencyStop ActionKind = "emergency_stop"
)

// KnownKinds lists every action kind the dispatcher accepts.
var KnownKinds = []ActionKind{
	KindClick, KindType, KindScreenshot, KindFindElement, KindEmergencyStop,
}

// ParseKind maps a string to an ActionKind. Unknown strings return an error
// so callers cannot smuggle unclassified actions past the permission gate.
func ParseKind(s string) (ActionKind, error) {
	k := ActionKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range KnownKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown action kind %q", s)
}

// Risk tier constants. Higher tier = more restricted.
const (
	TierLow      = 0 // Auto-approve, log
	TierModerate = 1 // Auto-approve below ceiling, otherwise confirm
	TierHigh     = 2 // Always requires an external confirmation decision
)

// TierLabel returns a human-readable label for the tier.
func TierLabel(tier int) string {
	switch tier {
	case TierLow:
		return "low"
	case TierModerate:
		return "moderate"
	case TierHigh:
		return "high"
	default:
		return fmt.Sprintf("unknown(%d)", tier)
	}
}

// FailureTag classifies why an action was refused or failed. The dispatcher
// converts every internal fault into exactly one of these; nothing escapes
// the action API as an error value.
type FailureTag string

const (
	TagNone             FailureTag = ""
	TagSafetyBlocked    FailureTag = "safety_blocked"
	TagBoundsError      FailureTag = "bounds_error"
	TagContentBlocked   FailureTag = "content_blocked"
	TagPermissionDenied FailureTag = "permission_denied"
	TagMatchNotFound    FailureTag = "match_not_found"
	TagTimeout          FailureTag = "timeout"
	TagInjectionFailure FailureTag = "injection_failure"
)

// Point is a screen coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ActionRequest describes one requested automation action.
type ActionRequest struct {
	Kind   ActionKind     `json:"kind"`
	Params map[string]any `json:"params,omitempty"`
}

// Fingerprint returns a stable digest of the request for session records.
// Params are serialized with sorted keys so identical requests hash
// identically regardless of map iteration order.
func (r ActionRequest) Fingerprint() string {
	var b strings.Builder
	b.WriteString(string(r.Kind))

	keys := make([]string, 0, len(r.Params))
	for k := range r.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := json.Marshal(r.Params[k])
		if err != nil {
			v = []byte(fmt.Sprintf("%v", r.Params[k]))
		}
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.Write(v)
	}

	h := sha256.Sum256([]byte(b.String()))
	return "sha256:" + hex.EncodeToString(h[:])
}

// MatchResult is the element matcher's structured answer.
type MatchResult struct {
	Found      bool    `json:"found"`
	CenterX    int     `json:"center_x"`
	CenterY    int     `json:"center_y"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	Confidence float64 `json:"confidence"`
}

// ActionResult is the uniform outcome of one dispatched action.
// Exactly one result corresponds to each accepted request.
type ActionResult struct {
	Kind         ActionKind    `json:"kind"`
	Success      bool          `json:"success"`
	Location     *Point        `json:"clicked_location,omitempty"`
	TextTyped    string        `json:"text_typed,omitempty"`
	Path         string        `json:"path,omitempty"`
	Match        *MatchResult  `json:"match,omitempty"`
	Tag          FailureTag    `json:"tag,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Duration     time.Duration `json:"duration_ns,omitempty"`
}

// ForKind returns a copy of the result re-attributed to another action kind.
// Used when a nested step's failure (e.g. the frame capture inside element
// lookup) surfaces as the outer action's result.
func (r ActionResult) ForKind(kind ActionKind) ActionResult {
	r.Kind = kind
	return r
}

// Failure builds a tagged failure result.
func Failure(kind ActionKind, tag FailureTag, format string, args ...any) ActionResult {
	return ActionResult{
		Kind:         kind,
		Success:      false,
		Tag:          tag,
		ErrorMessage: fmt.Sprintf(format, args...),
	}
}
