// Package permission is the session-scoped, risk-tiered approval authority.
// It decides whether a kind of action with given parameters may proceed,
// independent of momentary system activity.
package permission

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/config"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/model"
)

// Approver is the pluggable external confirmation decision. Decide blocks
// until a human (or policy service) answers or ctx expires.
type Approver interface {
	Decide(ctx context.Context, req Request) (bool, error)
}

// ApproverFunc adapts a function to the Approver interface.
type ApproverFunc func(ctx context.Context, req Request) (bool, error)

// Decide implements Approver.
func (f ApproverFunc) Decide(ctx context.Context, req Request) (bool, error) {
	return f(ctx, req)
}

// Request is the material an approver sees for one decision.
type Request struct {
	Kind        model.ActionKind `json:"kind"`
	Params      map[string]any   `json:"params,omitempty"`
	Tier        int              `json:"tier"`
	Fingerprint string           `json:"fingerprint"`
}

// Record is one permission decision retained in the session history.
type Record struct {
	Kind        model.ActionKind `json:"action_kind"`
	Fingerprint string           `json:"parameter_fingerprint"`
	Decision    string           `json:"decision"`
	Timestamp   time.Time        `json:"timestamp"`
}

// SessionStatus is the read-only session summary.
type SessionStatus struct {
	SessionPermissions int      `json:"session_permissions"`
	ApprovedActions    int      `json:"approved_actions"`
	DeniedActions      int      `json:"denied_actions"`
	RecentActions      []Record `json:"recent_actions"`
}

// Gate evaluates risk tiers against session policy. Every call to Request
// is an independent decision: prior approvals are never replayed to bypass
// a fresh check, only the aggregate counters accumulate.
type Gate struct {
	tiers               map[model.ActionKind]int
	requireConfirmation bool
	ceiling             int
	approver            Approver
	timeout             time.Duration
	historySize         int
	log                 *logrus.Entry

	mu       sync.Mutex
	approved int
	denied   int
	recent   []Record
}

// NewGate creates a Gate from validated configuration. A nil approver means
// any decision that needs external confirmation is denied.
func NewGate(cfg config.PermissionConfig, approver Approver, log *logrus.Logger) *Gate {
	if log == nil {
		log = logrus.New()
	}
	tiers := make(map[model.ActionKind]int, len(cfg.Tiers))
	for kind, label := range cfg.Tiers {
		k, err := model.ParseKind(kind)
		if err != nil {
			continue
		}
		tier, err := config.ParseTier(label)
		if err != nil {
			tier = model.TierHigh
		}
		tiers[k] = tier
	}
	ceiling, err := config.ParseTier(cfg.AutoApproveCeiling)
	if err != nil {
		ceiling = model.TierLow
	}

	g := &Gate{
		tiers:               tiers,
		requireConfirmation: cfg.RequireConfirmation,
		ceiling:             ceiling,
		approver:            approver,
		timeout:             cfg.ApprovalTimeout,
		historySize:         cfg.HistorySize,
		log:                 log.WithField("component", "permission"),
	}
	return g
}

// TierFor returns the static risk tier for an action kind.
// Unconfigured kinds resolve to the highest tier (fail closed);
// emergency_stop is always the lowest tier so a stop can never be gated.
func (g *Gate) TierFor(kind model.ActionKind) int {
	if kind == model.KindEmergencyStop {
		return model.TierLow
	}
	if tier, ok := g.tiers[kind]; ok {
		return tier
	}
	return model.TierHigh
}

// Request evaluates one permission decision and records it.
// Auto-approves when confirmation is off and the tier is at or below the
// ceiling; otherwise consults the approver, bounded by the configured
// timeout, defaulting to denial.
func (g *Gate) Request(ctx context.Context, kind model.ActionKind, params map[string]any) bool {
	req := model.ActionRequest{Kind: kind, Params: params}
	fingerprint := req.Fingerprint()
	tier := g.TierFor(kind)

	if kind == model.KindEmergencyStop {
		// A stop request is never blocked on anything.
		g.record(kind, fingerprint, true)
		return true
	}

	if !g.requireConfirmation && tier <= g.ceiling {
		g.record(kind, fingerprint, true)
		return true
	}

	approved := g.confirm(ctx, Request{
		Kind:        kind,
		Params:      params,
		Tier:        tier,
		Fingerprint: fingerprint,
	})
	g.record(kind, fingerprint, approved)
	return approved
}

// confirm asks the approver, bounded by the timeout. Any error, timeout, or
// missing approver resolves to denial.
func (g *Gate) confirm(ctx context.Context, req Request) bool {
	if g.approver == nil {
		g.log.WithField("kind", req.Kind).Debug("no approver configured, denying")
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ok, err := g.approver.Decide(ctx, req)
	if err != nil {
		g.log.WithError(err).WithField("kind", req.Kind).Warn("approver failed, denying")
		return false
	}
	return ok
}

func (g *Gate) record(kind model.ActionKind, fingerprint string, approved bool) {
	decision := "denied"
	if approved {
		decision = "approved"
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if approved {
		g.approved++
	} else {
		g.denied++
	}
	g.recent = append(g.recent, Record{
		Kind:        kind,
		Fingerprint: fingerprint,
		Decision:    decision,
		Timestamp:   time.Now().UTC(),
	})
	if len(g.recent) > g.historySize {
		g.recent = g.recent[len(g.recent)-g.historySize:]
	}
}

// Status returns the session summary. The recent ring is copied so callers
// cannot mutate gate state.
func (g *Gate) Status() SessionStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	recent := make([]Record, len(g.recent))
	copy(recent, g.recent)
	return SessionStatus{
		SessionPermissions: g.approved + g.denied,
		ApprovedActions:    g.approved,
		DeniedActions:      g.denied,
		RecentActions:      recent,
	}
}

// Reset clears the session history and counters. Called at session teardown.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.approved, g.denied = 0, 0
	g.recent = nil
}
