package permission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/config"
	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/model"
)

func gateConfig() config.PermissionConfig {
	return config.PermissionConfig{
		RequireConfirmation: false,
		AutoApproveCeiling:  "moderate",
		ApprovalTimeout:     100 * time.Millisecond,
		HistorySize:         5,
		Tiers: map[string]string{
			"click":        "moderate",
			"type":         "moderate",
			"screenshot":   "low",
			"find_element": "low",
		},
	}
}

func TestAutoApproveBelowCeiling(t *testing.T) {
	g := NewGate(gateConfig(), nil, nil)
	if !g.Request(context.Background(), model.KindClick, map[string]any{"x": 1, "y": 2}) {
		t.Error("moderate tier should auto-approve below ceiling")
	}
	if !g.Request(context.Background(), model.KindScreenshot, nil) {
		t.Error("low tier should auto-approve")
	}
}

func TestUnknownKindFailsClosed(t *testing.T) {
	// The kind is valid but has no configured tier: resolves to high, which
	// needs confirmation, and there is no approver.
	cfg := gateConfig()
	delete(cfg.Tiers, "click")
	g := NewGate(cfg, nil, nil)
	if g.Request(context.Background(), model.KindClick, nil) {
		t.Error("unconfigured kind must be denied without an approver")
	}
}

func TestRequireConfirmationConsultsApprover(t *testing.T) {
	cfg := gateConfig()
	cfg.RequireConfirmation = true

	var seen Request
	approver := ApproverFunc(func(ctx context.Context, req Request) (bool, error) {
		seen = req
		return true, nil
	})

	g := NewGate(cfg, approver, nil)
	if !g.Request(context.Background(), model.KindClick, map[string]any{"x": 5}) {
		t.Error("approver said yes, request must be approved")
	}
	if seen.Kind != model.KindClick || seen.Tier != model.TierModerate {
		t.Errorf("approver saw %+v", seen)
	}
	if seen.Fingerprint == "" {
		t.Error("approver must see the parameter fingerprint")
	}
}

func TestApproverDenial(t *testing.T) {
	cfg := gateConfig()
	cfg.RequireConfirmation = true
	g := NewGate(cfg, ApproverFunc(func(ctx context.Context, req Request) (bool, error) {
		return false, nil
	}), nil)
	if g.Request(context.Background(), model.KindType, map[string]any{"text": "hi"}) {
		t.Error("approver said no, request must be denied")
	}
}

func TestApproverTimeoutDefaultsToDenial(t *testing.T) {
	cfg := gateConfig()
	cfg.RequireConfirmation = true
	cfg.ApprovalTimeout = 20 * time.Millisecond

	g := NewGate(cfg, ApproverFunc(func(ctx context.Context, req Request) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	}), nil)

	start := time.Now()
	if g.Request(context.Background(), model.KindClick, nil) {
		t.Error("timed-out approval must be denied")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("approval wait was not bounded: %v", elapsed)
	}
}

func TestApproverErrorDenies(t *testing.T) {
	cfg := gateConfig()
	cfg.RequireConfirmation = true
	g := NewGate(cfg, ApproverFunc(func(ctx context.Context, req Request) (bool, error) {
		return true, errors.New("approval channel down")
	}), nil)
	if g.Request(context.Background(), model.KindClick, nil) {
		t.Error("approver error must deny")
	}
}

func TestEmergencyStopNeverGated(t *testing.T) {
	cfg := gateConfig()
	cfg.RequireConfirmation = true
	// No approver: everything else would be denied.
	g := NewGate(cfg, nil, nil)
	if !g.Request(context.Background(), model.KindEmergencyStop, nil) {
		t.Error("emergency_stop must always be approved")
	}
}

func TestDecisionsAreIndependentAndCountersMonotonic(t *testing.T) {
	g := NewGate(gateConfig(), nil, nil)
	params := map[string]any{"path": "/tmp/shot.png"}

	before := g.Status().SessionPermissions
	g.Request(context.Background(), model.KindScreenshot, params)
	mid := g.Status().SessionPermissions
	g.Request(context.Background(), model.KindScreenshot, params)
	after := g.Status().SessionPermissions

	if !(before < mid && mid < after) {
		t.Errorf("session_permissions must grow per decision: %d, %d, %d", before, mid, after)
	}
	if got := g.Status().ApprovedActions; got != 2 {
		t.Errorf("approved = %d, want 2 (identical requests decided independently)", got)
	}
}

func TestRecentRingBounded(t *testing.T) {
	g := NewGate(gateConfig(), nil, nil) // history size 5
	for i := 0; i < 9; i++ {
		g.Request(context.Background(), model.KindClick, map[string]any{"x": i})
	}

	st := g.Status()
	if len(st.RecentActions) != 5 {
		t.Fatalf("recent = %d entries, want 5", len(st.RecentActions))
	}
	// The oldest entries were evicted: the surviving ring holds the last 5.
	first := st.RecentActions[0]
	want := model.ActionRequest{Kind: model.KindClick, Params: map[string]any{"x": 4}}.Fingerprint()
	if first.Fingerprint != want {
		t.Errorf("oldest surviving fingerprint = %s, want %s", first.Fingerprint, want)
	}
}

func TestReset(t *testing.T) {
	g := NewGate(gateConfig(), nil, nil)
	g.Request(context.Background(), model.KindClick, nil)
	g.Reset()
	st := g.Status()
	if st.SessionPermissions != 0 || len(st.RecentActions) != 0 {
		t.Errorf("status after reset = %+v", st)
	}
}
