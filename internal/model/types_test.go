package model

import (
	"strings"
	"testing"
)

func TestParseKindKnown(t *testing.T) {
	for _, k := range KnownKinds {
		got, err := ParseKind(string(k))
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", k, err)
		}
		if got != k {
			t.Errorf("ParseKind(%q) = %q", k, got)
		}
	}
}

func TestParseKindNormalizes(t *testing.T) {
	got, err := ParseKind("  Click ")
	if err != nil {
		t.Fatalf("ParseKind: %v", err)
	}
	if got != KindClick {
		t.Errorf("expected click, got %q", got)
	}
}

func TestParseKindUnknown(t *testing.T) {
	if _, err := ParseKind("reboot"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestTierLabel(t *testing.T) {
	cases := map[int]string{
		TierLow:      "low",
		TierModerate: "moderate",
		TierHigh:     "high",
		99:           "unknown(99)",
	}
	for tier, want := range cases {
		if got := TierLabel(tier); got != want {
			t.Errorf("TierLabel(%d) = %q, want %q", tier, got, want)
		}
	}
}

func TestFingerprintStable(t *testing.T) {
	a := ActionRequest{Kind: KindClick, Params: map[string]any{"x": 10, "y": 20}}
	b := ActionRequest{Kind: KindClick, Params: map[string]any{"y": 20, "x": 10}}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprint should not depend on param insertion order")
	}
	if !strings.HasPrefix(a.Fingerprint(), "sha256:") {
		t.Errorf("unexpected fingerprint format: %s", a.Fingerprint())
	}
}

func TestFingerprintDistinguishesParams(t *testing.T) {
	a := ActionRequest{Kind: KindClick, Params: map[string]any{"x": 10, "y": 20}}
	b := ActionRequest{Kind: KindClick, Params: map[string]any{"x": 11, "y": 20}}
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("different params must produce different fingerprints")
	}
}

func TestFailureCarriesTag(t *testing.T) {
	r := Failure(KindClick, TagBoundsError, "click (%d,%d) outside screen bounds", -1, 300)
	if r.Success {
		t.Error("failure result must not be successful")
	}
	if r.Tag != TagBoundsError {
		t.Errorf("tag = %q", r.Tag)
	}
	if !strings.Contains(r.ErrorMessage, "outside screen bounds") {
		t.Errorf("message = %q", r.ErrorMessage)
	}
}
