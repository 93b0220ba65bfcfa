package reload

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/config"
)

const validConfig = `
activity:
  sample_interval: 2s
  thresholds:
    idle_seconds: 120
    light_seconds: 30
    cpu_saturation: 70
    mem_saturation: 80
permissions:
  auto_approve_ceiling: moderate
  approval_timeout: 10s
  history_size: 20
  tiers:
    click: moderate
    type: moderate
    screenshot: low
    find_element: low
timeouts:
  action: 5s
  display: 3s
`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReloadApplies(t *testing.T) {
	path := writeConfig(t, t.TempDir(), validConfig)

	var applied *config.Config
	r, err := NewReloader(path, func(cfg *config.Config) error {
		applied = cfg
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}

	r.reload()
	if applied == nil {
		t.Fatal("apply was not called")
	}
	if got := applied.Activity.Thresholds.IdleSeconds; got != 120 {
		t.Errorf("idle_seconds = %v", got)
	}
}

func TestReloadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "activity: {thresholds: {idle_seconds: -5}}")

	called := false
	r, err := NewReloader(path, func(cfg *config.Config) error {
		called = true
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}

	r.reload()
	if called {
		t.Error("invalid config must not be applied")
	}
}

func TestReloadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), validConfig)

	called := false
	r, err := NewReloader(path, func(cfg *config.Config) error {
		called = true
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}

	if err := os.WriteFile(path, []byte("activity: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	r.reload()
	if called {
		t.Error("malformed config must not be applied")
	}
}

func TestNewReloaderMissingFile(t *testing.T) {
	if _, err := NewReloader(filepath.Join(t.TempDir(), "absent.yaml"), nil, nil); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestRunTriggersOnWrite(t *testing.T) {
	path := writeConfig(t, t.TempDir(), validConfig)

	appliedCh := make(chan *config.Config, 1)
	r, err := NewReloader(path, func(cfg *config.Config) error {
		select {
		case appliedCh <- cfg:
		default:
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}
	r.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()

	// Give the watcher a moment to register before the write lands.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte(validConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-appliedCh:
		if cfg.Activity.Thresholds.LightSeconds != 30 {
			t.Errorf("light_seconds = %v", cfg.Activity.Thresholds.LightSeconds)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("reload never fired after config write")
	}

	cancel()
	<-done
}
