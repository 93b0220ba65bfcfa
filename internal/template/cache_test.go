package template

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func writeTemplate(t *testing.T, root, category, name string, data []byte) {
	t.Helper()
	dir := filepath.Join(root, category)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".png"), data, 0600); err != nil {
		t.Fatal(err)
	}
}

func TestResolvePath(t *testing.T) {
	root := t.TempDir()
	writeTemplate(t, root, "browsers", "firefox_icon", []byte("png"))
	c := NewCache(root, []string{"browsers", "editors"})

	path, err := c.ResolvePath("browsers", "firefox_icon")
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}
	if path != filepath.Join(root, "browsers", "firefox_icon.png") {
		t.Errorf("unexpected path %q", path)
	}
}

func TestResolvePathUnknownCategory(t *testing.T) {
	c := NewCache(t.TempDir(), []string{"browsers"})
	if _, err := c.ResolvePath("games", "icon"); err == nil {
		t.Error("expected not-found error for unknown category")
	}
}

func TestResolvePathMissingFile(t *testing.T) {
	c := NewCache(t.TempDir(), []string{"browsers"})
	if _, err := c.ResolvePath("browsers", "absent"); err == nil {
		t.Error("expected not-found error for absent file")
	}
}

func TestGetCachesHandle(t *testing.T) {
	root := t.TempDir()
	writeTemplate(t, root, "editors", "save_button", []byte("pixels"))
	c := NewCache(root, []string{"editors"})

	e1, err := c.Get("editors", "save_button")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(e1.Handle) != "pixels" {
		t.Errorf("handle = %q", e1.Handle)
	}
	if e1.LastUsedAt.IsZero() {
		t.Error("LastUsedAt must be set")
	}

	// Rewrite the file; the cached handle must not change (at-most-once load).
	writeTemplate(t, root, "editors", "save_button", []byte("different"))
	e2, err := c.Get("editors", "save_button")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e1 != e2 {
		t.Error("expected the same cached entry")
	}
	if string(e2.Handle) != "pixels" {
		t.Error("cached handle must not be reloaded")
	}
}

func TestGetFailureNotCached(t *testing.T) {
	root := t.TempDir()
	c := NewCache(root, []string{"system"})

	if _, err := c.Get("system", "tray"); err == nil {
		t.Fatal("expected error for absent template")
	}

	writeTemplate(t, root, "system", "tray", []byte("icon"))
	if _, err := c.Get("system", "tray"); err != nil {
		t.Errorf("retry after file appears should succeed: %v", err)
	}
}

func TestGetSingleFlight(t *testing.T) {
	root := t.TempDir()
	writeTemplate(t, root, "browsers", "tab", []byte("png"))

	c := NewCache(root, []string{"browsers"})

	// Every concurrent caller must receive the identical entry pointer.
	const n = 32
	entries := make([]*Entry, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := c.Get("browsers", "tab")
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			entries[i] = e
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if entries[i] != entries[0] {
			t.Fatal("concurrent Get calls must share one cached entry")
		}
	}
}

func TestCategoriesSorted(t *testing.T) {
	c := NewCache(t.TempDir(), []string{"system", "browsers", "editors"})
	got := c.Categories()
	want := []string{"browsers", "editors", "system"}
	if len(got) != len(want) {
		t.Fatalf("categories = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("categories = %v, want %v", got, want)
			break
		}
	}
}
