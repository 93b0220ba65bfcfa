// Package template resolves and caches the reference images used for
// element lookup. It never performs matching itself.
package template

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Entry is one cached reference image.
type Entry struct {
	Category   string
	Name       string
	Path       string
	Handle     []byte
	LastUsedAt time.Time
}

// slot tracks an in-flight or completed load for one (category, name) key.
type slot struct {
	ready chan struct{}
	entry *Entry
	err   error
}

// Cache maps (category, name) to a loaded reference image with at-most-once
// load per key. Concurrent Get calls for the same key share a single load.
type Cache struct {
	root       string
	categories map[string]bool

	mu    sync.Mutex
	slots map[string]*slot
}

// NewCache creates a Cache rooted at the given directory with the configured
// category set.
func NewCache(root string, categories []string) *Cache {
	known := make(map[string]bool, len(categories))
	for _, c := range categories {
		known[c] = true
	}
	return &Cache{
		root:       root,
		categories: known,
		slots:      make(map[string]*slot),
	}
}

// Categories returns the known category names, sorted.
func (c *Cache) Categories() []string {
	out := make([]string, 0, len(c.categories))
	for cat := range c.categories {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// ResolvePath constructs the deterministic path for a template and verifies
// it exists. Unknown categories and absent files are not-found errors.
func (c *Cache) ResolvePath(category, name string) (string, error) {
	if !c.categories[category] {
		return "", fmt.Errorf("template category %q not found", category)
	}
	path := filepath.Join(c.root, category, name+".png")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("template %s/%s not found: %w", category, name, err)
	}
	return path, nil
}

// Get returns the cached entry for the key, loading it on first use.
// Population is single-flight: concurrent callers for the same key wait on
// one load. Failed loads are not cached, so a later call can retry after
// the file appears.
func (c *Cache) Get(category, name string) (*Entry, error) {
	key := category + "/" + name

	c.mu.Lock()
	s, ok := c.slots[key]
	if ok {
		c.mu.Unlock()
		<-s.ready
		if s.err != nil {
			return nil, s.err
		}
		c.touch(s.entry)
		return s.entry, nil
	}

	s = &slot{ready: make(chan struct{})}
	c.slots[key] = s
	c.mu.Unlock()

	entry, err := c.load(category, name)

	c.mu.Lock()
	if err != nil {
		delete(c.slots, key)
	}
	s.entry, s.err = entry, err
	c.mu.Unlock()
	close(s.ready)

	if err != nil {
		return nil, err
	}
	c.touch(entry)
	return entry, nil
}

func (c *Cache) load(category, name string) (*Entry, error) {
	path, err := c.ResolvePath(category, name)
	if err != nil {
		return nil, err
	}

	handle, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load template %s/%s: %w", category, name, err)
	}

	return &Entry{
		Category: category,
		Name:     name,
		Path:     path,
		Handle:   handle,
	}, nil
}

func (c *Cache) touch(e *Entry) {
	c.mu.Lock()
	e.LastUsedAt = time.Now()
	c.mu.Unlock()
}
