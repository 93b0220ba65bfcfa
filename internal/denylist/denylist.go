// Package denylist blocks dangerous text before it is ever injected as
// keystrokes. Matching runs over the entire requested string, not per word,
// and is case-insensitive.
package denylist

import (
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thearpankumar/Project-BlackIceOS-sub002/internal/config"
)

// Denylist holds compiled patterns for fast matching.
type Denylist struct {
	substrings []string
	regexps    []*regexp.Regexp
	raw        config.DenylistPatterns
}

// New creates a Denylist from raw patterns, compiling regexes.
// Patterns that fail to compile are skipped rather than failing the load;
// the substring list is the hard floor.
func New(p config.DenylistPatterns) *Denylist {
	d := &Denylist{raw: p}

	for _, s := range p.Substrings {
		d.substrings = append(d.substrings, strings.ToLower(s))
	}

	for _, r := range p.Regex {
		if compiled, err := regexp.Compile("(?i)" + r); err == nil {
			d.regexps = append(d.regexps, compiled)
		}
	}

	return d
}

// NewDefault creates a Denylist with the built-in default patterns.
func NewDefault() *Denylist {
	return New(DefaultPatterns)
}

// Load reads patterns from a YAML file. Missing file falls back to defaults.
func Load(path string) (*Denylist, error) {
	if path == "" {
		return NewDefault(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDefault(), nil
		}
		return nil, err
	}

	var p config.DenylistPatterns
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}

	return New(p), nil
}

// Match checks text against every pattern. Returns (matched, pattern).
func (d *Denylist) Match(text string) (bool, string) {
	lower := strings.ToLower(text)

	for _, s := range d.substrings {
		if strings.Contains(lower, s) {
			return true, s
		}
	}

	for _, re := range d.regexps {
		if re.MatchString(lower) {
			return true, re.String()
		}
	}

	// Structural pipe-to-shell detection
	if isPipeToShell(lower) {
		return true, "pipe-to-shell execution"
	}

	return false, ""
}

// AddPattern adds a pattern at runtime.
func (d *Denylist) AddPattern(category, pattern string) {
	switch category {
	case "substrings":
		d.raw.Substrings = append(d.raw.Substrings, pattern)
		d.substrings = append(d.substrings, strings.ToLower(pattern))
	case "regex":
		d.raw.Regex = append(d.raw.Regex, pattern)
		if compiled, err := regexp.Compile("(?i)" + pattern); err == nil {
			d.regexps = append(d.regexps, compiled)
		}
	}
}

// Patterns returns the raw pattern set.
func (d *Denylist) Patterns() config.DenylistPatterns {
	return d.raw
}

// isPipeToShell detects piped-to-shell text like "curl ... | sh" or
// "wget ... | bash".
func isPipeToShell(text string) bool {
	if !strings.Contains(text, "|") {
		return false
	}
	shells := []string{"sh", "bash", "zsh", "fish"}
	downloaders := []string{"curl", "wget"}

	hasDownloader := false
	for _, d := range downloaders {
		if strings.Contains(text, d) {
			hasDownloader = true
			break
		}
	}
	if !hasDownloader {
		return false
	}

	parts := strings.Split(text, "|")
	for i := 1; i < len(parts); i++ {
		trimmed := strings.TrimSpace(parts[i])
		for _, s := range shells {
			if trimmed == s || strings.HasPrefix(trimmed, s+" ") {
				return true
			}
		}
	}
	return false
}
