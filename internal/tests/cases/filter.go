package cases

import (
	"path/filepath"
	"strings"
)

// Filter restricts a run to matching test names. Patterns are
// comma-separated globs; an empty filter matches everything.
type Filter struct {
	patterns []string
}

// FilterFromString parses a filter string such as "math-*,unwind".
func FilterFromString(s string) *Filter {
	var patterns []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			patterns = append(patterns, p)
		}
	}
	return &Filter{patterns: patterns}
}

// Matches reports whether the test name passes the filter.
func (f *Filter) Matches(name string) bool {
	if len(f.patterns) == 0 {
		return true
	}
	for _, p := range f.patterns {
		if ok, err := filepath.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
