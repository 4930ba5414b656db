package naming

import (
	"fmt"
	"path/filepath"

	"github.com/gobwas/glob"
)

// Excluder matches base names against a set of glob patterns
// ("*_thumb.webp", "draft-*").
type Excluder struct {
	patterns []string
	globs    []glob.Glob
}

// NewExcluder compiles patterns. An empty set excludes nothing.
func NewExcluder(patterns []string) (*Excluder, error) {
	e := &Excluder{}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		e.patterns = append(e.patterns, p)
		e.globs = append(e.globs, g)
	}
	return e, nil
}

// Excluded reports whether the base name of path matches any pattern.
// A nil Excluder excludes nothing.
func (e *Excluder) Excluded(path string) bool {
	if e == nil {
		return false
	}
	base := filepath.Base(path)
	for _, g := range e.globs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

// Patterns returns the source patterns.
func (e *Excluder) Patterns() []string {
	if e == nil {
		return nil
	}
	return append([]string(nil), e.patterns...)
}

// Candidate reports whether path is a .webp file worth converting: not an
// in-progress temp file and not excluded.
func (e *Excluder) Candidate(path string) bool {
	return IsWebP(path) && !IsTempPath(path) && !e.Excluded(path)
}
