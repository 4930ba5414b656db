package naming

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// CollisionResolver hands out output paths so that no two inputs in one batch
// write the same file. "cat.webp" and "cat.WEBP" in one folder both want
// cat.gif; the second one gets "cat-dup1.gif". All methods are goroutine-safe.
type CollisionResolver struct {
	mu     sync.Mutex
	owners map[string]string // output path -> source that claimed it
	next   map[string]int    // requested output -> next dup counter to try
}

// NewCollisionResolver creates a ready-to-use resolver.
func NewCollisionResolver() *CollisionResolver {
	return &CollisionResolver{
		owners: make(map[string]string),
		next:   make(map[string]int),
	}
}

// Resolve returns the output path source should use. A path already owned by
// source is returned unchanged, so resolving twice is stable.
func (cr *CollisionResolver) Resolve(source, requested string) string {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if cr.claim(source, requested) {
		return requested
	}

	dir := filepath.Dir(requested)
	ext := filepath.Ext(requested)
	stem := strings.TrimSuffix(filepath.Base(requested), ext)

	n := max(cr.next[requested], 1)
	for ; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s-dup%d%s", stem, n, ext))
		if cr.claim(source, candidate) {
			cr.next[requested] = n + 1
			return candidate
		}
	}
}

// Owner returns the source that claimed output, if any.
func (cr *CollisionResolver) Owner(output string) (string, bool) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	src, ok := cr.owners[output]
	return src, ok
}

func (cr *CollisionResolver) claim(source, output string) bool {
	owner, taken := cr.owners[output]
	if taken && owner != source {
		return false
	}
	cr.owners[output] = source
	return true
}
