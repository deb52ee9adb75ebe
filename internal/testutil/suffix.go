package testutil

import (
	"strconv"
	"sync"
)

// SuffixSequence generates predictable suffixes: prefix1, prefix2, ...
//
// Used in place of random suffixes so soft-deleted codes are stable in
// assertions.
type SuffixSequence struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSuffixSequence creates a generator. An empty prefix uses "deleted".
func NewSuffixSequence(prefix string) *SuffixSequence {
	if prefix == "" {
		prefix = "deleted"
	}
	return &SuffixSequence{prefix: prefix}
}

// Next returns the next suffix.
func (g *SuffixSequence) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return g.prefix + strconv.Itoa(g.n)
}
