package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates predictable operation ids: "<prefix>-1", "<prefix>-2", ...
//
// Inject Next wherever a func() string id source is accepted so journal rows
// and log attributes can be asserted exactly.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix defaults to "op".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "op"
	}
	return &SequentialIDs{prefix: prefix}
}

// Next returns the next id.
func (g *SequentialIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
