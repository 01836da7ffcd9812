package proxy

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vvennela/ftl/internal/credentials"
)

// swapTable holds the current placeholder-to-real substitution rules as an
// atomically-swappable *strings.Replacer. Credentials are re-shadowed
// between agent turns, so the proxy must be able to pick up a new table
// without a restart.
type swapTable struct {
	mu       sync.Mutex
	replacer atomic.Pointer[strings.Replacer]
}

func newSwapTable() *swapTable {
	t := &swapTable{}
	t.replacer.Store(strings.NewReplacer())
	return t
}

// Set rebuilds the replacer from shadow.SwapTable. The table is an ordered
// slice rather than a map so that overlapping placeholder prefixes always
// substitute in the same, predictable order.
func (t *swapTable) Set(shadow credentials.ShadowMap) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pairs := make([]string, 0, len(shadow.SwapTable)*2)
	for _, entry := range shadow.SwapTable {
		pairs = append(pairs, entry.Placeholder, entry.Real)
	}
	t.replacer.Store(strings.NewReplacer(pairs...))
}

func (t *swapTable) Replace(s string) string {
	return t.replacer.Load().Replace(s)
}
