package peer

import "sync"

// Bag is the application-owned key/value store attached to a Peer. The
// Peer never inspects its contents; only the container's identity is
// fixed for the Peer's lifetime (spec §3) — attributes inside it are
// freely mutable.
type Bag struct {
	mu sync.RWMutex
	m  map[string]any
}

func newBag() *Bag {
	return &Bag{m: make(map[string]any)}
}

// Get returns the value stored under key, if any.
func (b *Bag) Get(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.m[key]
	return v, ok
}

// Set stores val under key, overwriting any previous value.
func (b *Bag) Set(key string, val any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[key] = val
}

// Delete removes key, if present.
func (b *Bag) Delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.m, key)
}
