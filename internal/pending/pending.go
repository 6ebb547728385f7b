// Package pending implements the request-id → Entry correlation table that
// the Peer engine uses to settle outstanding requests exactly once, under
// races between an inbound response, a timer firing, and a close/swap.
package pending

import (
	"sync"
	"time"
)

// Base is the timeout unit the registration-time formula scales from
// (spec §3: duration = base · (15 + 0.1·|pending|)).
const Base = 2000 * time.Millisecond

// Entry is a single outstanding request's settle-once record.
type Entry struct {
	ID     uint32
	Method string

	resolve func(data []byte)
	reject  func(err error)

	timer *time.Timer

	mu      sync.Mutex
	settled bool
}

// settleOnce runs fn exactly once per Entry, guarding against a race
// between the response path, the timer path, and the close path.
func (e *Entry) settleOnce(fn func()) {
	e.mu.Lock()
	if e.settled {
		e.mu.Unlock()
		return
	}
	e.settled = true
	e.mu.Unlock()
	fn()
}

// Resolve settles the entry with a successful result. No-op if already
// settled.
func (e *Entry) Resolve(data []byte) {
	e.settleOnce(func() {
		e.timer.Stop()
		e.resolve(data)
	})
}

// Reject settles the entry with a failure. No-op if already settled.
func (e *Entry) Reject(err error) {
	e.settleOnce(func() {
		e.timer.Stop()
		e.reject(err)
	})
}

// Table is the request-id → Entry map. All operations are safe for
// concurrent use from the request-initiating path, the inbound-response
// dispatch path, the timer-firing path, and the close/swap path.
type Table struct {
	mu      sync.Mutex
	entries map[uint32]*Entry
}

// New creates an empty Table.
func New() *Table {
	return &Table{entries: make(map[uint32]*Entry)}
}

// Register inserts a new Entry keyed by id and arms its single-shot
// timeout timer. onTimeout is invoked if the timer fires before the entry
// is otherwise removed; it must itself call Table.Remove (or tolerate it
// already being gone) and Entry.Reject.
func (t *Table) Register(id uint32, method string, resolve func([]byte), reject func(error), onTimeout func()) *Entry {
	t.mu.Lock()
	n := len(t.entries)
	t.mu.Unlock()

	timeout := time.Duration(float64(Base) * (15 + 0.1*float64(n)))

	e := &Entry{ID: id, Method: method, resolve: resolve, reject: reject}
	e.timer = time.AfterFunc(timeout, onTimeout)

	t.mu.Lock()
	t.entries[id] = e
	t.mu.Unlock()

	return e
}

// Remove deletes and returns the entry for id, if present. The first
// caller to observe the entry wins; later callers get ok=false. This is
// the linearization point preventing double-completion (spec §4.2).
func (t *Table) Remove(id uint32) (*Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	return e, ok
}

// Lookup returns the entry for id without removing it, for diagnostics.
func (t *Table) Lookup(id uint32) (*Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	return e, ok
}

// Len reports the number of currently outstanding entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// DrainReject removes every entry from the table and rejects each with
// err exactly once. Used by Peer.close and Peer.setNewTransport (spec
// §4.3, §4.4): after this call the table is empty.
func (t *Table) DrainReject(err error) {
	t.mu.Lock()
	drained := t.entries
	t.entries = make(map[uint32]*Entry)
	t.mu.Unlock()

	for _, e := range drained {
		e.Reject(err)
	}
}
