// Package ledger tracks which plays of a game have already been processed.
package ledger

import (
	"sync"
	"sync/atomic"

	"github.com/okian/icexg/internal/domain/model"
)

// Ledger records committed event keys so repeated polls of a growing play
// log only surface plays that were never processed.
type Ledger interface {
	// IsNew reports whether key has not been committed.
	IsNew(key string) bool

	// MarkSeen commits a single key.
	MarkSeen(key string)

	// FilterNew returns the events whose keys are not committed, in input
	// order. It does not mark anything.
	FilterNew(events []model.RawPlayEvent) []model.RawPlayEvent

	// Commit marks every key as seen.
	Commit(keys []string)

	// Reset forgets every key.
	Reset()

	Size() int64
}

// inMemoryLedger keeps keys in a map. Keys are never evicted: dropping one
// would let an already scored play be emitted again.
type inMemoryLedger struct {
	mu       sync.RWMutex
	seen     map[string]struct{}
	capacity int
	size     atomic.Int64
}

// New creates an empty in-memory ledger.
func New(opts ...Option) Ledger {
	l := &inMemoryLedger{capacity: 512}
	for _, opt := range opts {
		opt(l)
	}
	l.seen = make(map[string]struct{}, l.capacity)
	return l
}

func (l *inMemoryLedger) IsNew(key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.seen[key]
	return !ok
}

func (l *inMemoryLedger) MarkSeen(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.add(key)
}

func (l *inMemoryLedger) FilterNew(events []model.RawPlayEvent) []model.RawPlayEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.RawPlayEvent, 0, len(events))
	for _, e := range events {
		if _, ok := l.seen[e.Key()]; ok {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (l *inMemoryLedger) Commit(keys []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range keys {
		l.add(k)
	}
}

// add must be called with mu held.
func (l *inMemoryLedger) add(key string) {
	if _, ok := l.seen[key]; ok {
		return
	}
	l.seen[key] = struct{}{}
	l.size.Add(1)
}

func (l *inMemoryLedger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = make(map[string]struct{}, l.capacity)
	l.size.Store(0)
}

func (l *inMemoryLedger) Size() int64 {
	return l.size.Load()
}

// Keys returns the keys of events for committing.
func Keys(events []model.RawPlayEvent) []string {
	keys := make([]string, len(events))
	for i, e := range events {
		keys[i] = e.Key()
	}
	return keys
}
