package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/okian/icexg/internal/domain/model"
	"github.com/okian/icexg/internal/domain/types"
	"github.com/okian/icexg/pkg/metrics"
)

// MemoryStore keeps tables in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	cfg    storeConfig
	tables map[string]*memoryTable
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	cfg := defaultStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &MemoryStore{cfg: cfg, tables: make(map[string]*memoryTable)}
}

func (s *MemoryStore) Table(gameID string) Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[gameID]
	if !ok {
		t = &memoryTable{
			gameID: gameID,
			rows:   make([]model.ScoredRow, 0, s.cfg.rowCapacity),
			index:  make(map[string]struct{}, s.cfg.rowCapacity),
		}
		s.tables[gameID] = t
	}
	return t
}

func (s *MemoryStore) Has(ctx context.Context, gameID string) (bool, error) {
	s.mu.Lock()
	t, ok := s.tables[gameID]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	n, err := t.Len(ctx)
	return n > 0, err
}

func (s *MemoryStore) Drop(_ context.Context, gameID string) error {
	s.mu.Lock()
	delete(s.tables, gameID)
	s.mu.Unlock()
	metrics.UpdateTableRows(gameID, 0)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

type memoryTable struct {
	mu     sync.RWMutex
	gameID string
	rows   []model.ScoredRow
	index  map[string]struct{}
	stamp  string
}

func (t *memoryTable) Merge(_ context.Context, rows []model.ScoredRow) (int, error) {
	for _, r := range rows {
		if r.EventID == "" {
			return 0, ErrEmptyEventID
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	added := 0
	for _, r := range rows {
		if _, ok := t.index[r.EventID]; ok {
			continue
		}
		t.index[r.EventID] = struct{}{}
		t.rows = append(t.rows, r)
		added++
	}
	metrics.UpdateTableRows(t.gameID, len(t.rows))
	return added, nil
}

func (t *memoryTable) Rows(_ context.Context) ([]model.ScoredRow, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.rows), nil
}

func (t *memoryTable) Summary(_ context.Context) (types.Summary, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return types.Summarize(t.gameID, t.rows), nil
}

func (t *memoryTable) Len(_ context.Context) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows), nil
}

func (t *memoryTable) Model(_ context.Context) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stamp, nil
}

func (t *memoryTable) SetModel(_ context.Context, tag string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stamp = tag
	return nil
}

func (t *memoryTable) Reset(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = t.rows[:0]
	clear(t.index)
	t.stamp = ""
	metrics.UpdateTableRows(t.gameID, 0)
	return nil
}
