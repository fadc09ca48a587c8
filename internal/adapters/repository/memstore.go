package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/plusolver/internal/domain/model"
	"github.com/okian/plusolver/pkg/logger"
	"github.com/okian/plusolver/pkg/metrics"
)

// MemoryStore is a process-local Cache. It forgets everything on exit.
type MemoryStore struct {
	mu          sync.RWMutex
	byID        map[model.ID]model.CatalogItem
	populatedAt time.Time
	log         logger.Logger
}

var _ Cache = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory cache.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		byID: make(map[model.ID]model.CatalogItem),
		log:  o.log,
	}
}

// IsPopulated implements Cache.
func (m *MemoryStore) IsPopulated(_ context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.populatedAt.IsZero(), nil
}

// Populate implements Cache.
func (m *MemoryStore) Populate(ctx context.Context, items []model.CatalogItem) (int, error) {
	m.mu.Lock()
	inserted := 0
	for _, it := range items {
		if it.CatalogID.IsZero() {
			continue
		}
		if _, exists := m.byID[it.CatalogID]; exists {
			continue
		}
		m.byID[it.CatalogID] = it
		inserted++
	}
	if m.populatedAt.IsZero() {
		m.populatedAt = time.Now()
	}
	total := len(m.byID)
	m.mu.Unlock()

	metrics.RecordCachePopulated()
	metrics.UpdateCacheItems(total)
	m.log.Info(ctx, "answer cache populated",
		logger.Int("received", len(items)), logger.Int("inserted", inserted))
	return inserted, nil
}

// Lookup implements Cache.
func (m *MemoryStore) Lookup(_ context.Context, catalogID model.ID) (string, bool, error) {
	m.mu.RLock()
	it, ok := m.byID[catalogID]
	m.mu.RUnlock()
	metrics.RecordCacheLookup(ok)
	return it.Answer, ok, nil
}

// Get implements Cache.
func (m *MemoryStore) Get(_ context.Context, catalogID model.ID) (model.CatalogItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.byID[catalogID]
	if !ok {
		return model.CatalogItem{}, ErrNotFound
	}
	return it, nil
}

// List implements Cache. Order matches SQLStore: shorter ids first, then lexical.
func (m *MemoryStore) List(_ context.Context, limit int) ([]model.CatalogItem, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	m.mu.RLock()
	out := make([]model.CatalogItem, 0, len(m.byID))
	for _, it := range m.byID {
		out = append(out, it)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].CatalogID, out[j].CatalogID
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count implements Cache.
func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID), nil
}

// Close implements Cache.
func (m *MemoryStore) Close() error { return nil }
