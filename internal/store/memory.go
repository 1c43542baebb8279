package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvdiff/internal/core"
)

// Memory keeps comparisons in a map. Contents are lost on exit.
type Memory struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*core.Comparison
}

func NewMemory() *Memory {
	return &Memory{items: make(map[uuid.UUID]*core.Comparison)}
}

func (m *Memory) Save(_ context.Context, c *core.Comparison) error {
	m.mu.Lock()
	m.items[c.ID] = c
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, id uuid.UUID) (*core.Comparison, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.items[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return c, nil
}

func (m *Memory) List(_ context.Context, limit int) ([]core.ComparisonInfo, error) {
	m.mu.RLock()
	infos := make([]core.ComparisonInfo, 0, len(m.items))
	for _, c := range m.items {
		infos = append(infos, c.Info())
	}
	m.mu.RUnlock()

	slices.SortFunc(infos, newestFirst)
	if limit > 0 && len(infos) > limit {
		infos = infos[:limit]
	}
	return infos, nil
}

func (m *Memory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *Memory) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, c := range m.items {
		if c.CreatedAt.Before(cutoff) {
			delete(m.items, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Close() error { return nil }

// newestFirst orders by creation time descending, ties broken by ID.
func newestFirst(a, b core.ComparisonInfo) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}
