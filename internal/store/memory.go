package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"carbonroute/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu        sync.Mutex
	suppliers map[string]model.Supplier
	supOrder  []string
	actions   map[string]model.AgentAction
	history   []model.AgentAction
}

func NewMemory() *Memory {
	return &Memory{
		suppliers: map[string]model.Supplier{},
		actions:   map[string]model.AgentAction{},
	}
}

func (m *Memory) UpsertSuppliers(_ context.Context, suppliers []model.Supplier) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range suppliers {
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		if _, ok := m.suppliers[s.ID]; !ok {
			m.supOrder = append(m.supOrder, s.ID)
		}
		m.suppliers[s.ID] = s
		n++
	}
	return n, nil
}

func (m *Memory) ListSuppliers(_ context.Context) ([]model.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Supplier, 0, len(m.supOrder))
	for _, id := range m.supOrder {
		out = append(out, m.suppliers[id])
	}
	return out, nil
}

func (m *Memory) GetSupplier(_ context.Context, id string) (model.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.suppliers[id]
	if !ok {
		return model.Supplier{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) InsertAction(_ context.Context, a model.AgentAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[a.ID] = a
	return nil
}

func (m *Memory) UpdateAction(_ context.Context, a model.AgentAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.actions[a.ID]; !ok {
		return ErrNotFound
	}
	m.actions[a.ID] = a
	return nil
}

func (m *Memory) GetAction(_ context.Context, id string) (model.AgentAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id]
	if !ok {
		return model.AgentAction{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) ListPendingActions(_ context.Context) ([]model.AgentAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.AgentAction{}
	for _, a := range m.actions {
		if a.Status == model.StatusPending || a.Status == model.StatusApproved {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) AppendHistory(_ context.Context, a model.AgentAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.actions, a.ID)
	m.history = append(m.history, a)
	return nil
}

func (m *Memory) ListHistory(_ context.Context, limit int) ([]model.AgentAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.history) {
		limit = len(m.history)
	}
	// newest first
	out := make([]model.AgentAction, 0, limit)
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.history[i])
	}
	return out, nil
}
