package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"legalflow/pkg/workflow"
)

// Store persists workflow states. Load returns ErrWorkflowNotFound for unknown ids.
type Store interface {
	Save(ctx context.Context, st *workflow.State) error
	Load(ctx context.Context, id string) (*workflow.State, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*workflow.State, error)
}

// MemoryStore keeps states in a map. It stores and returns copies.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*workflow.State
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*workflow.State)}
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, st *workflow.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.WorkflowID] = st.Clone()
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, id string) (*workflow.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}
	return st.Clone(), nil
}

// Delete implements Store. Deleting an unknown id returns ErrWorkflowNotFound.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[id]; !ok {
		return fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}
	delete(m.states, id)
	return nil
}

// List implements Store, oldest first.
func (m *MemoryStore) List(_ context.Context) ([]*workflow.State, error) {
	m.mu.RLock()
	out := make([]*workflow.State, 0, len(m.states))
	for _, st := range m.states {
		out = append(out, st.Clone())
	}
	m.mu.RUnlock()
	SortStates(out)
	return out, nil
}

// SortStates orders states by creation time, then id.
func SortStates(states []*workflow.State) {
	sort.Slice(states, func(i, j int) bool {
		if !states[i].CreatedAt.Equal(states[j].CreatedAt) {
			return states[i].CreatedAt.Before(states[j].CreatedAt)
		}
		return states[i].WorkflowID < states[j].WorkflowID
	})
}
