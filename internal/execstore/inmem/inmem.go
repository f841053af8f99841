// Package inmem provides an in-memory implementation of execstore.Store for
// tests and the single-node deployment. Records are held in a map keyed by
// execution id with no durability across process restarts.
package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/infrabay/opscore/internal/execstore"
	"github.com/infrabay/opscore/internal/ids"
)

// Store implements execstore.Store in memory. All operations are
// thread-safe via sync.RWMutex. Records are defensively copied on read and
// write to prevent accidental mutation of stored data.
type Store struct {
	mu      sync.RWMutex
	records map[ids.ExecutionID]execstore.ToolExecution
}

// New constructs an empty Store.
func New() *Store {
	return &Store{records: make(map[ids.ExecutionID]execstore.ToolExecution)}
}

// Create implements execstore.Store.
func (s *Store) Create(_ context.Context, exec execstore.ToolExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if exec.CreatedAt.IsZero() {
		exec.CreatedAt = now
	}
	if exec.UpdatedAt.IsZero() {
		exec.UpdatedAt = now
	}
	s.records[exec.ID] = exec
	return nil
}

// Load implements execstore.Store.
func (s *Store) Load(_ context.Context, id ids.ExecutionID) (execstore.ToolExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exec, ok := s.records[id]
	if !ok {
		return execstore.ToolExecution{}, execstore.ErrNotFound
	}
	return exec, nil
}

// UpdateStatus implements execstore.Store.
func (s *Store) UpdateStatus(_ context.Context, id ids.ExecutionID, mutate func(*execstore.ToolExecution)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exec, ok := s.records[id]
	if !ok {
		return execstore.ErrNotFound
	}
	mutate(&exec)
	exec.UpdatedAt = time.Now()
	s.records[id] = exec
	return nil
}

// ListPendingByRun implements execstore.Store.
func (s *Store) ListPendingByRun(_ context.Context, runID ids.RunID) ([]execstore.ToolExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []execstore.ToolExecution
	for _, exec := range s.records {
		if exec.RunID != runID || exec.Status.Terminal() {
			continue
		}
		out = append(out, exec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Reset clears all stored records. Useful for test isolation; not part of
// execstore.Store.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[ids.ExecutionID]execstore.ToolExecution)
}
