// Package inmem provides an in-memory implementation of memory.Store for
// tests and single-node deployments, following the same map-plus-mutex shape
// as execstore/inmem and convstore/inmem. History does not survive a process
// restart.
package inmem

import (
	"context"
	"sync"

	"github.com/infrabay/opscore/internal/agentloop/memory"
)

type key struct {
	agentID string
	runID   string
}

// Store implements memory.Store in memory, thread-safe via sync.RWMutex.
type Store struct {
	mu   sync.RWMutex
	runs map[key][]memory.Event
}

// New constructs an empty Store.
func New() *Store {
	return &Store{runs: make(map[key][]memory.Event)}
}

// LoadRun implements memory.Store.
func (s *Store) LoadRun(_ context.Context, agentID, runID string) (memory.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.runs[key{agentID, runID}]
	out := make([]memory.Event, len(events))
	copy(out, events)
	return memory.Snapshot{AgentID: agentID, RunID: runID, Events: out}, nil
}

// AppendEvents implements memory.Store.
func (s *Store) AppendEvents(_ context.Context, agentID, runID string, events ...memory.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{agentID, runID}
	s.runs[k] = append(s.runs[k], events...)
	return nil
}
