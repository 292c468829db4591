package access

import (
	"context"
	"sync"
	"time"

	"safeharbor/pkg/domain"
)

// InMemoryAssignments is the default assignment store.
type InMemoryAssignments struct {
	mu      sync.RWMutex
	workers map[domain.Actor]map[domain.ClientHash]struct{}
}

func NewInMemoryAssignments() *InMemoryAssignments {
	return &InMemoryAssignments{workers: make(map[domain.Actor]map[domain.ClientHash]struct{})}
}

func (s *InMemoryAssignments) Assign(_ context.Context, worker domain.Actor, client domain.ClientHash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clients, ok := s.workers[worker]
	if !ok {
		clients = make(map[domain.ClientHash]struct{})
		s.workers[worker] = clients
	}
	clients[client] = struct{}{}
	return nil
}

func (s *InMemoryAssignments) Unassign(_ context.Context, worker domain.Actor, client domain.ClientHash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workers[worker], client)
	return nil
}

func (s *InMemoryAssignments) IsAssigned(_ context.Context, worker domain.Actor, client domain.ClientHash) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.workers[worker][client]
	return ok, nil
}

// InMemoryRetention tracks last-access times in process memory.
type InMemoryRetention struct {
	mu   sync.RWMutex
	last map[domain.ClientHash]time.Time
}

func NewInMemoryRetention() *InMemoryRetention {
	return &InMemoryRetention{last: make(map[domain.ClientHash]time.Time)}
}

func (r *InMemoryRetention) Touch(_ context.Context, client domain.ClientHash, now time.Time, _ time.Duration) error {
	r.mu.Lock()
	r.last[client] = now
	r.mu.Unlock()
	return nil
}

func (r *InMemoryRetention) Fresh(_ context.Context, client domain.ClientHash, now time.Time, window time.Duration) (bool, error) {
	r.mu.RLock()
	last, ok := r.last[client]
	r.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return now.Sub(last) <= window, nil
}
