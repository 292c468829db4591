package store

import (
	"context"
	"sync"
	"time"

	"safeharbor/internal/client"
	"safeharbor/pkg/domain"
	"safeharbor/pkg/platform/sentinel"
)

// InMemory keeps client records in a process-local map.
type InMemory struct {
	mu      sync.RWMutex
	clients map[domain.ClientHash]*client.Client
}

func NewInMemory() *InMemory {
	return &InMemory{clients: make(map[domain.ClientHash]*client.Client)}
}

// Create registers a client, rejecting duplicate hashes.
func (s *InMemory) Create(_ context.Context, c *client.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.clients[c.Hash]; exists {
		return sentinel.ErrConflict
	}
	cp := *c
	s.clients[c.Hash] = &cp
	return nil
}

func (s *InMemory) FindByHash(_ context.Context, hash domain.ClientHash) (*client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[hash]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// TouchLastAccess refreshes the record's retention anchor.
func (s *InMemory) TouchLastAccess(_ context.Context, hash domain.ClientHash, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[hash]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.LastAccess = now
	return nil
}

// LastAccess reads the stored retention anchor.
func (s *InMemory) LastAccess(_ context.Context, hash domain.ClientHash) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[hash]
	if !ok {
		return time.Time{}, sentinel.ErrNotFound
	}
	return c.LastAccess, nil
}
