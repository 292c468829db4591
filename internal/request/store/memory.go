package store

import (
	"context"
	"sync"
	"time"

	"safeharbor/internal/request"
	"safeharbor/pkg/domain"
	"safeharbor/pkg/platform/sentinel"
)

// InMemory keeps service requests in a process-local map with a monotonic ID
// counter.
type InMemory struct {
	mu       sync.RWMutex
	requests map[domain.RequestID]*request.ServiceRequest
	nextID   uint64
}

func NewInMemory() *InMemory {
	return &InMemory{
		requests: make(map[domain.RequestID]*request.ServiceRequest),
		nextID:   1,
	}
}

func (s *InMemory) Create(_ context.Context, r *request.ServiceRequest) (domain.RequestID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = domain.RequestID(s.nextID)
	s.nextID++
	s.requests[r.ID] = cloneRequest(r)
	return r.ID, nil
}

func (s *InMemory) Find(_ context.Context, id domain.RequestID) (*request.ServiceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRequest(r), nil
}

// UpdateStatus moves a request to a new status only when it still holds the
// expected one, so two concurrent transitions cannot both win.
func (s *InMemory) UpdateStatus(_ context.Context, id domain.RequestID, from, to domain.Status, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if r.Status != from {
		return sentinel.ErrInvalidState
	}
	r.Status = to
	r.UpdatedAt = now
	return nil
}

// ListByClient returns every request for a client hash, newest first not
// guaranteed; callers sort if they care.
func (s *InMemory) ListByClient(_ context.Context, hash domain.ClientHash) ([]*request.ServiceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*request.ServiceRequest
	for _, r := range s.requests {
		if r.ClientHash == hash {
			out = append(out, cloneRequest(r))
		}
	}
	return out, nil
}

func cloneRequest(r *request.ServiceRequest) *request.ServiceRequest {
	cp := *r
	cp.SpecialRequirements = append([]string(nil), r.SpecialRequirements...)
	cp.Outcome = append([]byte(nil), r.Outcome...)
	return &cp
}
