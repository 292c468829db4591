package store

import (
	"context"
	"sync"

	"safeharbor/internal/provider"
	"safeharbor/pkg/domain"
	"safeharbor/pkg/platform/sentinel"
)

// InMemory holds providers and resources behind one mutex so the reservation
// check-then-decrement is a single critical section. It also owns the
// monotonic ID counters, starting at 1.
type InMemory struct {
	mu             sync.Mutex
	providers      map[domain.ProviderID]*provider.Provider
	resources      map[domain.ResourceID]*provider.Resource
	nextProviderID domain.ProviderID
	nextResourceID domain.ResourceID
}

func NewInMemory() *InMemory {
	return &InMemory{
		providers:      make(map[domain.ProviderID]*provider.Provider),
		resources:      make(map[domain.ResourceID]*provider.Resource),
		nextProviderID: 1,
		nextResourceID: 1,
	}
}

// CreateProvider assigns the next provider ID and stores the record.
func (s *InMemory) CreateProvider(_ context.Context, p *provider.Provider) (domain.ProviderID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.nextProviderID
	s.nextProviderID++

	cp := clone(p)
	s.providers[p.ID] = cp
	return p.ID, nil
}

func (s *InMemory) FindProvider(_ context.Context, id domain.ProviderID) (*provider.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(p), nil
}

// UpdateProvider replaces the stored record.
func (s *InMemory) UpdateProvider(_ context.Context, p *provider.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.providers[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.providers[p.ID] = clone(p)
	return nil
}

// CreateResource assigns the next resource ID and stores the record.
func (s *InMemory) CreateResource(_ context.Context, r *provider.Resource) (domain.ResourceID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.nextResourceID
	s.nextResourceID++

	cp := cloneResource(r)
	s.resources[r.ID] = cp
	return r.ID, nil
}

func (s *InMemory) FindResource(_ context.Context, id domain.ResourceID) (*provider.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resources[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneResource(r), nil
}

// SetSlots is the owner correction path: overwrite available and recompute
// reserved so the conservation invariant holds.
func (s *InMemory) SetSlots(_ context.Context, id domain.ResourceID, available int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resources[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if available > r.Availability.TotalSlots {
		return sentinel.ErrInvalidState
	}
	r.Availability.AvailableSlots = available
	r.Availability.ReservedSlots = r.Availability.TotalSlots - available
	return nil
}

// ReserveSlot atomically decrements available and increments reserved,
// failing when no slot is free. This is the single point where two concurrent
// reservations against the same resource are serialized.
func (s *InMemory) ReserveSlot(_ context.Context, id domain.ResourceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resources[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if r.Availability.AvailableSlots <= 0 {
		return sentinel.ErrSlotExhausted
	}
	r.Availability.AvailableSlots--
	r.Availability.ReservedSlots++
	return nil
}

// ReleaseSlot returns one slot. The request state machine guarantees at most
// one release per request; the store additionally refuses to release past the
// total.
func (s *InMemory) ReleaseSlot(_ context.Context, id domain.ResourceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resources[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if r.Availability.ReservedSlots <= 0 {
		return sentinel.ErrInvalidState
	}
	r.Availability.AvailableSlots++
	r.Availability.ReservedSlots--
	return nil
}

func clone(p *provider.Provider) *provider.Provider {
	cp := *p
	cp.Services = append([]domain.ServiceType(nil), p.Services...)
	return &cp
}

func cloneResource(r *provider.Resource) *provider.Resource {
	cp := *r
	cp.Requirements = append([]string(nil), r.Requirements...)
	cp.LocationDigest = append([]byte(nil), r.LocationDigest...)
	return &cp
}
