package store

import (
	"context"
	"sync"

	"safeharbor/internal/caserecord"
	"safeharbor/pkg/domain"
	"safeharbor/pkg/platform/sentinel"
)

// InMemory keeps case records in a process-local map with a monotonic ID
// counter.
type InMemory struct {
	mu     sync.RWMutex
	cases  map[domain.CaseID]*caserecord.CaseRecord
	nextID uint64
}

func NewInMemory() *InMemory {
	return &InMemory{
		cases:  make(map[domain.CaseID]*caserecord.CaseRecord),
		nextID: 1,
	}
}

func (s *InMemory) Create(_ context.Context, c *caserecord.CaseRecord) (domain.CaseID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = domain.CaseID(s.nextID)
	s.nextID++
	s.cases[c.ID] = cloneCase(c)
	return c.ID, nil
}

func (s *InMemory) Find(_ context.Context, id domain.CaseID) (*caserecord.CaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneCase(c), nil
}

// Update replaces the stored record wholesale.
func (s *InMemory) Update(_ context.Context, c *caserecord.CaseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[c.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.cases[c.ID] = cloneCase(c)
	return nil
}

func (s *InMemory) ListByClient(_ context.Context, hash domain.ClientHash) ([]*caserecord.CaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*caserecord.CaseRecord
	for _, c := range s.cases {
		if c.ClientHash == hash {
			out = append(out, cloneCase(c))
		}
	}
	return out, nil
}

func cloneCase(c *caserecord.CaseRecord) *caserecord.CaseRecord {
	cp := *c
	cp.ServicePlan = append([]byte(nil), c.ServicePlan...)
	cp.Goals = append([]string(nil), c.Goals...)
	cp.ProgressNotes = append([]caserecord.ProgressNote(nil), c.ProgressNotes...)
	cp.History = append([]caserecord.HistoryEntry(nil), c.History...)
	return &cp
}
