package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"safeharbor/internal/provider"
	"safeharbor/pkg/domain"
	"safeharbor/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *MemoryStoreSuite) newResource(totalSlots int) domain.ResourceID {
	now := time.Now()
	providerID, err := s.store.CreateProvider(s.ctx, &provider.Provider{
		Name:      "Harbor House",
		Status:    domain.StatusActive,
		Owner:     "provider-owner",
		CreatedAt: now,
		UpdatedAt: now,
	})
	s.Require().NoError(err)

	id, err := s.store.CreateResource(s.ctx, &provider.Resource{
		ProviderID: providerID,
		Type:       domain.ServiceShelter,
		Name:       "bed block",
		Availability: provider.Availability{
			TotalSlots:     totalSlots,
			AvailableSlots: totalSlots,
		},
		Status:    domain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
	s.Require().NoError(err)
	return id
}

func (s *MemoryStoreSuite) slotState(id domain.ResourceID) provider.Availability {
	r, err := s.store.FindResource(s.ctx, id)
	s.Require().NoError(err)
	return r.Availability
}

// TestMonotonicIDs verifies the counters start at 1 and increment per create.
func (s *MemoryStoreSuite) TestMonotonicIDs() {
	first := s.newResource(1)
	second := s.newResource(1)
	s.Equal(domain.ResourceID(1), first)
	s.Equal(domain.ResourceID(2), second)
}

func (s *MemoryStoreSuite) TestReserveAndRelease() {
	id := s.newResource(2)

	s.Run("reserve decrements available and increments reserved", func() {
		s.Require().NoError(s.store.ReserveSlot(s.ctx, id))
		av := s.slotState(id)
		s.Equal(1, av.AvailableSlots)
		s.Equal(1, av.ReservedSlots)
	})

	s.Run("reserve fails when exhausted", func() {
		s.Require().NoError(s.store.ReserveSlot(s.ctx, id))
		err := s.store.ReserveSlot(s.ctx, id)
		s.Require().ErrorIs(err, sentinel.ErrSlotExhausted)
	})

	s.Run("release returns a slot", func() {
		s.Require().NoError(s.store.ReleaseSlot(s.ctx, id))
		av := s.slotState(id)
		s.Equal(1, av.AvailableSlots)
		s.Equal(1, av.ReservedSlots)
	})

	s.Run("release past total is rejected", func() {
		s.Require().NoError(s.store.ReleaseSlot(s.ctx, id))
		err := s.store.ReleaseSlot(s.ctx, id)
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("unknown resource is not found", func() {
		s.Require().ErrorIs(s.store.ReserveSlot(s.ctx, domain.ResourceID(999)), sentinel.ErrNotFound)
	})
}

// TestReservationExclusivity verifies that with a single slot left, exactly
// one of many concurrent reservations wins.
func (s *MemoryStoreSuite) TestReservationExclusivity() {
	id := s.newResource(1)
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var exhaustedCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.ReserveSlot(s.ctx, id)
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrSlotExhausted) {
				exhaustedCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one reservation should win")
	s.Equal(int32(goroutines-1), exhaustedCount.Load())

	av := s.slotState(id)
	s.Equal(0, av.AvailableSlots)
	s.Equal(1, av.ReservedSlots)
}

// TestSlotConservation hammers reserve/release from many goroutines and
// verifies available + reserved == total at the end.
func (s *MemoryStoreSuite) TestSlotConservation() {
	const total = 10
	id := s.newResource(total)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if err := s.store.ReserveSlot(s.ctx, id); err == nil {
					_ = s.store.ReleaseSlot(s.ctx, id)
				}
			}
		}()
	}
	wg.Wait()

	av := s.slotState(id)
	s.Equal(total, av.AvailableSlots+av.ReservedSlots)
}

func (s *MemoryStoreSuite) TestSetSlots() {
	id := s.newResource(5)
	s.Require().NoError(s.store.ReserveSlot(s.ctx, id))

	s.Run("overwrites available and recomputes reserved", func() {
		s.Require().NoError(s.store.SetSlots(s.ctx, id, 2))
		av := s.slotState(id)
		s.Equal(2, av.AvailableSlots)
		s.Equal(3, av.ReservedSlots)
		s.Equal(5, av.TotalSlots)
	})

	s.Run("rejects available above total", func() {
		s.Require().ErrorIs(s.store.SetSlots(s.ctx, id, 6), sentinel.ErrInvalidState)
	})
}
