//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"safeharbor/internal/provider"
	"safeharbor/internal/provider/store"
	"safeharbor/pkg/domain"
	"safeharbor/pkg/platform/sentinel"
	"safeharbor/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	ctx   context.Context
	pg    *containers.PostgresContainer
	store *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T(), store.Schema)
	s.store = store.NewPostgres(s.pg.DB)
}

func (s *PostgresStoreSuite) newResource(totalSlots int) domain.ResourceID {
	now := time.Now().UTC()
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
		Schedule: provider.Schedule{
			Start: now,
			End:   now.Add(24 * time.Hour),
		},
		Status:    domain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
	s.Require().NoError(err)
	return id
}

// TestConcurrentReservationExclusivity verifies the conditional UPDATE: with
// one slot left, exactly one of many concurrent reservations wins at the
// database level.
func (s *PostgresStoreSuite) TestConcurrentReservationExclusivity() {
	id := s.newResource(1)
	const goroutines = 20

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

	r, err := s.store.FindResource(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(0, r.Availability.AvailableSlots)
	s.Equal(1, r.Availability.ReservedSlots)
}

// TestSlotConservationUnderLoad hammers reserve/release and checks the
// counters, which the table's CHECK constraint also guards.
func (s *PostgresStoreSuite) TestSlotConservationUnderLoad() {
	const total = 5
	id := s.newResource(total)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if err := s.store.ReserveSlot(s.ctx, id); err == nil {
					_ = s.store.ReleaseSlot(s.ctx, id)
				}
			}
		}()
	}
	wg.Wait()

	r, err := s.store.FindResource(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(total, r.Availability.AvailableSlots+r.Availability.ReservedSlots)
}

func (s *PostgresStoreSuite) TestReleasePastTotalRejected() {
	id := s.newResource(1)
	err := s.store.ReleaseSlot(s.ctx, id)
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	id := s.newResource(3)
	r, err := s.store.FindResource(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(domain.ServiceShelter, r.Type)
	s.Equal(3, r.Availability.TotalSlots)

	p, err := s.store.FindProvider(s.ctx, r.ProviderID)
	s.Require().NoError(err)
	s.Equal("Harbor House", p.Name)
	s.Equal(domain.Actor("provider-owner"), p.Owner)
}
