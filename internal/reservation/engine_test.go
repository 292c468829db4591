package reservation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"safeharbor/internal/provider"
	"safeharbor/internal/provider/store"
	"safeharbor/internal/reservation"
	"safeharbor/pkg/domain"
	dErrors "safeharbor/pkg/domain-errors"
)

type EngineSuite struct {
	suite.Suite
	ctx    context.Context
	store  *store.InMemory
	engine *reservation.Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.engine = reservation.New(s.store)
}

func (s *EngineSuite) newResource(totalSlots int) domain.ResourceID {
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

func (s *EngineSuite) TestReserve() {
	id := s.newResource(1)

	s.Run("succeeds while slots remain", func() {
		s.Require().NoError(s.engine.Reserve(s.ctx, id))
	})

	s.Run("reports resource unavailable when exhausted", func() {
		err := s.engine.Reserve(s.ctx, id)
		s.True(dErrors.HasCode(err, dErrors.CodeResourceUnavailable))
	})

	s.Run("reports not found for unknown resources", func() {
		err := s.engine.Reserve(s.ctx, domain.ResourceID(999))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *EngineSuite) TestRelease() {
	id := s.newResource(1)
	s.Require().NoError(s.engine.Reserve(s.ctx, id))

	s.Run("returns the slot", func() {
		s.Require().NoError(s.engine.Release(s.ctx, id))
		s.Require().NoError(s.engine.Reserve(s.ctx, id))
	})

	s.Run("overflowing release is an internal fault", func() {
		s.Require().NoError(s.engine.Release(s.ctx, id))
		err := s.engine.Release(s.ctx, id)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}
