package provider_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"safeharbor/internal/provider"
	"safeharbor/internal/provider/store"
	"safeharbor/pkg/domain"
	dErrors "safeharbor/pkg/domain-errors"
	"safeharbor/pkg/requestcontext"
)

const (
	providerOwner = domain.Actor("provider-owner")
	otherActor    = domain.Actor("someone-else")
)

type ProviderServiceSuite struct {
	suite.Suite
	ctx     context.Context
	service *provider.Service
	now     time.Time
}

func TestProviderServiceSuite(t *testing.T) {
	suite.Run(t, new(ProviderServiceSuite))
}

func (s *ProviderServiceSuite) SetupTest() {
	s.service = provider.New(store.NewInMemory())
	s.now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ProviderServiceSuite) register() *provider.Provider {
	p, err := s.service.Register(s.ctx, providerOwner, provider.RegisterParams{
		Name:          "Harbor House",
		Contact:       "ops@harborhouse.example",
		Services:      []domain.ServiceType{domain.ServiceShelter},
		TotalCapacity: 5,
	})
	s.Require().NoError(err)
	return p
}

func (s *ProviderServiceSuite) TestRegister() {
	s.Run("initializes capacity, reputation and ownership", func() {
		p := s.register()
		s.Equal(domain.ProviderID(1), p.ID)
		s.Equal(5, p.Capacity.Total)
		s.Equal(5, p.Capacity.Available)
		s.Equal(0, p.Capacity.Utilization)
		s.Equal(50, p.Reputation)
		s.Equal(domain.StatusActive, p.Status)
		s.Equal(providerOwner, p.Owner)
	})

	s.Run("rejects zero capacity", func() {
		_, err := s.service.Register(s.ctx, providerOwner, provider.RegisterParams{
			Name:          "Harbor House",
			Services:      []domain.ServiceType{domain.ServiceShelter},
			TotalCapacity: 0,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects unknown service type", func() {
		_, err := s.service.Register(s.ctx, providerOwner, provider.RegisterParams{
			Name:          "Harbor House",
			Services:      []domain.ServiceType{"astrology"},
			TotalCapacity: 5,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *ProviderServiceSuite) TestUpdateCapacity() {
	p := s.register()

	s.Run("owner updates capacity", func() {
		updated, err := s.service.UpdateCapacity(s.ctx, providerOwner, p.ID, 8)
		s.Require().NoError(err)
		s.Equal(8, updated.Capacity.Total)
		s.Equal(8, updated.Capacity.Available)
	})

	s.Run("non-owner is rejected", func() {
		_, err := s.service.UpdateCapacity(s.ctx, otherActor, p.ID, 8)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("zero capacity is rejected", func() {
		_, err := s.service.UpdateCapacity(s.ctx, providerOwner, p.ID, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown provider is not found", func() {
		_, err := s.service.UpdateCapacity(s.ctx, providerOwner, domain.ProviderID(99), 8)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ProviderServiceSuite) TestAddResource() {
	p := s.register()
	window := provider.Schedule{
		Start: s.now,
		End:   s.now.Add(12 * time.Hour),
	}

	s.Run("initializes slots fully available", func() {
		r, err := s.service.AddResource(s.ctx, providerOwner, provider.AddResourceParams{
			ProviderID: p.ID,
			Type:       domain.ServiceShelter,
			Name:       "bed block A",
			TotalSlots: 3,
			Schedule:   window,
		})
		s.Require().NoError(err)
		s.Equal(3, r.Availability.TotalSlots)
		s.Equal(3, r.Availability.AvailableSlots)
		s.Equal(0, r.Availability.ReservedSlots)
	})

	s.Run("zero slots fail", func() {
		_, err := s.service.AddResource(s.ctx, providerOwner, provider.AddResourceParams{
			ProviderID: p.ID,
			Type:       domain.ServiceShelter,
			TotalSlots: 0,
			Schedule:   window,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("inverted schedule fails", func() {
		_, err := s.service.AddResource(s.ctx, providerOwner, provider.AddResourceParams{
			ProviderID: p.ID,
			Type:       domain.ServiceShelter,
			TotalSlots: 3,
			Schedule:   provider.Schedule{Start: window.End, End: window.Start},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("non-owner cannot add resources", func() {
		_, err := s.service.AddResource(s.ctx, otherActor, provider.AddResourceParams{
			ProviderID: p.ID,
			Type:       domain.ServiceShelter,
			TotalSlots: 3,
			Schedule:   window,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ProviderServiceSuite) TestSetAvailableSlots() {
	p := s.register()
	r, err := s.service.AddResource(s.ctx, providerOwner, provider.AddResourceParams{
		ProviderID: p.ID,
		Type:       domain.ServiceShelter,
		Name:       "bed block A",
		TotalSlots: 4,
		Schedule:   provider.Schedule{Start: s.now, End: s.now.Add(time.Hour)},
	})
	s.Require().NoError(err)

	s.Run("owner corrects slot counts", func() {
		s.Require().NoError(s.service.SetAvailableSlots(s.ctx, providerOwner, r.ID, 1))
		got, err := s.service.GetResource(s.ctx, r.ID)
		s.Require().NoError(err)
		s.Equal(1, got.Availability.AvailableSlots)
		s.Equal(3, got.Availability.ReservedSlots)
	})

	s.Run("above total is rejected", func() {
		err := s.service.SetAvailableSlots(s.ctx, providerOwner, r.ID, 5)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("non-owner is rejected", func() {
		err := s.service.SetAvailableSlots(s.ctx, otherActor, r.ID, 2)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
