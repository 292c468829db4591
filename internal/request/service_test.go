package request_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"safeharbor/internal/access"
	"safeharbor/internal/client"
	clientstore "safeharbor/internal/client/store"
	"safeharbor/internal/identity"
	"safeharbor/internal/provider"
	providerstore "safeharbor/internal/provider/store"
	"safeharbor/internal/request"
	requeststore "safeharbor/internal/request/store"
	"safeharbor/internal/reservation"
	"safeharbor/internal/systemconfig"
	"safeharbor/pkg/domain"
	dErrors "safeharbor/pkg/domain-errors"
	"safeharbor/pkg/requestcontext"
)

const (
	systemOwner   = domain.Actor("system-owner")
	providerOwner = domain.Actor("provider-owner")
	strangerActor = domain.Actor("stranger")
)

type RequestServiceSuite struct {
	suite.Suite
	ctx         context.Context
	now         time.Time
	config      *systemconfig.Store
	providerSvc *provider.Service
	service     *request.Service

	clientHash domain.ClientHash
	providerID domain.ProviderID
	resourceID domain.ResourceID
}

func TestRequestServiceSuite(t *testing.T) {
	suite.Run(t, new(RequestServiceSuite))
}

func (s *RequestServiceSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.config = systemconfig.NewStore(systemconfig.Defaults())
	authorizer := access.New(systemOwner, access.NewInMemoryAssignments(), s.config,
		access.NewInMemoryRetention(), slog.Default())

	salt, err := identity.NewSalt()
	s.Require().NoError(err)
	clientSvc := client.New(clientstore.NewInMemory(), identity.NewHasher(salt), authorizer)

	registered, err := clientSvc.Register(s.ctx, systemOwner, []byte("jane doe 1990-01-01"), client.RegisterParams{})
	s.Require().NoError(err)
	s.clientHash = registered.Hash

	resources := providerstore.NewInMemory()
	s.providerSvc = provider.New(resources)

	p, err := s.providerSvc.Register(s.ctx, providerOwner, provider.RegisterParams{
		Name:          "Harbor House",
		Services:      []domain.ServiceType{domain.ServiceShelter},
		TotalCapacity: 10,
	})
	s.Require().NoError(err)
	s.providerID = p.ID

	r, err := s.providerSvc.AddResource(s.ctx, providerOwner, provider.AddResourceParams{
		ProviderID: p.ID,
		Type:       domain.ServiceShelter,
		Name:       "bed block A",
		TotalSlots: 3,
		Schedule:   provider.Schedule{Start: s.now, End: s.now.Add(24 * time.Hour)},
	})
	s.Require().NoError(err)
	s.resourceID = r.ID

	s.service = request.New(requeststore.NewInMemory(), reservation.New(resources),
		clientSvc, s.providerSvc, authorizer, s.config)
}

func (s *RequestServiceSuite) create(actor domain.Actor) (*request.ServiceRequest, error) {
	return s.service.Create(s.ctx, actor, request.CreateParams{
		ClientHash:    s.clientHash,
		ProviderID:    s.providerID,
		ResourceID:    s.resourceID,
		Type:          domain.ServiceShelter,
		Priority:      2,
		RequestedTime: s.now.Add(6 * time.Hour),
	})
}

func (s *RequestServiceSuite) availableSlots() int {
	r, err := s.providerSvc.GetResource(s.ctx, s.resourceID)
	s.Require().NoError(err)
	return r.Availability.AvailableSlots
}

func (s *RequestServiceSuite) TestCreate() {
	s.Run("reserves a slot and starts pending", func() {
		r, err := s.create(systemOwner)
		s.Require().NoError(err)
		s.Equal(domain.StatusPending, r.Status)
		s.Equal(s.now.Add(s.config.Get().MaxReservationTime), r.ExpiresAt)
		s.Equal(2, s.availableSlots())

		// The requested slot time is carried through the store, distinct
		// from the creation timestamp.
		got, err := s.service.Get(s.ctx, systemOwner, r.ID)
		s.Require().NoError(err)
		s.Equal(s.now.Add(6*time.Hour), got.RequestedTime)
		s.Equal(s.now, got.CreatedAt)
	})

	s.Run("unauthorized actor cannot create", func() {
		_, err := s.create(strangerActor)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal(2, s.availableSlots())
	})

	s.Run("priority out of range", func() {
		_, err := s.service.Create(s.ctx, systemOwner, request.CreateParams{
			ClientHash: s.clientHash,
			ProviderID: s.providerID,
			ResourceID: s.resourceID,
			Type:       domain.ServiceShelter,
			Priority:   5,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown provider is not found", func() {
		_, err := s.service.Create(s.ctx, systemOwner, request.CreateParams{
			ClientHash: s.clientHash,
			ProviderID: domain.ProviderID(42),
			ResourceID: s.resourceID,
			Type:       domain.ServiceShelter,
			Priority:   2,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("resource must belong to the named provider", func() {
		other, err := s.providerSvc.Register(s.ctx, providerOwner, provider.RegisterParams{
			Name:          "Second Harbor",
			Services:      []domain.ServiceType{domain.ServiceShelter},
			TotalCapacity: 5,
		})
		s.Require().NoError(err)

		_, err = s.service.Create(s.ctx, systemOwner, request.CreateParams{
			ClientHash: s.clientHash,
			ProviderID: other.ID,
			ResourceID: s.resourceID,
			Type:       domain.ServiceShelter,
			Priority:   2,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

// TestSlotExhaustionAndRecovery walks a resource with three slots through
// exhaustion, a failed fourth request, a cancellation, and a recovery.
func (s *RequestServiceSuite) TestSlotExhaustionAndRecovery() {
	first, err := s.create(systemOwner)
	s.Require().NoError(err)
	s.Equal(2, s.availableSlots())

	_, err = s.create(systemOwner)
	s.Require().NoError(err)
	s.Equal(1, s.availableSlots())

	_, err = s.create(systemOwner)
	s.Require().NoError(err)
	s.Equal(0, s.availableSlots())

	_, err = s.create(systemOwner)
	s.True(dErrors.HasCode(err, dErrors.CodeResourceUnavailable))

	_, err = s.service.UpdateStatus(s.ctx, systemOwner, first.ID, domain.StatusCancelled)
	s.Require().NoError(err)
	s.Equal(1, s.availableSlots())

	_, err = s.create(systemOwner)
	s.Require().NoError(err)
	s.Equal(0, s.availableSlots())
}

func (s *RequestServiceSuite) TestUpdateStatus() {
	r, err := s.create(systemOwner)
	s.Require().NoError(err)

	s.Run("pending cannot complete directly", func() {
		_, err := s.service.UpdateStatus(s.ctx, systemOwner, r.ID, domain.StatusCompleted)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("provider owner may activate", func() {
		updated, err := s.service.UpdateStatus(s.ctx, providerOwner, r.ID, domain.StatusActive)
		s.Require().NoError(err)
		s.Equal(domain.StatusActive, updated.Status)
	})

	s.Run("stranger is rejected", func() {
		_, err := s.service.UpdateStatus(s.ctx, strangerActor, r.ID, domain.StatusCompleted)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown status is rejected", func() {
		_, err := s.service.UpdateStatus(s.ctx, systemOwner, r.ID, domain.Status("paused"))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("completion does not release the slot", func() {
		before := s.availableSlots()
		_, err := s.service.UpdateStatus(s.ctx, systemOwner, r.ID, domain.StatusCompleted)
		s.Require().NoError(err)
		s.Equal(before, s.availableSlots())
	})

	s.Run("terminal requests never transition again", func() {
		_, err := s.service.UpdateStatus(s.ctx, systemOwner, r.ID, domain.StatusCancelled)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

// TestCancelReleasesOnce covers the double-cancel guard: the slot comes back
// exactly once no matter how many cancellations are attempted.
func (s *RequestServiceSuite) TestCancelReleasesOnce() {
	r, err := s.create(systemOwner)
	s.Require().NoError(err)
	s.Equal(2, s.availableSlots())

	_, err = s.service.UpdateStatus(s.ctx, systemOwner, r.ID, domain.StatusCancelled)
	s.Require().NoError(err)
	s.Equal(3, s.availableSlots())

	_, err = s.service.UpdateStatus(s.ctx, systemOwner, r.ID, domain.StatusCancelled)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	s.Equal(3, s.availableSlots())
}

func (s *RequestServiceSuite) TestListForClient() {
	_, err := s.create(systemOwner)
	s.Require().NoError(err)
	_, err = s.create(systemOwner)
	s.Require().NoError(err)

	s.Run("owner lists requests", func() {
		out, err := s.service.ListForClient(s.ctx, systemOwner, s.clientHash)
		s.Require().NoError(err)
		s.Len(out, 2)
	})

	s.Run("stranger is rejected", func() {
		_, err := s.service.ListForClient(s.ctx, strangerActor, s.clientHash)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
