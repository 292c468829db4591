package admin_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"safeharbor/internal/access"
	"safeharbor/internal/admin"
	"safeharbor/internal/identity"
	"safeharbor/internal/systemconfig"
	"safeharbor/pkg/domain"
	dErrors "safeharbor/pkg/domain-errors"
)

const (
	ownerActor  = domain.Actor("system-owner")
	workerActor = domain.Actor("case-worker")
)

type AdminServiceSuite struct {
	suite.Suite
	ctx         context.Context
	config      *systemconfig.Store
	hasher      *identity.Hasher
	assignments *access.InMemoryAssignments
	service     *admin.Service
}

func TestAdminServiceSuite(t *testing.T) {
	suite.Run(t, new(AdminServiceSuite))
}

func (s *AdminServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.config = systemconfig.NewStore(systemconfig.Defaults())
	s.assignments = access.NewInMemoryAssignments()

	salt, err := identity.NewSalt()
	s.Require().NoError(err)
	s.hasher = identity.NewHasher(salt)

	authorizer := access.New(ownerActor, s.assignments, s.config,
		access.NewInMemoryRetention(), slog.Default())
	s.service = admin.New(authorizer, s.config, s.hasher, s.assignments)
}

func (s *AdminServiceSuite) TestReplaceConfig() {
	s.Run("owner replaces the configuration", func() {
		cfg := systemconfig.Defaults()
		cfg.MaxReservationTime = 48 * time.Hour
		s.Require().NoError(s.service.ReplaceConfig(s.ctx, ownerActor, cfg))
		s.Equal(48*time.Hour, s.config.Get().MaxReservationTime)
	})

	s.Run("non-owner is rejected", func() {
		err := s.service.ReplaceConfig(s.ctx, workerActor, systemconfig.Defaults())
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("non-positive durations are rejected", func() {
		cfg := systemconfig.Defaults()
		cfg.PrivacyRetentionPeriod = 0
		err := s.service.ReplaceConfig(s.ctx, ownerActor, cfg)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *AdminServiceSuite) TestToggleEmergencyOverride() {
	s.Require().NoError(s.service.ToggleEmergencyOverride(s.ctx, ownerActor, true))
	s.True(s.config.Get().EmergencyOverrideEnabled)

	s.Require().NoError(s.service.ToggleEmergencyOverride(s.ctx, ownerActor, false))
	s.False(s.config.Get().EmergencyOverrideEnabled)

	err := s.service.ToggleEmergencyOverride(s.ctx, workerActor, true)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

// TestRotateSalt verifies that rotation breaks linkage: identical raw data
// derives different hashes before and after.
func (s *AdminServiceSuite) TestRotateSalt() {
	raw := []byte("jane doe 1990-01-01")
	before := s.hasher.Derive(raw)

	s.Require().NoError(s.service.RotateSalt(s.ctx, ownerActor))
	s.NotEqual(before, s.hasher.Derive(raw))

	err := s.service.RotateSalt(s.ctx, workerActor)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *AdminServiceSuite) TestWorkerAssignment() {
	var client domain.ClientHash
	client[0] = 0xAB

	s.Run("owner assigns and revokes", func() {
		s.Require().NoError(s.service.AssignWorker(s.ctx, ownerActor, workerActor, client))
		assigned, err := s.assignments.IsAssigned(s.ctx, workerActor, client)
		s.Require().NoError(err)
		s.True(assigned)

		s.Require().NoError(s.service.UnassignWorker(s.ctx, ownerActor, workerActor, client))
		assigned, err = s.assignments.IsAssigned(s.ctx, workerActor, client)
		s.Require().NoError(err)
		s.False(assigned)
	})

	s.Run("non-owner cannot grant access", func() {
		err := s.service.AssignWorker(s.ctx, workerActor, workerActor, client)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("empty worker identity is rejected", func() {
		err := s.service.AssignWorker(s.ctx, ownerActor, domain.Actor(""), client)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}
