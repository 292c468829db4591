package caserecord_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"safeharbor/internal/access"
	"safeharbor/internal/caserecord"
	casestore "safeharbor/internal/caserecord/store"
	"safeharbor/internal/client"
	clientstore "safeharbor/internal/client/store"
	"safeharbor/internal/identity"
	"safeharbor/internal/systemconfig"
	"safeharbor/pkg/domain"
	dErrors "safeharbor/pkg/domain-errors"
	"safeharbor/pkg/requestcontext"
)

const (
	systemOwner = domain.Actor("system-owner")
	caseWorker  = domain.Actor("case-worker")
	stranger    = domain.Actor("stranger")
)

type CaseServiceSuite struct {
	suite.Suite
	ctx         context.Context
	now         time.Time
	config      *systemconfig.Store
	assignments *access.InMemoryAssignments
	service     *caserecord.Service

	clientHash domain.ClientHash
}

func TestCaseServiceSuite(t *testing.T) {
	suite.Run(t, new(CaseServiceSuite))
}

func (s *CaseServiceSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.config = systemconfig.NewStore(systemconfig.Defaults())
	s.assignments = access.NewInMemoryAssignments()
	authorizer := access.New(systemOwner, s.assignments, s.config,
		access.NewInMemoryRetention(), slog.Default())

	salt, err := identity.NewSalt()
	s.Require().NoError(err)
	clientSvc := client.New(clientstore.NewInMemory(), identity.NewHasher(salt), authorizer)

	registered, err := clientSvc.Register(s.ctx, systemOwner, []byte("jane doe 1990-01-01"), client.RegisterParams{})
	s.Require().NoError(err)
	s.clientHash = registered.Hash

	s.Require().NoError(s.assignments.Assign(s.ctx, caseWorker, s.clientHash))

	s.service = caserecord.New(casestore.NewInMemory(), clientSvc, authorizer,
		s.assignments, s.config)
}

func (s *CaseServiceSuite) create() *caserecord.CaseRecord {
	c, err := s.service.Create(s.ctx, caseWorker, caserecord.CreateParams{
		ClientHash:   s.clientHash,
		ServicePlan:  []byte("encrypted plan blob"),
		Goals:        []string{"stable housing"},
		PrivacyLevel: 3,
	})
	s.Require().NoError(err)
	return c
}

func (s *CaseServiceSuite) TestCreate() {
	s.Run("records the worker and starts active", func() {
		c := s.create()
		s.Equal(domain.CaseID(1), c.ID)
		s.Equal(caseWorker, c.Worker)
		s.Equal(domain.StatusActive, c.Status)
		s.Equal(3, c.PrivacyLevel)

		// The service plan blob is stored opaque and unchanged.
		got, err := s.service.Get(s.ctx, caseWorker, c.ID)
		s.Require().NoError(err)
		s.Equal([]byte("encrypted plan blob"), got.ServicePlan)
	})

	s.Run("privacy level above the range fails", func() {
		_, err := s.service.Create(s.ctx, caseWorker, caserecord.CreateParams{
			ClientHash:   s.clientHash,
			PrivacyLevel: 6,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("too many goals fail", func() {
		goals := make([]string, caserecord.MaxGoals+1)
		for i := range goals {
			goals[i] = fmt.Sprintf("goal %d", i)
		}
		_, err := s.service.Create(s.ctx, caseWorker, caserecord.CreateParams{
			ClientHash:   s.clientHash,
			Goals:        goals,
			PrivacyLevel: 3,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unauthorized actor cannot open a case", func() {
		_, err := s.service.Create(s.ctx, stranger, caserecord.CreateParams{
			ClientHash:   s.clientHash,
			PrivacyLevel: 3,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

// TestCreateGrantsDurableAccess verifies the auto-assignment: a worker who
// opens a case during an emergency override keeps client access after the
// override is lifted.
func (s *CaseServiceSuite) TestCreateGrantsDurableAccess() {
	overrideWorker := domain.Actor("override-worker")
	s.config.SetEmergencyOverride(true)
	c, err := s.service.Create(s.ctx, overrideWorker, caserecord.CreateParams{
		ClientHash:   s.clientHash,
		PrivacyLevel: 2,
	})
	s.Require().NoError(err)
	s.config.SetEmergencyOverride(false)

	_, err = s.service.AppendProgress(s.ctx, overrideWorker, c.ID, "first contact")
	s.Require().NoError(err)
}

func (s *CaseServiceSuite) TestAppendProgress() {
	c := s.create()

	s.Run("worker appends a note", func() {
		updated, err := s.service.AppendProgress(s.ctx, caseWorker, c.ID, "intake done")
		s.Require().NoError(err)
		s.Require().Len(updated.ProgressNotes, 1)
		s.Equal(caseWorker, updated.ProgressNotes[0].Worker)
		s.Equal("intake done", updated.ProgressNotes[0].Note)
	})

	s.Run("a non-worker is rejected, even the system owner", func() {
		_, err := s.service.AppendProgress(s.ctx, systemOwner, c.ID, "note")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("empty note is rejected", func() {
		_, err := s.service.AppendProgress(s.ctx, caseWorker, c.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("the note cap holds", func() {
		for i := 1; i < caserecord.MaxProgressNotes; i++ {
			_, err := s.service.AppendProgress(s.ctx, caseWorker, c.ID, fmt.Sprintf("note %d", i))
			s.Require().NoError(err)
		}
		_, err := s.service.AppendProgress(s.ctx, caseWorker, c.ID, "one too many")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *CaseServiceSuite) TestSetOutcomes() {
	c := s.create()
	outcomes := caserecord.OutcomeMetrics{
		HousingStability:    4,
		EmploymentStatus:    2,
		HealthImprovements:  3,
		ServiceSatisfaction: 5,
	}
	updated, err := s.service.SetOutcomes(s.ctx, caseWorker, c.ID, outcomes)
	s.Require().NoError(err)
	s.Equal(outcomes, updated.Outcomes)

	// Overwrite is wholesale; unset fields zero out.
	updated, err = s.service.SetOutcomes(s.ctx, caseWorker, c.ID, caserecord.OutcomeMetrics{HousingStability: 5})
	s.Require().NoError(err)
	s.Equal(0, updated.Outcomes.ServiceSatisfaction)
	s.Equal(5, updated.Outcomes.HousingStability)
}

func (s *CaseServiceSuite) TestClose() {
	c := s.create()

	s.Run("only terminal statuses close a case", func() {
		_, err := s.service.Close(s.ctx, caseWorker, c.ID, domain.StatusInactive)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("closed cases reject further mutation", func() {
		_, err := s.service.Close(s.ctx, caseWorker, c.ID, domain.StatusCompleted)
		s.Require().NoError(err)

		_, err = s.service.AppendProgress(s.ctx, caseWorker, c.ID, "late note")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *CaseServiceSuite) TestGet() {
	c := s.create()

	s.Run("system owner reads any case", func() {
		got, err := s.service.Get(s.ctx, systemOwner, c.ID)
		s.Require().NoError(err)
		s.Equal(c.ID, got.ID)
	})

	s.Run("stranger is rejected", func() {
		_, err := s.service.Get(s.ctx, stranger, c.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown case is not found", func() {
		_, err := s.service.Get(s.ctx, systemOwner, domain.CaseID(99))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
