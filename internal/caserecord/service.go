package caserecord

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"safeharbor/internal/access"
	"safeharbor/internal/audit"
	"safeharbor/internal/platform/metrics"
	"safeharbor/internal/systemconfig"
	"safeharbor/pkg/domain"
	dErrors "safeharbor/pkg/domain-errors"
	"safeharbor/pkg/platform/sentinel"
	strutil "safeharbor/pkg/platform/strings"
	"safeharbor/pkg/requestcontext"
)

// Store is the persistence contract for case records. Update replaces the
// record wholesale; the service owns the read-modify-write cycle.
type Store interface {
	Create(ctx context.Context, c *CaseRecord) (domain.CaseID, error)
	Find(ctx context.Context, id domain.CaseID) (*CaseRecord, error)
	Update(ctx context.Context, c *CaseRecord) error
	ListByClient(ctx context.Context, hash domain.ClientHash) ([]*CaseRecord, error)
}

// ClientDirectory validates client references without a gated read.
type ClientDirectory interface {
	Exists(ctx context.Context, hash domain.ClientHash) (bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns the case lifecycle. The creating worker is the case's fixed
// owner and is registered as an assigned case worker for the client, so the
// case grants durable access beyond any emergency override window.
type Service struct {
	store       Store
	clients     ClientDirectory
	authorizer  *access.Authorizer
	assignments access.AssignmentStore
	config      *systemconfig.Store
	logger      *slog.Logger
	publisher   AuditPublisher
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(
	store Store,
	clients ClientDirectory,
	authorizer *access.Authorizer,
	assignments access.AssignmentStore,
	config *systemconfig.Store,
	opts ...Option,
) *Service {
	s := &Service{
		store:       store,
		clients:     clients,
		authorizer:  authorizer,
		assignments: assignments,
		config:      config,
		logger:      slog.Default(),
		tracer:      otel.Tracer("safeharbor/caserecord"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams carries the fields of a new case record. ServicePlan is an
// opaque blob passed through unchanged.
type CreateParams struct {
	ClientHash   domain.ClientHash
	ServicePlan  []byte
	Goals        []string
	PrivacyLevel int
}

// Create opens a case on a client. The caller must already be authorized for
// the client; it becomes the case's immutable worker and is recorded as an
// assigned case worker.
func (s *Service) Create(ctx context.Context, actor domain.Actor, params CreateParams) (*CaseRecord, error) {
	ctx, span := s.tracer.Start(ctx, "caserecord.Create")
	defer span.End()

	if !ValidPrivacyLevel(params.PrivacyLevel) {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "privacy level must be between %d and %d", MinPrivacyLevel, MaxPrivacyLevel)
	}
	params.Goals = strutil.DedupeAndTrim(params.Goals)
	if len(params.Goals) > MaxGoals {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "at most %d goals", MaxGoals)
	}

	now := requestcontext.Now(ctx)
	if err := s.authorizer.CanAccess(ctx, actor, params.ClientHash, now); err != nil {
		s.denied(ctx, actor, params.ClientHash, now, err)
		return nil, err
	}

	exists, err := s.clients.Exists(ctx, params.ClientHash)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, dErrors.New(dErrors.CodeNotFound, "client not found")
	}

	c := &CaseRecord{
		ClientHash:   params.ClientHash,
		Worker:       actor,
		Status:       domain.StatusActive,
		ServicePlan:  params.ServicePlan,
		Goals:        params.Goals,
		PrivacyLevel: params.PrivacyLevel,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.store.Create(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create case record")
	}

	if err := s.assignments.Assign(ctx, actor, params.ClientHash); err != nil {
		s.logger.ErrorContext(ctx, "case worker assignment failed",
			"worker", string(actor), "error", err)
	} else {
		s.emit(ctx, audit.Event{
			Timestamp: now,
			Actor:     string(actor),
			Subject:   params.ClientHash.String(),
			Action:    string(audit.EventCaseWorkerAssigned),
		})
	}

	s.emit(ctx, audit.Event{
		Timestamp: now,
		Actor:     string(actor),
		Subject:   c.ID.String(),
		Action:    string(audit.EventCaseCreated),
	})
	if s.metrics != nil {
		s.metrics.CasesCreated.Inc()
	}
	return c, nil
}

// AppendProgress adds a dated note to the case log, capped at
// MaxProgressNotes entries over the case's lifetime.
func (s *Service) AppendProgress(ctx context.Context, actor domain.Actor, id domain.CaseID, note string) (*CaseRecord, error) {
	ctx, span := s.tracer.Start(ctx, "caserecord.AppendProgress")
	defer span.End()

	if note == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "progress note is empty")
	}

	now := requestcontext.Now(ctx)
	c, err := s.ownedCase(ctx, actor, id, now)
	if err != nil {
		return nil, err
	}
	if len(c.ProgressNotes) >= MaxProgressNotes {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "case already holds %d progress notes", MaxProgressNotes)
	}

	if n := len(c.ProgressNotes); n > 0 {
		if pace := s.config.Get().MinimumCaseUpdateInterval; now.Sub(c.ProgressNotes[n-1].Timestamp) < pace {
			s.logger.InfoContext(ctx, "progress note added faster than pacing interval",
				"case_id", id.String(), "interval", pace.String())
		}
	}

	c.ProgressNotes = append(c.ProgressNotes, ProgressNote{
		Timestamp: now,
		Worker:    actor,
		Note:      note,
	})
	c.UpdatedAt = now
	if err := s.update(ctx, c); err != nil {
		return nil, err
	}

	s.emit(ctx, audit.Event{
		Timestamp: now,
		Actor:     string(actor),
		Subject:   id.String(),
		Action:    string(audit.EventCaseProgressAppended),
	})
	if s.metrics != nil {
		s.metrics.CaseProgressAppended.Inc()
	}
	return c, nil
}

// RecordInteraction attaches a service interaction to the case history,
// capped at MaxHistoryEntries.
func (s *Service) RecordInteraction(ctx context.Context, actor domain.Actor, id domain.CaseID, requestID domain.RequestID, summary string) (*CaseRecord, error) {
	ctx, span := s.tracer.Start(ctx, "caserecord.RecordInteraction")
	defer span.End()

	now := requestcontext.Now(ctx)
	c, err := s.ownedCase(ctx, actor, id, now)
	if err != nil {
		return nil, err
	}
	if len(c.History) >= MaxHistoryEntries {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "case already holds %d history entries", MaxHistoryEntries)
	}

	c.History = append(c.History, HistoryEntry{
		Timestamp: now,
		RequestID: requestID,
		Summary:   summary,
	})
	c.UpdatedAt = now
	if err := s.update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// SetOutcomes overwrites the outcome metrics wholesale.
func (s *Service) SetOutcomes(ctx context.Context, actor domain.Actor, id domain.CaseID, outcomes OutcomeMetrics) (*CaseRecord, error) {
	ctx, span := s.tracer.Start(ctx, "caserecord.SetOutcomes")
	defer span.End()

	now := requestcontext.Now(ctx)
	c, err := s.ownedCase(ctx, actor, id, now)
	if err != nil {
		return nil, err
	}
	c.Outcomes = outcomes
	c.UpdatedAt = now
	if err := s.update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Close moves the case to a terminal status. Closed cases reject further
// mutation.
func (s *Service) Close(ctx context.Context, actor domain.Actor, id domain.CaseID, status domain.Status) (*CaseRecord, error) {
	ctx, span := s.tracer.Start(ctx, "caserecord.Close")
	defer span.End()

	if !status.Terminal() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "close requires a terminal status, got %q", status)
	}

	now := requestcontext.Now(ctx)
	c, err := s.ownedCase(ctx, actor, id, now)
	if err != nil {
		return nil, err
	}
	c.Status = status
	c.UpdatedAt = now
	if err := s.update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns a case, gated by access to the underlying client.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id domain.CaseID) (*CaseRecord, error) {
	c, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	if err := s.authorizer.CanAccess(ctx, actor, c.ClientHash, now); err != nil {
		s.denied(ctx, actor, c.ClientHash, now, err)
		return nil, err
	}
	return c, nil
}

// ListForClient returns every case on a client, gated by client access.
func (s *Service) ListForClient(ctx context.Context, actor domain.Actor, hash domain.ClientHash) ([]*CaseRecord, error) {
	now := requestcontext.Now(ctx)
	if err := s.authorizer.CanAccess(ctx, actor, hash, now); err != nil {
		s.denied(ctx, actor, hash, now, err)
		return nil, err
	}

	out, err := s.store.ListByClient(ctx, hash)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list case records")
	}
	return out, nil
}

// ownedCase loads a case and admits only its worker, and only while the case
// is open. Client access is still checked so a stale client denies the worker
// too.
func (s *Service) ownedCase(ctx context.Context, actor domain.Actor, id domain.CaseID, now time.Time) (*CaseRecord, error) {
	c, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsZero() || actor != c.Worker {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller is not this case's worker")
	}
	if err := s.authorizer.CanAccess(ctx, actor, c.ClientHash, now); err != nil {
		s.denied(ctx, actor, c.ClientHash, now, err)
		return nil, err
	}
	if c.Status.Terminal() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "case is closed")
	}
	return c, nil
}

func (s *Service) find(ctx context.Context, id domain.CaseID) (*CaseRecord, error) {
	c, err := s.store.Find(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "case record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load case record")
	}
	return c, nil
}

func (s *Service) update(ctx context.Context, c *CaseRecord) error {
	if err := s.store.Update(ctx, c); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update case record")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.publisher == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}

func (s *Service) denied(ctx context.Context, actor domain.Actor, hash domain.ClientHash, now time.Time, cause error) {
	if s.metrics != nil {
		s.metrics.AccessDenied.Inc()
	}
	s.emit(ctx, audit.Event{
		Timestamp: now,
		Actor:     string(actor),
		Subject:   hash.String(),
		Action:    string(audit.EventAccessDenied),
		Reason:    cause.Error(),
	})
}
