package request

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
	"safeharbor/internal/provider"
	"safeharbor/internal/systemconfig"
	"safeharbor/pkg/domain"
	dErrors "safeharbor/pkg/domain-errors"
	"safeharbor/pkg/platform/sentinel"
	strutil "safeharbor/pkg/platform/strings"
	"safeharbor/pkg/requestcontext"
)

// Store is the persistence contract for service requests. UpdateStatus is a
// compare-and-set on the current status so concurrent transitions cannot both
// win.
type Store interface {
	Create(ctx context.Context, r *ServiceRequest) (domain.RequestID, error)
	Find(ctx context.Context, id domain.RequestID) (*ServiceRequest, error)
	UpdateStatus(ctx context.Context, id domain.RequestID, from, to domain.Status, now time.Time) error
	ListByClient(ctx context.Context, hash domain.ClientHash) ([]*ServiceRequest, error)
}

// Reserver is the slot engine boundary.
type Reserver interface {
	Reserve(ctx context.Context, id domain.ResourceID) error
	Release(ctx context.Context, id domain.ResourceID) error
}

// ClientDirectory validates client references without a gated read.
type ClientDirectory interface {
	Exists(ctx context.Context, hash domain.ClientHash) (bool, error)
}

// ProviderDirectory resolves provider and resource records.
type ProviderDirectory interface {
	GetProvider(ctx context.Context, id domain.ProviderID) (*provider.Provider, error)
	GetResource(ctx context.Context, id domain.ResourceID) (*provider.Resource, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service drives the request lifecycle. Creating a request reserves a slot;
// the transition into cancelled is the only path that releases it.
type Service struct {
	store      Store
	engine     Reserver
	clients    ClientDirectory
	providers  ProviderDirectory
	authorizer *access.Authorizer
	config     *systemconfig.Store
	logger     *slog.Logger
	publisher  AuditPublisher
	metrics    *metrics.Metrics
	tracer     trace.Tracer
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
	engine Reserver,
	clients ClientDirectory,
	providers ProviderDirectory,
	authorizer *access.Authorizer,
	config *systemconfig.Store,
	opts ...Option,
) *Service {
	s := &Service{
		store:      store,
		engine:     engine,
		clients:    clients,
		providers:  providers,
		authorizer: authorizer,
		config:     config,
		logger:     slog.Default(),
		tracer:     otel.Tracer("safeharbor/request"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams carries the fields of a new service request. RequestedTime is
// the slot the client wants, not the time of the call.
type CreateParams struct {
	ClientHash          domain.ClientHash
	ProviderID          domain.ProviderID
	ResourceID          domain.ResourceID
	Type                domain.ServiceType
	Priority            int
	SpecialRequirements []string
	RequestedTime       time.Time
}

// Create validates the referenced entities, reserves exactly one slot on the
// resource, and persists the request in pending status. If persistence fails
// after the slot was taken, the reservation is compensated so no slot leaks.
func (s *Service) Create(ctx context.Context, actor domain.Actor, params CreateParams) (*ServiceRequest, error) {
	ctx, span := s.tracer.Start(ctx, "request.Create")
	defer span.End()

	if params.Priority < MinPriority || params.Priority > MaxPriority {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "priority must be between %d and %d", MinPriority, MaxPriority)
	}
	params.SpecialRequirements = strutil.DedupeAndTrim(params.SpecialRequirements)
	if len(params.SpecialRequirements) > MaxSpecialRequirements {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "at most %d special requirements", MaxSpecialRequirements)
	}
	if !params.Type.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown service type %q", params.Type)
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

	if _, err := s.providers.GetProvider(ctx, params.ProviderID); err != nil {
		return nil, err
	}
	resource, err := s.providers.GetResource(ctx, params.ResourceID)
	if err != nil {
		return nil, err
	}
	if resource.ProviderID != params.ProviderID {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "resource does not belong to provider")
	}
	if resource.Status != domain.StatusActive {
		return nil, dErrors.New(dErrors.CodeResourceUnavailable, "resource is not active")
	}

	if err := s.engine.Reserve(ctx, params.ResourceID); err != nil {
		return nil, err
	}

	r := &ServiceRequest{
		ClientHash:          params.ClientHash,
		ProviderID:          params.ProviderID,
		ResourceID:          params.ResourceID,
		Type:                params.Type,
		Status:              domain.StatusPending,
		Priority:            params.Priority,
		SpecialRequirements: params.SpecialRequirements,
		RequestedTime:       params.RequestedTime,
		CreatedAt:           now,
		UpdatedAt:           now,
		ExpiresAt:           now.Add(s.config.Get().MaxReservationTime),
	}

	if _, err := s.store.Create(ctx, r); err != nil {
		if relErr := s.engine.Release(ctx, params.ResourceID); relErr != nil {
			s.logger.ErrorContext(ctx, "compensating release failed",
				"resource_id", params.ResourceID.String(), "error", relErr)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create request")
	}

	// Creating a request counts as activity on the client record.
	if err := s.authorizer.Touch(ctx, params.ClientHash, now); err != nil {
		s.logger.WarnContext(ctx, "retention touch failed", "error", err)
	}

	s.emit(ctx, audit.Event{
		Timestamp: now,
		Actor:     string(actor),
		Subject:   r.ID.String(),
		Action:    string(audit.EventRequestCreated),
	})
	if s.metrics != nil {
		s.metrics.RequestsCreated.Inc()
	}
	return r, nil
}

// UpdateStatus moves a request through the lifecycle. The caller must be
// authorized for the client or own the serving provider. The slot is released
// exactly when the request transitions into cancelled; terminal statuses
// never transition again, so a cancellation cannot release twice.
func (s *Service) UpdateStatus(ctx context.Context, actor domain.Actor, id domain.RequestID, to domain.Status) (*ServiceRequest, error) {
	ctx, span := s.tracer.Start(ctx, "request.UpdateStatus")
	defer span.End()

	if !to.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown status %q", to)
	}

	r, err := s.store.Find(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request")
	}

	now := requestcontext.Now(ctx)
	if err := s.authorize(ctx, actor, r, now); err != nil {
		s.denied(ctx, actor, r.ClientHash, now, err)
		return nil, err
	}

	if !CanTransition(r.Status, to) {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "cannot transition from %s to %s", r.Status, to)
	}

	if err := s.store.UpdateStatus(ctx, id, r.Status, to, now); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.New(dErrors.CodeInvalidInput, "request status changed concurrently")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update request")
		}
	}

	if to == domain.StatusCancelled {
		if err := s.engine.Release(ctx, r.ResourceID); err != nil {
			s.logger.ErrorContext(ctx, "slot release on cancellation failed",
				"request_id", id.String(), "resource_id", r.ResourceID.String(), "error", err)
		}
	}

	r.Status = to
	r.UpdatedAt = now

	s.emit(ctx, audit.Event{
		Timestamp: now,
		Actor:     string(actor),
		Subject:   id.String(),
		Action:    string(audit.EventRequestStatusChanged),
		Decision:  string(to),
	})
	if s.metrics != nil {
		s.metrics.RequestStatusChanges.WithLabelValues(string(to)).Inc()
	}
	return r, nil
}

// Get returns a request, gated the same way as a status update.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id domain.RequestID) (*ServiceRequest, error) {
	r, err := s.store.Find(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request")
	}

	now := requestcontext.Now(ctx)
	if err := s.authorize(ctx, actor, r, now); err != nil {
		s.denied(ctx, actor, r.ClientHash, now, err)
		return nil, err
	}
	return r, nil
}

// ListForClient returns every request for a client, gated by client access.
func (s *Service) ListForClient(ctx context.Context, actor domain.Actor, hash domain.ClientHash) ([]*ServiceRequest, error) {
	now := requestcontext.Now(ctx)
	if err := s.authorizer.CanAccess(ctx, actor, hash, now); err != nil {
		s.denied(ctx, actor, hash, now, err)
		return nil, err
	}

	out, err := s.store.ListByClient(ctx, hash)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list requests")
	}
	return out, nil
}

// authorize admits actors holding client access and, failing that, the owner
// of the serving provider.
func (s *Service) authorize(ctx context.Context, actor domain.Actor, r *ServiceRequest, now time.Time) error {
	err := s.authorizer.CanAccess(ctx, actor, r.ClientHash, now)
	if err == nil {
		return nil
	}
	if !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
		return err
	}

	p, provErr := s.providers.GetProvider(ctx, r.ProviderID)
	if provErr == nil && !actor.IsZero() && actor == p.Owner {
		return nil
	}
	return err
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
