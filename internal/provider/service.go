package provider

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"safeharbor/internal/audit"
	"safeharbor/internal/platform/metrics"
	"safeharbor/pkg/domain"
	dErrors "safeharbor/pkg/domain-errors"
	"safeharbor/pkg/platform/sentinel"
	"safeharbor/pkg/requestcontext"
)

// Store is the persistence contract for providers and their resources.
type Store interface {
	CreateProvider(ctx context.Context, p *Provider) (domain.ProviderID, error)
	FindProvider(ctx context.Context, id domain.ProviderID) (*Provider, error)
	UpdateProvider(ctx context.Context, p *Provider) error
	CreateResource(ctx context.Context, r *Resource) (domain.ResourceID, error)
	FindResource(ctx context.Context, id domain.ResourceID) (*Resource, error)
	SetSlots(ctx context.Context, id domain.ResourceID, available int) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns provider and resource registration plus the owner-gated
// capacity paths.
type Service struct {
	store     Store
	logger    *slog.Logger
	publisher AuditPublisher
	metrics   *metrics.Metrics
	tracer    trace.Tracer
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

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		tracer: otel.Tracer("safeharbor/provider"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterParams carries the provider registration fields.
type RegisterParams struct {
	Name          string
	Contact       string
	Location      string
	Services      []domain.ServiceType
	TotalCapacity int
}

// Register validates and creates a provider. The caller becomes the owning
// principal; only it may mutate the record afterwards.
func (s *Service) Register(ctx context.Context, actor domain.Actor, params RegisterParams) (*Provider, error) {
	ctx, span := s.tracer.Start(ctx, "provider.Register")
	defer span.End()

	if actor.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no actor identity supplied")
	}
	if params.Name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "provider name is required")
	}
	if params.TotalCapacity <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "total capacity must be positive")
	}
	if len(params.Services) == 0 || len(params.Services) > MaxOfferedServices {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "between 1 and %d offered services", MaxOfferedServices)
	}
	if t, ok := domain.ValidServiceTypes(params.Services); !ok {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown service type %q", t)
	}

	now := requestcontext.Now(ctx)
	p := &Provider{
		Name:     params.Name,
		Contact:  params.Contact,
		Location: params.Location,
		Services: params.Services,
		Capacity: Capacity{
			Total:     params.TotalCapacity,
			Available: params.TotalCapacity,
		},
		Reputation: defaultReputation,
		Status:     domain.StatusActive,
		Owner:      actor,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := s.store.CreateProvider(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create provider")
	}

	s.emit(ctx, audit.Event{
		Timestamp: now,
		Actor:     string(actor),
		Subject:   p.ID.String(),
		Action:    string(audit.EventProviderRegistered),
	})
	return p, nil
}

// UpdateCapacity replaces the provider's total capacity and recomputes
// available from the utilization counter, clamped at zero. Utilization itself
// is not reconciled against in-flight reservations; provider capacity and
// resource slots are independent counters.
func (s *Service) UpdateCapacity(ctx context.Context, actor domain.Actor, id domain.ProviderID, newCapacity int) (*Provider, error) {
	ctx, span := s.tracer.Start(ctx, "provider.UpdateCapacity")
	defer span.End()

	if newCapacity <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "capacity must be positive")
	}

	p, err := s.ownedProvider(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	p.Capacity.Total = newCapacity
	p.Capacity.Available = max(newCapacity-p.Capacity.Utilization, 0)
	p.UpdatedAt = now

	if err := s.store.UpdateProvider(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update provider")
	}

	s.emit(ctx, audit.Event{
		Timestamp: now,
		Actor:     string(actor),
		Subject:   p.ID.String(),
		Action:    string(audit.EventCapacityUpdated),
	})
	return p, nil
}

// AddResourceParams carries the resource registration fields.
type AddResourceParams struct {
	ProviderID     domain.ProviderID
	Type           domain.ServiceType
	Name           string
	Description    string
	TotalSlots     int
	Schedule       Schedule
	LocationDigest []byte
	Requirements   []string
	Cost           uint64
}

// AddResource attaches a bookable resource to an owned provider. Slots start
// fully available.
func (s *Service) AddResource(ctx context.Context, actor domain.Actor, params AddResourceParams) (*Resource, error) {
	ctx, span := s.tracer.Start(ctx, "provider.AddResource")
	defer span.End()

	if params.TotalSlots <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "total slots must be positive")
	}
	if !params.Schedule.Start.Before(params.Schedule.End) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "schedule start must precede end")
	}
	if !params.Type.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown service type %q", params.Type)
	}

	if _, err := s.ownedProvider(ctx, actor, params.ProviderID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	r := &Resource{
		ProviderID:  params.ProviderID,
		Type:        params.Type,
		Name:        params.Name,
		Description: params.Description,
		Availability: Availability{
			TotalSlots:     params.TotalSlots,
			AvailableSlots: params.TotalSlots,
		},
		Schedule:       params.Schedule,
		LocationDigest: params.LocationDigest,
		Requirements:   params.Requirements,
		Cost:           params.Cost,
		Status:         domain.StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if _, err := s.store.CreateResource(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create resource")
	}

	s.emit(ctx, audit.Event{
		Timestamp: now,
		Actor:     string(actor),
		Subject:   r.ID.String(),
		Action:    string(audit.EventResourceAdded),
	})
	return r, nil
}

// SetAvailableSlots is the owner correction path for slot counts; reserved is
// recomputed so conservation holds.
func (s *Service) SetAvailableSlots(ctx context.Context, actor domain.Actor, id domain.ResourceID, available int) error {
	ctx, span := s.tracer.Start(ctx, "provider.SetAvailableSlots")
	defer span.End()

	if available < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "available slots cannot be negative")
	}

	r, err := s.store.FindResource(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "resource not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load resource")
	}
	if available > r.Availability.TotalSlots {
		return dErrors.New(dErrors.CodeInvalidInput, "available slots exceed total slots")
	}

	if _, err := s.ownedProvider(ctx, actor, r.ProviderID); err != nil {
		return err
	}

	if err := s.store.SetSlots(ctx, id, available); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set slots")
	}

	s.emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Actor:     string(actor),
		Subject:   id.String(),
		Action:    string(audit.EventSlotsCorrected),
	})
	return nil
}

// GetProvider is a side-effect-free read.
func (s *Service) GetProvider(ctx context.Context, id domain.ProviderID) (*Provider, error) {
	p, err := s.store.FindProvider(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "provider not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load provider")
	}
	return p, nil
}

// GetResource is a side-effect-free read.
func (s *Service) GetResource(ctx context.Context, id domain.ResourceID) (*Resource, error) {
	r, err := s.store.FindResource(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "resource not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load resource")
	}
	return r, nil
}

func (s *Service) ownedProvider(ctx context.Context, actor domain.Actor, id domain.ProviderID) (*Provider, error) {
	p, err := s.store.FindProvider(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "provider not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load provider")
	}
	if actor.IsZero() || actor != p.Owner {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller does not own this provider")
	}
	return p, nil
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
