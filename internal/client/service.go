package client

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"safeharbor/internal/access"
	"safeharbor/internal/audit"
	"safeharbor/internal/identity"
	"safeharbor/internal/platform/metrics"
	"safeharbor/pkg/domain"
	dErrors "safeharbor/pkg/domain-errors"
	"safeharbor/pkg/platform/sentinel"
	strutil "safeharbor/pkg/platform/strings"
	"safeharbor/pkg/requestcontext"
)

// Store is the persistence contract the service needs.
type Store interface {
	Create(ctx context.Context, c *Client) error
	FindByHash(ctx context.Context, hash domain.ClientHash) (*Client, error)
	TouchLastAccess(ctx context.Context, hash domain.ClientHash, now time.Time) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service registers anonymous clients and serves privacy-gated reads.
type Service struct {
	store      Store
	hasher     *identity.Hasher
	authorizer *access.Authorizer
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

func New(store Store, hasher *identity.Hasher, authorizer *access.Authorizer, opts ...Option) *Service {
	s := &Service{
		store:      store,
		hasher:     hasher,
		authorizer: authorizer,
		logger:     slog.Default(),
		tracer:     otel.Tracer("safeharbor/client"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterParams carries the non-identifying attributes of a registration.
type RegisterParams struct {
	RiskLevel          RiskLevel
	PriorityScore      int
	PreferredServices  []domain.ServiceType
	AccessibilityNeeds []string
	EmergencyContact   []byte
}

// Register derives the anonymous identifier from raw identifying data and
// creates the record. The raw data is never stored; re-registration with an
// identical derived hash fails.
func (s *Service) Register(ctx context.Context, actor domain.Actor, raw []byte, params RegisterParams) (*Client, error) {
	ctx, span := s.tracer.Start(ctx, "client.Register")
	defer span.End()

	if actor.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no actor identity supplied")
	}
	if len(raw) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "raw identifying data is required")
	}
	if !params.RiskLevel.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "risk level out of range")
	}
	if len(params.PreferredServices) > MaxPreferredServices {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "at most %d preferred services", MaxPreferredServices)
	}
	if t, ok := domain.ValidServiceTypes(params.PreferredServices); !ok {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown service type %q", t)
	}
	params.AccessibilityNeeds = strutil.DedupeAndTrim(params.AccessibilityNeeds)
	if len(params.AccessibilityNeeds) > MaxAccessibilityNeeds {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "at most %d accessibility needs", MaxAccessibilityNeeds)
	}

	now := requestcontext.Now(ctx)
	c := &Client{
		Hash:               s.hasher.Derive(raw),
		CreatedAt:          now,
		LastAccess:         now,
		RiskLevel:          params.RiskLevel,
		PriorityScore:      params.PriorityScore,
		PreferredServices:  params.PreferredServices,
		AccessibilityNeeds: params.AccessibilityNeeds,
		EmergencyContact:   params.EmergencyContact,
	}

	if err := s.store.Create(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeAlreadyExists, "client already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create client")
	}

	// Registration opens the retention window.
	if err := s.authorizer.Touch(ctx, c.Hash, now); err != nil {
		s.logger.WarnContext(ctx, "retention touch failed", "error", err)
	}

	s.emit(ctx, audit.Event{
		Timestamp: now,
		Actor:     string(actor),
		Subject:   c.Hash.String(),
		Action:    string(audit.EventClientRegistered),
	})
	if s.metrics != nil {
		s.metrics.ClientsRegistered.Inc()
	}
	return c, nil
}

// Get returns a client record, gated by the access authorizer. An authorized
// read refreshes the retention window.
func (s *Service) Get(ctx context.Context, actor domain.Actor, hash domain.ClientHash) (*Client, error) {
	ctx, span := s.tracer.Start(ctx, "client.Get")
	defer span.End()

	now := requestcontext.Now(ctx)
	if err := s.authorizer.CanAccess(ctx, actor, hash, now); err != nil {
		s.denied(ctx, actor, hash, now, err)
		return nil, err
	}

	c, err := s.store.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "client not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load client")
	}

	if err := s.store.TouchLastAccess(ctx, hash, now); err != nil {
		s.logger.WarnContext(ctx, "last access update failed", "error", err)
	}
	if err := s.authorizer.Touch(ctx, hash, now); err != nil {
		s.logger.WarnContext(ctx, "retention touch failed", "error", err)
	}

	s.emit(ctx, audit.Event{
		Timestamp: now,
		Actor:     string(actor),
		Subject:   hash.String(),
		Action:    string(audit.EventClientAccessed),
	})
	return c, nil
}

// Exists reports whether a client record is present, without gating. Used by
// sibling services to validate references before reserving resources.
func (s *Service) Exists(ctx context.Context, hash domain.ClientHash) (bool, error) {
	_, err := s.store.FindByHash(ctx, hash)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load client")
	}
	return true, nil
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
