// Package admin holds the owner-gated control surface: runtime configuration,
// privacy salt rotation, the emergency override, and case-worker assignment.
package admin

import (
	"context"
	"log/slog"

	"safeharbor/internal/access"
	"safeharbor/internal/audit"
	"safeharbor/internal/identity"
	"safeharbor/internal/systemconfig"
	"safeharbor/pkg/domain"
	dErrors "safeharbor/pkg/domain-errors"
	"safeharbor/pkg/requestcontext"
)

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	authorizer  *access.Authorizer
	config      *systemconfig.Store
	hasher      *identity.Hasher
	assignments access.AssignmentStore
	logger      *slog.Logger
	publisher   AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func New(
	authorizer *access.Authorizer,
	config *systemconfig.Store,
	hasher *identity.Hasher,
	assignments access.AssignmentStore,
	opts ...Option,
) *Service {
	s := &Service{
		authorizer:  authorizer,
		config:      config,
		hasher:      hasher,
		assignments: assignments,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetConfig returns the current runtime configuration, owner-gated.
func (s *Service) GetConfig(ctx context.Context, actor domain.Actor) (systemconfig.Config, error) {
	if !s.authorizer.IsOwner(actor) {
		return systemconfig.Config{}, dErrors.New(dErrors.CodeUnauthorized, "owner access required")
	}
	return s.config.Get(), nil
}

// ReplaceConfig swaps the runtime configuration wholesale.
func (s *Service) ReplaceConfig(ctx context.Context, actor domain.Actor, cfg systemconfig.Config) error {
	if !s.authorizer.IsOwner(actor) {
		return dErrors.New(dErrors.CodeUnauthorized, "owner access required")
	}
	if cfg.MaxReservationTime <= 0 || cfg.PrivacyRetentionPeriod <= 0 || cfg.MinimumCaseUpdateInterval < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "durations must be positive")
	}

	s.config.Replace(cfg)
	s.emit(ctx, actor, audit.Event{Action: string(audit.EventConfigReplaced)})
	return nil
}

// ToggleEmergencyOverride flips only the override flag. While enabled, any
// authenticated actor passes client access checks, so every toggle lands in
// the security audit stream.
func (s *Service) ToggleEmergencyOverride(ctx context.Context, actor domain.Actor, enabled bool) error {
	if !s.authorizer.IsOwner(actor) {
		return dErrors.New(dErrors.CodeUnauthorized, "owner access required")
	}

	s.config.SetEmergencyOverride(enabled)
	decision := "disabled"
	if enabled {
		decision = "enabled"
	}
	s.logger.WarnContext(ctx, "emergency override toggled", "enabled", enabled, "actor", string(actor))
	s.emit(ctx, actor, audit.Event{
		Action:   string(audit.EventOverrideToggled),
		Decision: decision,
	})
	return nil
}

// RotateSalt installs a fresh privacy salt. Every hash derived afterwards is
// unlinkable to records keyed under the old salt; existing records stay
// reachable only by their stored hashes.
func (s *Service) RotateSalt(ctx context.Context, actor domain.Actor) error {
	if !s.authorizer.IsOwner(actor) {
		return dErrors.New(dErrors.CodeUnauthorized, "owner access required")
	}

	salt, err := identity.NewSalt()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate salt")
	}
	s.hasher.Rotate(salt)
	s.emit(ctx, actor, audit.Event{Action: string(audit.EventSaltRotated)})
	return nil
}

// AssignWorker grants a case worker access to a client's records.
func (s *Service) AssignWorker(ctx context.Context, actor domain.Actor, worker domain.Actor, client domain.ClientHash) error {
	if !s.authorizer.IsOwner(actor) {
		return dErrors.New(dErrors.CodeUnauthorized, "owner access required")
	}
	if worker.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "worker identity is required")
	}

	if err := s.assignments.Assign(ctx, worker, client); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign worker")
	}
	s.emit(ctx, actor, audit.Event{
		Action:  string(audit.EventCaseWorkerAssigned),
		Subject: client.String(),
		Reason:  string(worker),
	})
	return nil
}

// UnassignWorker revokes a case worker's access to a client's records.
func (s *Service) UnassignWorker(ctx context.Context, actor domain.Actor, worker domain.Actor, client domain.ClientHash) error {
	if !s.authorizer.IsOwner(actor) {
		return dErrors.New(dErrors.CodeUnauthorized, "owner access required")
	}

	if err := s.assignments.Unassign(ctx, worker, client); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to unassign worker")
	}
	s.emit(ctx, actor, audit.Event{
		Action:  string(audit.EventCaseWorkerUnassigned),
		Subject: client.String(),
		Reason:  string(worker),
	})
	return nil
}

func (s *Service) emit(ctx context.Context, actor domain.Actor, event audit.Event) {
	if s.publisher == nil {
		return
	}
	event.Timestamp = requestcontext.Now(ctx)
	event.Actor = string(actor)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
