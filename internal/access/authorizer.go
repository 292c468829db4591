// Package access decides whether an actor may read or act upon an anonymous
// client's record. Authorization only; authentication happens upstream.
package access

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"safeharbor/internal/systemconfig"
	"safeharbor/pkg/domain"
	dErrors "safeharbor/pkg/domain-errors"
	"safeharbor/pkg/platform/sentinel"
)

// AssignmentStore maps case-worker principals to the client hashes they are
// authorized for. This replaces an always-allow stub: authorization has an
// explicit, queryable source.
type AssignmentStore interface {
	Assign(ctx context.Context, worker domain.Actor, client domain.ClientHash) error
	Unassign(ctx context.Context, worker domain.Actor, client domain.ClientHash) error
	IsAssigned(ctx context.Context, worker domain.Actor, client domain.ClientHash) (bool, error)
}

// RetentionTracker answers whether a client record has been touched within
// the privacy retention window. Implementations: in-process map, Redis TTL
// keys.
type RetentionTracker interface {
	Touch(ctx context.Context, client domain.ClientHash, now time.Time, window time.Duration) error
	Fresh(ctx context.Context, client domain.ClientHash, now time.Time, window time.Duration) (bool, error)
}

// LastAccessSource reads a client's stored last-access time. It backs the
// retention check when the tracker has no entry, so a process restart with an
// empty tracker does not deny clients whose stored record is still fresh.
// Returns sentinel.ErrNotFound for an unknown client.
type LastAccessSource interface {
	LastAccess(ctx context.Context, client domain.ClientHash) (time.Time, error)
}

// Authorizer gates privacy-sensitive operations.
type Authorizer struct {
	owner       domain.Actor
	assignments AssignmentStore
	config      *systemconfig.Store
	retention   RetentionTracker
	lastAccess  LastAccessSource
	logger      *slog.Logger
}

type Option func(*Authorizer)

// WithLastAccessSource wires the durable last-access column as the retention
// fallback.
func WithLastAccessSource(src LastAccessSource) Option {
	return func(a *Authorizer) { a.lastAccess = src }
}

func New(owner domain.Actor, assignments AssignmentStore, config *systemconfig.Store, retention RetentionTracker, logger *slog.Logger, opts ...Option) *Authorizer {
	a := &Authorizer{
		owner:       owner,
		assignments: assignments,
		config:      config,
		retention:   retention,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// IsOwner reports whether the actor is the system owner fixed at
// initialization. Admin operations gate on this alone.
func (a *Authorizer) IsOwner(actor domain.Actor) bool {
	return !actor.IsZero() && actor == a.owner
}

// CanAccess returns nil when the actor may act on the client's record:
// system owner, assigned case worker, or anyone while the emergency override
// is enabled. Even authorized access is denied as stale when the client's
// last access falls outside the privacy retention window.
func (a *Authorizer) CanAccess(ctx context.Context, actor domain.Actor, client domain.ClientHash, now time.Time) error {
	if actor.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "no actor identity supplied")
	}

	cfg := a.config.Get()

	authorized := a.IsOwner(actor) || cfg.EmergencyOverrideEnabled
	if !authorized {
		assigned, err := a.assignments.IsAssigned(ctx, actor, client)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "case worker lookup failed")
		}
		authorized = assigned
	}
	if !authorized {
		a.logger.WarnContext(ctx, "access denied",
			"actor", string(actor),
			"client", client.String(),
		)
		return dErrors.New(dErrors.CodeUnauthorized, "actor is not authorized for this client")
	}

	fresh, err := a.retention.Fresh(ctx, client, now, cfg.PrivacyRetentionPeriod)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "retention check failed")
	}
	if !fresh {
		fresh, err = a.freshFromStored(ctx, client, now, cfg.PrivacyRetentionPeriod)
		if err != nil {
			return err
		}
	}
	if !fresh {
		return dErrors.New(dErrors.CodeExpired, "client record is stale under the privacy retention window")
	}
	return nil
}

// freshFromStored consults the durable last-access column on a tracker miss
// and reseeds the tracker with the remaining window when the record is still
// fresh.
func (a *Authorizer) freshFromStored(ctx context.Context, client domain.ClientHash, now time.Time, window time.Duration) (bool, error) {
	if a.lastAccess == nil {
		return false, nil
	}
	last, err := a.lastAccess.LastAccess(ctx, client)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "last access lookup failed")
	}
	elapsed := now.Sub(last)
	if elapsed > window {
		return false, nil
	}
	if err := a.retention.Touch(ctx, client, last, window-elapsed); err != nil {
		a.logger.WarnContext(ctx, "retention reseed failed", "error", err)
	}
	return true, nil
}

// Touch refreshes the client's retention window after an authorized access.
func (a *Authorizer) Touch(ctx context.Context, client domain.ClientHash, now time.Time) error {
	return a.retention.Touch(ctx, client, now, a.config.Get().PrivacyRetentionPeriod)
}
