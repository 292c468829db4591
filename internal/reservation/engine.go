// Package reservation is the single point of slot-count mutation. Request
// creation and cancellation route through here; nothing else touches the
// availability counters.
package reservation

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

// SlotStore is the atomic slot primitive the engine drives. Implementations
// guarantee that ReserveSlot's check-then-decrement never interleaves with a
// concurrent reservation on the same resource (mutex in memory, conditional
// UPDATE in Postgres).
type SlotStore interface {
	ReserveSlot(ctx context.Context, id domain.ResourceID) error
	ReleaseSlot(ctx context.Context, id domain.ResourceID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Engine translates slot outcomes into domain errors and records the
// observable side effects.
type Engine struct {
	slots     SlotStore
	logger    *slog.Logger
	publisher AuditPublisher
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(e *Engine) { e.publisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func New(slots SlotStore, opts ...Option) *Engine {
	e := &Engine{
		slots:  slots,
		logger: slog.Default(),
		tracer: otel.Tracer("safeharbor/reservation"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reserve takes exactly one slot, failing when none are available. Callers
// that fail after a successful Reserve must compensate with Release so no
// slot leaks.
func (e *Engine) Reserve(ctx context.Context, id domain.ResourceID) error {
	ctx, span := e.tracer.Start(ctx, "reservation.Reserve")
	defer span.End()

	if err := e.slots.ReserveSlot(ctx, id); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrSlotExhausted):
			if e.metrics != nil {
				e.metrics.ReservationConflicts.Inc()
			}
			return dErrors.New(dErrors.CodeResourceUnavailable, "no slots available")
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "resource not found")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reserve slot")
		}
	}

	if e.metrics != nil {
		e.metrics.ReservationsMade.Inc()
	}
	return nil
}

// Release returns exactly one slot. The request state machine guarantees at
// most one release per request; a release that would overflow the total is an
// invariant violation, not a caller error.
func (e *Engine) Release(ctx context.Context, id domain.ResourceID) error {
	ctx, span := e.tracer.Start(ctx, "reservation.Release")
	defer span.End()

	if err := e.slots.ReleaseSlot(ctx, id); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "resource not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			e.logger.ErrorContext(ctx, "release would overflow slot total",
				"resource_id", id.String(),
			)
			return dErrors.Wrap(err, dErrors.CodeInternal, "slot release overflow")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to release slot")
		}
	}

	if e.metrics != nil {
		e.metrics.ReservationsReleased.Inc()
	}
	e.emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Subject:   id.String(),
		Action:    string(audit.EventSlotReleased),
	})
	return nil
}

func (e *Engine) emit(ctx context.Context, event audit.Event) {
	if e.publisher == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := e.publisher.Emit(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
