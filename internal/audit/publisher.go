package audit

import (
	"context"
	"log/slog"
	"sync"
)

// Store is where the publisher lands events: the in-memory recorder or the
// Kafka sink.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher fans audit events out to a store, optionally through an async
// buffer so domain operations never block on the sink.
type Publisher struct {
	store  Store
	logger *slog.Logger

	buffer chan Event
	wg     sync.WaitGroup
	once   sync.Once
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer enables asynchronous emission with the given buffer size.
// When the buffer is full events are dropped with a warning rather than
// blocking the operation that emitted them.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		p.buffer = make(chan Event, size)
	}
}

func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event. In sync mode the store error propagates; in async
// mode Emit never fails and a full buffer drops the event.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	event.Category = AuditEvent(event.Action).Category()

	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.buffer <- event:
	default:
		p.logger.Warn("audit buffer full, dropping event",
			"action", event.Action,
			"subject", event.Subject,
		)
	}
	return nil
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		if err := p.store.Append(context.Background(), event); err != nil {
			p.logger.Error("audit append failed",
				"action", event.Action,
				"error", err,
			)
		}
	}
}

// Close stops the async worker after flushing buffered events.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}
