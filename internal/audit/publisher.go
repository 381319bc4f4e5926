package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Publisher captures structured audit events and fans them out to the
// configured stores. In sync mode Emit writes through before returning; with
// an async buffer Emit enqueues and a single worker drains, so grant/revoke
// latency never waits on the indexer pipeline.
type Publisher struct {
	stores []Store
	logger *slog.Logger

	buffer chan Event
	wg     sync.WaitGroup
	once   sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with the given queue
// size. When the queue is full events are dropped with a log line rather than
// blocking the caller: audit is observability, not decision state.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.buffer = make(chan Event, size)
	}
}

// WithLogger sets the logger used for drop/failure reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a publisher writing to the given stores.
func NewPublisher(stores []Store, opts ...Option) *Publisher {
	p := &Publisher{stores: stores, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records one audit event. Missing IDs and timestamps are filled in
// here so call sites stay terse.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if p.buffer == nil {
		return p.append(ctx, event)
	}

	select {
	case p.buffer <- event:
		return nil
	default:
		p.logger.Warn("audit buffer full, dropping event",
			"action", string(event.Action),
			"subject", event.Subject,
		)
		return nil
	}
}

func (p *Publisher) append(ctx context.Context, event Event) error {
	var firstErr error
	for _, store := range p.stores {
		if err := store.Append(ctx, event); err != nil {
			p.logger.Error("audit append failed",
				"error", err,
				"action", string(event.Action),
				"subject", event.Subject,
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		// Detached context: the originating request may be long gone.
		_ = p.append(context.Background(), event)
	}
}

// Close drains any buffered events and stops the worker. Safe to call in
// sync mode and safe to call twice.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
		}
	})
	p.wg.Wait()
}
