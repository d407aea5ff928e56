package eventpublisher

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/goexpense/internal/domain"
	"github.com/iho/goexpense/internal/usecase"
)

// ErrQueueFull is returned by Dispatcher.Publish when the queue has no room.
var ErrQueueFull = errors.New("event queue is full")

// ErrStopped is returned by Dispatcher.Publish after the worker has stopped.
var ErrStopped = errors.New("event dispatcher stopped")

// Publisher defines the interface for publishing events to external systems.
type Publisher interface {
	Publish(ctx context.Context, event domain.RecordEvent) error
}

// Observer is notified of every publish attempt.
type Observer interface {
	ObservePublish(eventType string, err error)
}

// Dispatcher queues record events and publishes them from a single worker so
// that ledger mutations never wait on the broker.
type Dispatcher struct {
	publisher    Publisher
	idGen        usecase.IDGenerator
	observer     Observer
	logger       zerolog.Logger
	queue        chan domain.RecordEvent
	drainTimeout time.Duration
	stopped      chan struct{}
}

// Config for Dispatcher.
type Config struct {
	Publisher    Publisher
	IDGen        usecase.IDGenerator
	Observer     Observer
	Logger       zerolog.Logger
	QueueSize    int           // Number of events buffered before Publish fails
	DrainTimeout time.Duration // Time allowed to flush the queue on shutdown
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 256
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = 5 * time.Second
	}

	return &Dispatcher{
		publisher:    cfg.Publisher,
		idGen:        cfg.IDGen,
		observer:     cfg.Observer,
		logger:       cfg.Logger.With().Str("component", "event_dispatcher").Logger(),
		queue:        make(chan domain.RecordEvent, cfg.QueueSize),
		drainTimeout: cfg.DrainTimeout,
		stopped:      make(chan struct{}),
	}
}

// Publish enqueues an event. It never blocks.
func (d *Dispatcher) Publish(_ context.Context, event domain.RecordEvent) error {
	if event.ID == "" && d.idGen != nil {
		event.ID = d.idGen.Generate()
	}

	select {
	case <-d.stopped:
		return ErrStopped
	default:
	}

	select {
	case d.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start runs the publishing worker until ctx is cancelled, then flushes what
// is left in the queue.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info().Int("queue_size", cap(d.queue)).Msg("event dispatcher started")

	for {
		select {
		case <-ctx.Done():
			close(d.stopped)
			d.drain()
			d.logger.Info().Msg("event dispatcher shutting down")
			return ctx.Err()
		case event := <-d.queue:
			d.publishEvent(ctx, event)
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), d.drainTimeout)
	defer cancel()

	for {
		select {
		case event := <-d.queue:
			d.publishEvent(ctx, event)
		default:
			return
		}
	}
}

// publishEvent publishes a single event. Failures are logged and dropped.
func (d *Dispatcher) publishEvent(ctx context.Context, event domain.RecordEvent) {
	err := d.publisher.Publish(ctx, event)
	if d.observer != nil {
		d.observer.ObservePublish(event.Type, err)
	}

	if err != nil {
		d.logger.Error().
			Err(err).
			Str("event_id", event.ID).
			Str("event_type", event.Type).
			Msg("failed to publish event")
		return
	}

	d.logger.Debug().
		Str("event_id", event.ID).
		Str("event_type", event.Type).
		Msg("event published")
}

// LogPublisher is a simple publisher that logs events.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(_ context.Context, event domain.RecordEvent) error {
	p.logger.Info().
		Str("event_id", event.ID).
		Str("event_type", event.Type).
		Str("record_id", event.RecordID).
		Str("owner", event.Owner).
		Str("value", event.Value).
		Str("date", event.Date).
		Msg("record event")

	return nil
}
