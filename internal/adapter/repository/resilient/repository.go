// Package resilient decorates a RecordRepository with per-call timeouts and
// exponential backoff retries of transient failures.
package resilient

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/goexpense/internal/domain"
	"github.com/iho/goexpense/internal/usecase"
)

// Config controls timeouts and retries.
type Config struct {
	Timeout         time.Duration
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Timeout:         usecase.DefaultPersistenceTimeout,
		MaxRetries:      3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}

// RetryObserver is notified of every retried attempt.
type RetryObserver interface {
	ObserveRetry(op string)
}

// Option configures a Repository.
type Option func(*Repository)

// WithObserver reports retries to o.
func WithObserver(o RetryObserver) Option {
	return func(r *Repository) { r.observer = o }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Repository) { r.logger = l.With().Str("component", "resilient_repository").Logger() }
}

// Repository implements usecase.RecordRepository on top of another one.
type Repository struct {
	next     usecase.RecordRepository
	idGen    usecase.IDGenerator
	cfg      Config
	observer RetryObserver
	logger   zerolog.Logger
}

// New wraps next. Zero fields in cfg take their DefaultConfig values.
func New(next usecase.RecordRepository, idGen usecase.IDGenerator, cfg Config, opts ...Option) *Repository {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = def.MaxInterval
	}

	r := &Repository{
		next:   next,
		idGen:  idGen,
		cfg:    cfg,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Query retries transient failures.
func (r *Repository) Query(ctx context.Context, filter usecase.RecordFilter) ([]*domain.Record, error) {
	var records []*domain.Record
	err := r.do(ctx, "query", func(ctx context.Context, _ int) error {
		var err error
		records, err = r.next.Query(ctx, filter)
		return err
	})
	return records, err
}

// Insert assigns the record ID before the first attempt so that a retry of
// an insert whose response was lost does not create a second record.
func (r *Repository) Insert(ctx context.Context, record *domain.Record) (string, error) {
	rec := record.Clone()
	if rec.ID == "" {
		rec.ID = r.idGen.Generate()
	}

	var id string
	err := r.do(ctx, "insert", func(ctx context.Context, _ int) error {
		var err error
		id, err = r.next.Insert(ctx, rec)
		return err
	})
	return id, err
}

// Update retries transient failures. Updates are idempotent.
func (r *Repository) Update(ctx context.Context, id, owner string, patch domain.RecordPatch) error {
	return r.do(ctx, "update", func(ctx context.Context, _ int) error {
		return r.next.Update(ctx, id, owner, patch)
	})
}

// Delete retries transient failures. A not-found on a retry means an earlier
// attempt removed the record.
func (r *Repository) Delete(ctx context.Context, id, owner string) error {
	return r.do(ctx, "delete", func(ctx context.Context, attempt int) error {
		err := r.next.Delete(ctx, id, owner)
		if attempt > 0 && errors.Is(err, domain.ErrRecordNotFound) {
			return nil
		}
		return err
	})
}

func (r *Repository) do(ctx context.Context, op string, fn func(ctx context.Context, attempt int) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval
	b.MaxElapsedTime = 0

	attempt := 0

	return backoff.Retry(func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		err := fn(attemptCtx, attempt)
		cancel()
		if err == nil {
			return nil
		}

		if ctx.Err() != nil || !isRetryable(err) {
			return backoff.Permanent(err)
		}

		attempt++
		if attempt > r.cfg.MaxRetries {
			return backoff.Permanent(err)
		}

		if r.observer != nil {
			r.observer.ObserveRetry(op)
		}
		r.logger.Warn().
			Err(err).
			Str("op", op).
			Int("retry", attempt).
			Msg("transient persistence error, retrying")

		return err
	}, backoff.WithContext(b, ctx))
}

func isRetryable(err error) bool {
	if errors.Is(err, domain.ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
