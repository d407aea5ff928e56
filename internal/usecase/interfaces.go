package usecase

import (
	"context"
	"time"

	"github.com/iho/goexpense/internal/domain"
)

// RecordFilter selects records in a Query.
type RecordFilter struct {
	Owner string
}

// RecordRepository is the persistence collaborator for expense records.
// Query returns records ordered by date descending, then by creation time.
type RecordRepository interface {
	Query(ctx context.Context, filter RecordFilter) ([]*domain.Record, error)
	// Insert stores the record and returns its ID. If record.ID is set it is
	// used as is and a repeated insert of the same ID is a no-op.
	Insert(ctx context.Context, record *domain.Record) (string, error)
	Update(ctx context.Context, id, owner string, patch domain.RecordPatch) error
	Delete(ctx context.Context, id, owner string) error
}

// UserRepository defines data access for registered users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Clock supplies the current time in the ledger's timezone.
type Clock interface {
	Now() time.Time
	// Today returns the current local date as YYYY-MM-DD.
	Today() string
}

// IdentityProvider streams identity changes for one session. A nil identity
// means signed out.
type IdentityProvider interface {
	// Subscribe returns a channel that is closed when ctx is done.
	Subscribe(ctx context.Context) <-chan *domain.Identity
	SignOut(ctx context.Context) error
}

// EventPublisher publishes committed record changes.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.RecordEvent) error
}

// LedgerRecorder observes ledger store activity.
type LedgerRecorder interface {
	ObserveLoad(duration time.Duration, records int, err error)
	ObserveMutation(op string, err error)
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release removes a claimed key so the request can be retried.
	Release(ctx context.Context, key string) error
}

// TokenBlocklist tracks revoked token IDs until they would have expired.
type TokenBlocklist interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
