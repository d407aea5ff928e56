package usecase

import "time"

const (
	// DefaultPersistenceTimeout bounds a single call to the record repository.
	DefaultPersistenceTimeout = 5 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// ProfileCacheTTL is how long user profiles are cached
	ProfileCacheTTL = 10 * time.Minute
)

// Mutation operation names reported to LedgerRecorder.
const (
	OpAdd    = "add"
	OpUpdate = "update"
	OpDelete = "delete"
)
