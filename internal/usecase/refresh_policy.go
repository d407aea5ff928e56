package usecase

import (
	"context"
	"fmt"

	"github.com/iho/goexpense/internal/domain"
)

// MutationKind identifies a committed ledger change.
type MutationKind int

const (
	MutationAdd MutationKind = iota + 1
	MutationUpdate
	MutationDelete
)

func (k MutationKind) String() string {
	switch k {
	case MutationAdd:
		return OpAdd
	case MutationUpdate:
		return OpUpdate
	case MutationDelete:
		return OpDelete
	default:
		return "unknown"
	}
}

// Mutation describes a change that persistence has accepted. Record is the
// record after the change, or the removed record for MutationDelete.
type Mutation struct {
	Record *domain.Record
	Kind   MutationKind

	epoch uint64
}

// RefreshPolicy brings a store's derived state up to date after a mutation.
type RefreshPolicy interface {
	Refresh(ctx context.Context, store *LedgerStore, m Mutation) error
}

// Refresh policy names accepted by ParseRefreshPolicy.
const (
	RefreshReload = "reload"
	RefreshPatch  = "patch"
)

// ParseRefreshPolicy maps a configured policy name to a RefreshPolicy.
func ParseRefreshPolicy(name string) (RefreshPolicy, error) {
	switch name {
	case "", RefreshReload:
		return ReloadPolicy{}, nil
	case RefreshPatch:
		return PatchPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown refresh policy %q", name)
	}
}

// ReloadPolicy re-queries the full list after every mutation.
type ReloadPolicy struct{}

func (ReloadPolicy) Refresh(ctx context.Context, store *LedgerStore, _ Mutation) error {
	return store.Load(ctx)
}

// PatchPolicy applies the mutation to the local list without querying.
type PatchPolicy struct{}

func (PatchPolicy) Refresh(_ context.Context, store *LedgerStore, m Mutation) error {
	store.applyPatch(m)
	return nil
}
