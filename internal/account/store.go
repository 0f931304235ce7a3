package account

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates no account exists for the given identifier.
	ErrNotFound = errors.New("account not found")

	// ErrVersionConflict signals an optimistic-concurrency failure: the stored
	// version no longer matches the version read at the start of the
	// operation. Callers re-read and retry the whole read-modify-write.
	ErrVersionConflict = errors.New("account version conflict")

	// ErrDuplicateNumber indicates the generated account number already exists.
	ErrDuplicateNumber = errors.New("duplicate account number")
)

// Store is the persistence port for accounts. SaveWithVersion is a
// compare-and-swap: it writes the account only if the stored version equals
// expectedVersion, bumping Version by one on success.
type Store interface {
	Create(ctx context.Context, acct Account) error
	Get(ctx context.Context, id string) (Account, error)
	GetByNumber(ctx context.Context, number string) (Account, error)
	SaveWithVersion(ctx context.Context, acct Account, expectedVersion int64) (Account, error)
}
