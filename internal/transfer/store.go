package transfer

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates no transaction exists for the given identifier.
	ErrNotFound = errors.New("transaction not found")

	// ErrDuplicateReference indicates the external reference already belongs
	// to another transaction. The coordinator resolves this into returning
	// the existing transaction rather than erroring to the caller.
	ErrDuplicateReference = errors.New("duplicate external reference")

	// ErrInvalidTransition indicates an update that would regress the status
	// graph. The store rejects it so a racing writer can never resurrect a
	// terminal transaction.
	ErrInvalidTransition = errors.New("invalid transaction status transition")
)

// Store is the persistence port for transactions. Update enforces the
// forward-only transition table against the stored status.
type Store interface {
	Create(ctx context.Context, txn Transaction) error
	Update(ctx context.Context, txn Transaction) (Transaction, error)
	Get(ctx context.Context, id string) (Transaction, error)
	GetByReference(ctx context.Context, reference string) (Transaction, error)
	GetByExternalReference(ctx context.Context, externalRef string) (Transaction, error)
	ListByAccount(ctx context.Context, accountID string, limit int) ([]Transaction, error)
	ListByDateRange(ctx context.Context, from, to time.Time, limit int) ([]Transaction, error)
	ListPendingReview(ctx context.Context) ([]Transaction, error)
	CountByStatus(ctx context.Context, status Status) (int64, error)
}
