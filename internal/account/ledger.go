package account

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds occurs when the balance does not cover a debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNotActive indicates a mutation was attempted on a non-ACTIVE account.
	ErrNotActive = errors.New("account not active")

	// ErrNonZeroBalance blocks closing an account that still holds funds.
	ErrNonZeroBalance = errors.New("account balance must be zero to close")

	// ErrInvalidAmount indicates a non-positive amount.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrCurrencyMismatch indicates the operation currency differs from the
	// account currency.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrInvalidTransition indicates a status change the lifecycle graph forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Ledger owns all Account state transitions. Mutations use optimistic
// concurrency: every write is conditioned on the version read at the start of
// the operation, and a conflict surfaces as ErrVersionConflict for the caller
// to retry.
type Ledger struct {
	store  Store
	logger *slog.Logger
}

// NewLedger constructs the account ledger.
func NewLedger(store Store, logger *slog.Logger) *Ledger {
	return &Ledger{store: store, logger: logger}
}

// OpenInput captures data required to open an account.
type OpenInput struct {
	OwnerName      string
	OwnerEmail     string
	AccountType    Type
	Currency       string
	InitialDeposit decimal.Decimal
	// Activate opens the account directly in ACTIVE instead of
	// PENDING_ACTIVATION.
	Activate bool
}

// Open provisions a new account with a generated account number.
func (l *Ledger) Open(ctx context.Context, input OpenInput) (Account, error) {
	if input.OwnerName == "" || input.OwnerEmail == "" {
		return Account{}, fmt.Errorf("owner name and email are required")
	}
	if !ValidType(input.AccountType) {
		return Account{}, fmt.Errorf("unknown account type %q", input.AccountType)
	}
	if input.Currency == "" {
		return Account{}, ErrCurrencyMismatch
	}
	if input.InitialDeposit.IsNegative() {
		return Account{}, ErrInvalidAmount
	}

	status := StatusPendingActivation
	if input.Activate {
		status = StatusActive
	}
	now := time.Now().UTC()
	acct := Account{
		ID:            uuid.NewString(),
		AccountNumber: generateAccountNumber(),
		OwnerName:     input.OwnerName,
		OwnerEmail:    input.OwnerEmail,
		AccountType:   input.AccountType,
		Currency:      input.Currency,
		Balance:       input.InitialDeposit,
		Status:        status,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// Regenerate on the unlikely number collision.
	for attempt := 0; ; attempt++ {
		err := l.store.Create(ctx, acct)
		if err == nil {
			break
		}
		if errors.Is(err, ErrDuplicateNumber) && attempt < 3 {
			acct.AccountNumber = generateAccountNumber()
			continue
		}
		return Account{}, err
	}

	l.logger.Info("account opened", "account_id", acct.ID, "number", acct.AccountNumber, "status", string(acct.Status))
	return acct, nil
}

// Get fetches an account by id.
func (l *Ledger) Get(ctx context.Context, id string) (Account, error) {
	return l.store.Get(ctx, id)
}

// GetByNumber fetches an account by its account number.
func (l *Ledger) GetByNumber(ctx context.Context, number string) (Account, error) {
	return l.store.GetByNumber(ctx, number)
}

// Debit removes funds from an ACTIVE account. Returns the committed version.
func (l *Ledger) Debit(ctx context.Context, accountID string, amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrInvalidAmount
	}
	acct, err := l.store.Get(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if !acct.IsActive() {
		return 0, ErrNotActive
	}
	if !acct.CanDebit(amount) {
		return 0, ErrInsufficientFunds
	}
	readVersion := acct.Version
	acct.Balance = acct.Balance.Sub(amount)
	saved, err := l.store.SaveWithVersion(ctx, acct, readVersion)
	if err != nil {
		return 0, err
	}
	return saved.Version, nil
}

// Credit adds funds to an ACTIVE account. Returns the committed version.
func (l *Ledger) Credit(ctx context.Context, accountID string, amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrInvalidAmount
	}
	acct, err := l.store.Get(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if !acct.IsActive() {
		return 0, ErrNotActive
	}
	readVersion := acct.Version
	acct.Balance = acct.Balance.Add(amount)
	saved, err := l.store.SaveWithVersion(ctx, acct, readVersion)
	if err != nil {
		return 0, err
	}
	return saved.Version, nil
}

// TransferAtomic moves funds from source to target as a single observable
// step: either both legs apply or neither. The debit leg runs first; if the
// credit leg then fails, the debit is compensated by crediting the source
// back before returning the error.
func (l *Ledger) TransferAtomic(ctx context.Context, sourceID, targetID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if sourceID == targetID {
		return fmt.Errorf("source and target must differ")
	}

	// Validate the target up-front so an inactive or missing target never
	// leaves the pipeline holding a debited source.
	target, err := l.store.Get(ctx, targetID)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}
	if !target.IsActive() {
		return fmt.Errorf("target: %w", ErrNotActive)
	}

	source, err := l.store.Get(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if source.Currency != target.Currency {
		return ErrCurrencyMismatch
	}

	if _, err := l.Debit(ctx, sourceID, amount); err != nil {
		return fmt.Errorf("source: %w", err)
	}

	if _, err := l.Credit(ctx, targetID, amount); err != nil {
		l.compensateDebit(ctx, sourceID, amount)
		return fmt.Errorf("target: %w", err)
	}

	return nil
}

// compensateDebit returns funds to the source after a failed credit leg. The
// write must land even under contention, so conflicts are retried until the
// CAS succeeds; the source row is known to exist.
func (l *Ledger) compensateDebit(ctx context.Context, sourceID string, amount decimal.Decimal) {
	for {
		acct, err := l.store.Get(ctx, sourceID)
		if err != nil {
			l.logger.Error("compensation read failed", "account_id", sourceID, "error", err)
			return
		}
		acct.Balance = acct.Balance.Add(amount)
		if _, err := l.store.SaveWithVersion(ctx, acct, acct.Version); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				continue
			}
			l.logger.Error("compensation write failed", "account_id", sourceID, "error", err)
			return
		}
		l.logger.Warn("debit compensated after failed credit leg", "account_id", sourceID, "amount", amount.String())
		return
	}
}

// Activate moves a PENDING_ACTIVATION account to ACTIVE.
func (l *Ledger) Activate(ctx context.Context, accountID string) error {
	return l.transition(ctx, accountID, StatusActive)
}

// Freeze suspends an ACTIVE account.
func (l *Ledger) Freeze(ctx context.Context, accountID string) error {
	return l.transition(ctx, accountID, StatusFrozen)
}

// Unfreeze returns a FROZEN account to ACTIVE.
func (l *Ledger) Unfreeze(ctx context.Context, accountID string) error {
	acct, err := l.store.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if acct.Status != StatusFrozen {
		return ErrInvalidTransition
	}
	return l.transition(ctx, accountID, StatusActive)
}

// MarkDormant is invoked by the inactivity collaborator.
func (l *Ledger) MarkDormant(ctx context.Context, accountID string) error {
	return l.transition(ctx, accountID, StatusDormant)
}

// Reactivate returns a DORMANT account to ACTIVE.
func (l *Ledger) Reactivate(ctx context.Context, accountID string) error {
	acct, err := l.store.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if acct.Status != StatusDormant {
		return ErrInvalidTransition
	}
	return l.transition(ctx, accountID, StatusActive)
}

// Close terminally closes an account. The balance must be zero.
func (l *Ledger) Close(ctx context.Context, accountID string) error {
	for {
		acct, err := l.store.Get(ctx, accountID)
		if err != nil {
			return err
		}
		if !CanTransition(acct.Status, StatusClosed) {
			return ErrInvalidTransition
		}
		if !acct.Balance.IsZero() {
			return ErrNonZeroBalance
		}
		now := time.Now().UTC()
		acct.Status = StatusClosed
		acct.ClosedAt = &now
		if _, err := l.store.SaveWithVersion(ctx, acct, acct.Version); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				continue
			}
			return err
		}
		l.logger.Info("account closed", "account_id", accountID)
		return nil
	}
}

func (l *Ledger) transition(ctx context.Context, accountID string, to Status) error {
	for {
		acct, err := l.store.Get(ctx, accountID)
		if err != nil {
			return err
		}
		if !CanTransition(acct.Status, to) {
			return ErrInvalidTransition
		}
		from := acct.Status
		acct.Status = to
		if _, err := l.store.SaveWithVersion(ctx, acct, acct.Version); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				continue
			}
			return err
		}
		l.logger.Info("account status changed", "account_id", accountID, "from", string(from), "to", string(to))
		return nil
	}
}

// generateAccountNumber produces an ACC- prefixed 10 digit number.
func generateAccountNumber() string {
	max := big.NewInt(10_000_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		// crypto/rand failing means the platform is broken; fall back to uuid
		// entropy rather than panic.
		return "ACC-" + uuid.NewString()[:10]
	}
	return fmt.Sprintf("ACC-%010d", n)
}
