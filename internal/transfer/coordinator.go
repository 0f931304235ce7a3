package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atlas-bank/atlas_core/internal/account"
	"github.com/atlas-bank/atlas_core/internal/fraud"
	"github.com/atlas-bank/atlas_core/internal/notification"
)

var (
	// ErrValidation indicates bad input, surfaced synchronously to the caller.
	ErrValidation = errors.New("validation error")

	// ErrNotPendingReview indicates a resolution attempt against a
	// transaction that is not parked for review.
	ErrNotPendingReview = errors.New("transaction is not pending review")

	// ErrNotCancellable indicates cancellation after settlement began.
	ErrNotCancellable = errors.New("transaction can no longer be cancelled")

	// ErrNotReversible indicates a reversal against a non-completed transaction.
	ErrNotReversible = errors.New("only completed transactions can be reversed")
)

const (
	reasonBlocked     = "blocked by fraud engine"
	reasonConcurrency = "concurrency retries exhausted"
)

// Coordinator orchestrates a transfer end to end: it owns every Transaction
// state transition, gates settlement on the fraud verdict, and drives the
// ledger with bounded optimistic-concurrency retries.
type Coordinator struct {
	store    Store
	ledger   *account.Ledger
	engine   *fraud.Engine
	notifier notification.Notifier
	logger   *slog.Logger

	settleAttempts int
	settleBackoff  time.Duration
}

// NewCoordinator constructs the transaction coordinator. settleAttempts and
// settleBackoff bound the CAS retry loop inside the ALLOW branch.
func NewCoordinator(store Store, ledger *account.Ledger, engine *fraud.Engine, notifier notification.Notifier, logger *slog.Logger, settleAttempts int, settleBackoff time.Duration) *Coordinator {
	if settleAttempts < 1 {
		settleAttempts = 3
	}
	if settleBackoff <= 0 {
		settleBackoff = 25 * time.Millisecond
	}
	return &Coordinator{
		store:          store,
		ledger:         ledger,
		engine:         engine,
		notifier:       notifier,
		logger:         logger,
		settleAttempts: settleAttempts,
		settleBackoff:  settleBackoff,
	}
}

// Enrichment carries the optional fraud signals accompanying a request.
type Enrichment struct {
	SourceIP  string
	DeviceID  string
	Latitude  *float64
	Longitude *float64
}

// InitiateInput captures the data needed to start a transfer.
type InitiateInput struct {
	SourceAccountID string
	TargetAccountID string
	TransactionType Type
	Amount          decimal.Decimal
	Currency        string
	Description     string
	// ExternalReference is the caller-supplied idempotency key. Re-submitting
	// the same key returns the existing transaction without a second debit.
	ExternalReference string
	Enrichment        Enrichment
}

// Initiate validates the request, creates the transaction, and runs the
// fraud-gated pipeline. Only validation problems fail synchronously; ledger
// failures after the fraud gate surface as a FAILED transaction. A repeated
// ExternalReference returns the already-known transaction.
func (c *Coordinator) Initiate(ctx context.Context, input InitiateInput) (Transaction, error) {
	if err := c.validate(ctx, input); err != nil {
		return Transaction{}, err
	}

	if input.ExternalReference != "" {
		if existing, err := c.store.GetByExternalReference(ctx, input.ExternalReference); err == nil {
			c.logger.Info("duplicate initiation returned existing transaction",
				"transaction_id", existing.ID, "external_reference", input.ExternalReference)
			return existing, nil
		} else if !errors.Is(err, ErrNotFound) {
			return Transaction{}, err
		}
	}

	txn := Transaction{
		ID:                uuid.NewString(),
		ReferenceNumber:   generateReference(),
		SourceAccountID:   input.SourceAccountID,
		TargetAccountID:   input.TargetAccountID,
		TransactionType:   input.TransactionType,
		Amount:            input.Amount,
		Currency:          input.Currency,
		Description:       input.Description,
		Status:            StatusInitiated,
		ExternalReference: input.ExternalReference,
		InitiatedAt:       time.Now().UTC(),
	}

	if err := c.store.Create(ctx, txn); err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			// A concurrent initiation with the same key won the insert.
			existing, getErr := c.store.GetByExternalReference(ctx, input.ExternalReference)
			if getErr == nil {
				return existing, nil
			}
		}
		return Transaction{}, err
	}

	c.logger.Info("transfer initiated",
		"transaction_id", txn.ID, "reference", txn.ReferenceNumber,
		"type", string(txn.TransactionType), "amount", txn.Amount.String())

	return c.runFraudGate(ctx, txn, input.Enrichment)
}

// runFraudGate advances the transaction through scoring and routes the verdict.
func (c *Coordinator) runFraudGate(ctx context.Context, txn Transaction, enrichment Enrichment) (Transaction, error) {
	txn.Status = StatusPendingFraudCheck
	txn, err := c.store.Update(ctx, txn)
	if err != nil {
		return Transaction{}, err
	}

	assessment := c.engine.Score(ctx, fraud.ScoreInput{
		TransactionID:   txn.ID,
		SourceAccountID: txn.SourceAccountID,
		TargetAccountID: txn.TargetAccountID,
		TransactionType: string(txn.TransactionType),
		Amount:          txn.Amount,
		Currency:        txn.Currency,
		SourceIP:        enrichment.SourceIP,
		DeviceID:        enrichment.DeviceID,
		Latitude:        enrichment.Latitude,
		Longitude:       enrichment.Longitude,
	})
	score := assessment.RiskScore
	txn.RiskScore = &score

	switch assessment.RecommendedAction {
	case fraud.ActionAllow:
		return c.settle(ctx, txn)
	case fraud.ActionBlock:
		return c.fail(ctx, txn, reasonBlocked)
	default: // REVIEW and REQUIRE_2FA both park for manual resolution.
		txn.Status = StatusPendingReview
		txn, err = c.store.Update(ctx, txn)
		if err != nil {
			return Transaction{}, err
		}
		c.notify(ctx, notification.KindReviewRequested, txn,
			fmt.Sprintf("transfer %s held for review (risk %.2f)", txn.ReferenceNumber, score))
		return txn, nil
	}
}

// settle executes the ledger mutation with bounded retries on version
// conflicts. Transition: PROCESSING then COMPLETED or FAILED.
func (c *Coordinator) settle(ctx context.Context, txn Transaction) (Transaction, error) {
	txn.Status = StatusProcessing
	txn, err := c.store.Update(ctx, txn)
	if err != nil {
		return Transaction{}, err
	}

	backoff := c.settleBackoff
	var lastErr error
	for attempt := 1; attempt <= c.settleAttempts; attempt++ {
		lastErr = c.moveFunds(ctx, txn)
		if lastErr == nil {
			now := time.Now().UTC()
			txn.Status = StatusCompleted
			txn.CompletedAt = &now
			txn, err = c.store.Update(ctx, txn)
			if err != nil {
				return Transaction{}, err
			}
			c.logger.Info("transfer completed", "transaction_id", txn.ID, "reference", txn.ReferenceNumber, "attempts", attempt)
			c.notify(ctx, notification.KindTransferCompleted, txn,
				fmt.Sprintf("transfer %s settled", txn.ReferenceNumber))
			return txn, nil
		}
		if !errors.Is(lastErr, account.ErrVersionConflict) {
			break
		}
		c.logger.Debug("settlement retry after version conflict",
			"transaction_id", txn.ID, "attempt", attempt)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = c.settleAttempts
		}
		backoff *= 2
	}

	return c.fail(ctx, txn, failureReason(lastErr))
}

// moveFunds performs the ledger legs for the transaction type.
func (c *Coordinator) moveFunds(ctx context.Context, txn Transaction) error {
	if TwoLegged(txn.TransactionType) {
		return c.ledger.TransferAtomic(ctx, txn.SourceAccountID, txn.TargetAccountID, txn.Amount)
	}
	if CreditsTarget(txn.TransactionType) {
		_, err := c.ledger.Credit(ctx, txn.TargetAccountID, txn.Amount)
		return err
	}
	_, err := c.ledger.Debit(ctx, txn.SourceAccountID, txn.Amount)
	return err
}

func (c *Coordinator) fail(ctx context.Context, txn Transaction, reason string) (Transaction, error) {
	now := time.Now().UTC()
	txn.Status = StatusFailed
	txn.FailedAt = &now
	txn.FailureReason = reason
	txn, err := c.store.Update(ctx, txn)
	if err != nil {
		return Transaction{}, err
	}
	c.logger.Warn("transfer failed", "transaction_id", txn.ID, "reference", txn.ReferenceNumber, "reason", reason)
	c.notify(ctx, notification.KindTransferFailed, txn,
		fmt.Sprintf("transfer %s failed: %s", txn.ReferenceNumber, reason))
	return txn, nil
}

// Resolve settles or rejects a transaction parked in PENDING_REVIEW. Approval
// re-enters the settlement path; rejection fails the transaction terminally.
func (c *Coordinator) Resolve(ctx context.Context, transactionID string, approve bool, note string) (Transaction, error) {
	txn, err := c.store.Get(ctx, transactionID)
	if err != nil {
		return Transaction{}, err
	}
	if txn.Status != StatusPendingReview {
		return Transaction{}, ErrNotPendingReview
	}

	if approve {
		c.logger.Info("review approved", "transaction_id", txn.ID, "note", note)
		return c.settle(ctx, txn)
	}

	reason := "rejected by reviewer"
	if note != "" {
		reason = fmt.Sprintf("rejected by reviewer: %s", note)
	}
	return c.fail(ctx, txn, reason)
}

// Cancel aborts a transfer that has not begun settling. Once a ledger
// mutation is underway the caller must wait for the outcome and request a
// reversal instead.
func (c *Coordinator) Cancel(ctx context.Context, transactionID string) (Transaction, error) {
	txn, err := c.store.Get(ctx, transactionID)
	if err != nil {
		return Transaction{}, err
	}
	if !CanTransition(txn.Status, StatusCancelled) {
		return Transaction{}, ErrNotCancellable
	}
	txn.Status = StatusCancelled
	txn, err = c.store.Update(ctx, txn)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return Transaction{}, ErrNotCancellable
		}
		return Transaction{}, err
	}
	c.logger.Info("transfer cancelled", "transaction_id", txn.ID)
	return txn, nil
}

// Reverse is the hook for the external reversal collaborator: it moves the
// funds back and marks the transaction REVERSED. Only COMPLETED two-legged
// transactions qualify.
func (c *Coordinator) Reverse(ctx context.Context, transactionID string) (Transaction, error) {
	txn, err := c.store.Get(ctx, transactionID)
	if err != nil {
		return Transaction{}, err
	}
	if txn.Status != StatusCompleted || !TwoLegged(txn.TransactionType) {
		return Transaction{}, ErrNotReversible
	}

	for attempt := 1; ; attempt++ {
		err = c.ledger.TransferAtomic(ctx, txn.TargetAccountID, txn.SourceAccountID, txn.Amount)
		if err == nil {
			break
		}
		if errors.Is(err, account.ErrVersionConflict) && attempt < c.settleAttempts {
			continue
		}
		return Transaction{}, fmt.Errorf("reversal: %w", err)
	}

	txn.Status = StatusReversed
	txn, err = c.store.Update(ctx, txn)
	if err != nil {
		return Transaction{}, err
	}
	c.logger.Info("transfer reversed", "transaction_id", txn.ID)
	return txn, nil
}

// GetStatus fetches a transaction by id.
func (c *Coordinator) GetStatus(ctx context.Context, transactionID string) (Transaction, error) {
	return c.store.Get(ctx, transactionID)
}

// GetByReference fetches a transaction by reference number.
func (c *Coordinator) GetByReference(ctx context.Context, reference string) (Transaction, error) {
	return c.store.GetByReference(ctx, reference)
}

// ListByAccount returns recent transactions touching the account.
func (c *Coordinator) ListByAccount(ctx context.Context, accountID string, limit int) ([]Transaction, error) {
	return c.store.ListByAccount(ctx, accountID, limit)
}

// ListByDateRange returns transactions initiated inside [from, to).
func (c *Coordinator) ListByDateRange(ctx context.Context, from, to time.Time, limit int) ([]Transaction, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: to must be after from", ErrValidation)
	}
	return c.store.ListByDateRange(ctx, from, to, limit)
}

// ListPendingReview returns transactions awaiting manual resolution.
func (c *Coordinator) ListPendingReview(ctx context.Context) ([]Transaction, error) {
	return c.store.ListPendingReview(ctx)
}

// Stats summarises transactions per outcome status.
type Stats struct {
	Completed     int64 `json:"completed"`
	Failed        int64 `json:"failed"`
	PendingReview int64 `json:"pendingReview"`
	Cancelled     int64 `json:"cancelled"`
	Reversed      int64 `json:"reversed"`
}

// GetStats counts transactions by outcome.
func (c *Coordinator) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	counts := []struct {
		status Status
		dest   *int64
	}{
		{StatusCompleted, &stats.Completed},
		{StatusFailed, &stats.Failed},
		{StatusPendingReview, &stats.PendingReview},
		{StatusCancelled, &stats.Cancelled},
		{StatusReversed, &stats.Reversed},
	}
	for _, cnt := range counts {
		n, err := c.store.CountByStatus(ctx, cnt.status)
		if err != nil {
			return Stats{}, err
		}
		*cnt.dest = n
	}
	return stats, nil
}

func (c *Coordinator) validate(ctx context.Context, input InitiateInput) error {
	if !input.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if input.Currency == "" {
		return fmt.Errorf("%w: currency is required", ErrValidation)
	}
	if !ValidType(input.TransactionType) {
		return fmt.Errorf("%w: unknown transaction type %q", ErrValidation, input.TransactionType)
	}

	if TwoLegged(input.TransactionType) {
		if input.SourceAccountID == "" || input.TargetAccountID == "" {
			return fmt.Errorf("%w: source and target accounts are required", ErrValidation)
		}
		if input.SourceAccountID == input.TargetAccountID {
			return fmt.Errorf("%w: source and target must differ", ErrValidation)
		}
	} else if CreditsTarget(input.TransactionType) {
		if input.TargetAccountID == "" {
			return fmt.Errorf("%w: target account is required", ErrValidation)
		}
	} else if input.SourceAccountID == "" {
		return fmt.Errorf("%w: source account is required", ErrValidation)
	}

	// Referenced accounts must exist before any transaction record is created.
	for _, id := range []string{input.SourceAccountID, input.TargetAccountID} {
		if id == "" {
			continue
		}
		if _, err := c.ledger.Get(ctx, id); err != nil {
			if errors.Is(err, account.ErrNotFound) {
				return fmt.Errorf("%w: account %s not found", ErrValidation, id)
			}
			return err
		}
	}
	return nil
}

func (c *Coordinator) notify(ctx context.Context, kind string, txn Transaction, body string) {
	if c.notifier == nil {
		return
	}
	_ = c.notifier.Send(ctx, notification.Message{Kind: kind, Reference: txn.ReferenceNumber, Body: body})
}

func failureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, account.ErrInsufficientFunds):
		return "insufficient funds"
	case errors.Is(err, account.ErrNotActive):
		return "account not active"
	case errors.Is(err, account.ErrVersionConflict):
		return reasonConcurrency
	case errors.Is(err, account.ErrCurrencyMismatch):
		return "currency mismatch"
	case errors.Is(err, account.ErrNotFound):
		return "account not found"
	default:
		return err.Error()
	}
}

// generateReference produces a TXN- prefixed human readable reference number.
func generateReference() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("TXN-%s-%s", time.Now().UTC().Format("20060102"), id[:12])
}
