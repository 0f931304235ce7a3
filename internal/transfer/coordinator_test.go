package transfer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atlas-bank/atlas_core/internal/account"
	"github.com/atlas-bank/atlas_core/internal/fraud"
	"github.com/atlas-bank/atlas_core/internal/logging"
)

type testEnv struct {
	coordinator *Coordinator
	store       Store
	ledger      *account.Ledger
	accounts    account.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithAccounts(t, account.NewMemoryStore())
}

func newTestEnvWithAccounts(t *testing.T, accounts account.Store) *testEnv {
	t.Helper()
	logger := logging.Discard()
	ledger := account.NewLedger(accounts, logger)
	engine := fraud.NewEngine(nil, fraud.NewMemoryVelocityTracker(), 2*time.Second, logger)
	store := NewMemoryStore()
	coordinator := NewCoordinator(store, ledger, engine, nil, logger, 3, time.Millisecond)
	return &testEnv{coordinator: coordinator, store: store, ledger: ledger, accounts: accounts}
}

func (e *testEnv) openActive(t *testing.T, balance int64) account.Account {
	t.Helper()
	acct, err := e.ledger.Open(context.Background(), account.OpenInput{
		OwnerName:      "Test Owner",
		OwnerEmail:     "owner@example.com",
		AccountType:    account.TypeChecking,
		Currency:       "USD",
		InitialDeposit: decimal.NewFromInt(balance),
		Activate:       true,
	})
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	return acct
}

func (e *testEnv) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	acct, err := e.ledger.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return acct.Balance
}

func TestInitiateLowRiskCompletes(t *testing.T) {
	env := newTestEnv(t)
	src := env.openActive(t, 1000)
	dst := env.openActive(t, 0)

	txn, err := env.coordinator.Initiate(context.Background(), InitiateInput{
		SourceAccountID: src.ID,
		TargetAccountID: dst.ID,
		TransactionType: TypeInternalTransfer,
		Amount:          decimal.NewFromInt(100),
		Currency:        "USD",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if txn.Status != StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", txn.Status)
	}
	if txn.RiskScore == nil {
		t.Fatal("risk score not recorded")
	}
	if txn.CompletedAt == nil {
		t.Fatal("completedAt not set")
	}
	if got := env.balance(t, src.ID); !got.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("source balance = %s, want 900", got)
	}
	if got := env.balance(t, dst.ID); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("target balance = %s, want 100", got)
	}
}

func TestInitiateElevatedRiskParksForReview(t *testing.T) {
	env := newTestEnv(t)
	src := env.openActive(t, 50_000)
	dst := env.openActive(t, 0)

	txn, err := env.coordinator.Initiate(context.Background(), InitiateInput{
		SourceAccountID: src.ID,
		TargetAccountID: dst.ID,
		TransactionType: TypeInternalTransfer,
		Amount:          decimal.NewFromInt(20_000),
		Currency:        "USD",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if txn.Status != StatusPendingReview {
		t.Fatalf("status = %s, want PENDING_REVIEW", txn.Status)
	}
	// Funds must not move until a reviewer approves.
	if got := env.balance(t, src.ID); !got.Equal(decimal.NewFromInt(50_000)) {
		t.Fatalf("source balance moved while pending review: %s", got)
	}

	parked, err := env.coordinator.ListPendingReview(context.Background())
	if err != nil {
		t.Fatalf("list pending review: %v", err)
	}
	if len(parked) != 1 || parked[0].ID != txn.ID {
		t.Fatalf("pending review list = %+v, want the parked transaction", parked)
	}
}

func TestResolveApproveSettles(t *testing.T) {
	env := newTestEnv(t)
	src := env.openActive(t, 50_000)
	dst := env.openActive(t, 0)

	txn, err := env.coordinator.Initiate(context.Background(), InitiateInput{
		SourceAccountID: src.ID,
		TargetAccountID: dst.ID,
		TransactionType: TypeInternalTransfer,
		Amount:          decimal.NewFromInt(20_000),
		Currency:        "USD",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	resolved, err := env.coordinator.Resolve(context.Background(), txn.ID, true, "verified with customer")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", resolved.Status)
	}
	if got := env.balance(t, dst.ID); !got.Equal(decimal.NewFromInt(20_000)) {
		t.Fatalf("target balance = %s, want 20000", got)
	}
}

func TestResolveRejectFailsTerminally(t *testing.T) {
	env := newTestEnv(t)
	src := env.openActive(t, 50_000)
	dst := env.openActive(t, 0)

	txn, err := env.coordinator.Initiate(context.Background(), InitiateInput{
		SourceAccountID: src.ID,
		TargetAccountID: dst.ID,
		TransactionType: TypeInternalTransfer,
		Amount:          decimal.NewFromInt(20_000),
		Currency:        "USD",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	rejected, err := env.coordinator.Resolve(context.Background(), txn.ID, false, "mismatched beneficiary")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rejected.Status != StatusFailed {
		t.Fatalf("status = %s, want FAILED", rejected.Status)
	}
	if rejected.FailureReason != "rejected by reviewer: mismatched beneficiary" {
		t.Fatalf("failure reason = %q", rejected.FailureReason)
	}
	if got := env.balance(t, src.ID); !got.Equal(decimal.NewFromInt(50_000)) {
		t.Fatalf("source balance changed on rejection: %s", got)
	}

	// Terminal: a second resolution must be refused.
	if _, err := env.coordinator.Resolve(context.Background(), txn.ID, true, ""); !errors.Is(err, ErrNotPendingReview) {
		t.Fatalf("resolve after rejection = %v, want ErrNotPendingReview", err)
	}
}

func TestInitiateCriticalRiskBlocked(t *testing.T) {
	env := newTestEnv(t)
	src := env.openActive(t, 100_000)
	dst := env.openActive(t, 0)

	txn, err := env.coordinator.Initiate(context.Background(), InitiateInput{
		SourceAccountID: src.ID,
		TargetAccountID: dst.ID,
		TransactionType: TypeInternalTransfer,
		Amount:          decimal.NewFromInt(60_000),
		Currency:        "USD",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if txn.Status != StatusFailed {
		t.Fatalf("status = %s, want FAILED", txn.Status)
	}
	if txn.FailureReason != "blocked by fraud engine" {
		t.Fatalf("failure reason = %q", txn.FailureReason)
	}
	if got := env.balance(t, src.ID); !got.Equal(decimal.NewFromInt(100_000)) {
		t.Fatalf("source balance changed on blocked transfer: %s", got)
	}
}

func TestInitiateIdempotentReplay(t *testing.T) {
	env := newTestEnv(t)
	src := env.openActive(t, 1000)
	dst := env.openActive(t, 0)

	input := InitiateInput{
		SourceAccountID:   src.ID,
		TargetAccountID:   dst.ID,
		TransactionType:   TypeInternalTransfer,
		Amount:            decimal.NewFromInt(100),
		Currency:          "USD",
		ExternalReference: "client-key-7781",
	}

	first, err := env.coordinator.Initiate(context.Background(), input)
	if err != nil {
		t.Fatalf("first initiate: %v", err)
	}
	second, err := env.coordinator.Initiate(context.Background(), input)
	if err != nil {
		t.Fatalf("replay initiate: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay created a new transaction: %s vs %s", second.ID, first.ID)
	}
	// The debit must have landed exactly once.
	if got := env.balance(t, src.ID); !got.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("source balance = %s, want 900", got)
	}
}

func TestInitiateInsufficientFundsFails(t *testing.T) {
	env := newTestEnv(t)
	src := env.openActive(t, 50)
	dst := env.openActive(t, 0)

	txn, err := env.coordinator.Initiate(context.Background(), InitiateInput{
		SourceAccountID: src.ID,
		TargetAccountID: dst.ID,
		TransactionType: TypeInternalTransfer,
		Amount:          decimal.NewFromInt(100),
		Currency:        "USD",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if txn.Status != StatusFailed {
		t.Fatalf("status = %s, want FAILED", txn.Status)
	}
	if txn.FailureReason != "insufficient funds" {
		t.Fatalf("failure reason = %q", txn.FailureReason)
	}
	if got := env.balance(t, src.ID); !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("source balance = %s, want 50", got)
	}
}

func TestInitiateValidation(t *testing.T) {
	env := newTestEnv(t)
	src := env.openActive(t, 1000)
	dst := env.openActive(t, 0)

	cases := []struct {
		name  string
		input InitiateInput
	}{
		{"zero amount", InitiateInput{
			SourceAccountID: src.ID, TargetAccountID: dst.ID,
			TransactionType: TypeInternalTransfer, Amount: decimal.Zero, Currency: "USD",
		}},
		{"negative amount", InitiateInput{
			SourceAccountID: src.ID, TargetAccountID: dst.ID,
			TransactionType: TypeInternalTransfer, Amount: decimal.NewFromInt(-5), Currency: "USD",
		}},
		{"missing currency", InitiateInput{
			SourceAccountID: src.ID, TargetAccountID: dst.ID,
			TransactionType: TypeInternalTransfer, Amount: decimal.NewFromInt(10),
		}},
		{"unknown type", InitiateInput{
			SourceAccountID: src.ID, TargetAccountID: dst.ID,
			TransactionType: Type("WIRE"), Amount: decimal.NewFromInt(10), Currency: "USD",
		}},
		{"same account", InitiateInput{
			SourceAccountID: src.ID, TargetAccountID: src.ID,
			TransactionType: TypeInternalTransfer, Amount: decimal.NewFromInt(10), Currency: "USD",
		}},
		{"missing target", InitiateInput{
			SourceAccountID: src.ID,
			TransactionType: TypeInternalTransfer, Amount: decimal.NewFromInt(10), Currency: "USD",
		}},
		{"unknown source", InitiateInput{
			SourceAccountID: "no-such-account", TargetAccountID: dst.ID,
			TransactionType: TypeInternalTransfer, Amount: decimal.NewFromInt(10), Currency: "USD",
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.coordinator.Initiate(context.Background(), tc.input); !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}

	// No transaction record may exist for rejected input.
	for _, status := range []Status{StatusInitiated, StatusFailed} {
		n, err := env.store.CountByStatus(context.Background(), status)
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if n != 0 {
			t.Fatalf("found %d %s transactions after rejected input", n, status)
		}
	}
}

func TestCancelBeforeSettlement(t *testing.T) {
	env := newTestEnv(t)
	src := env.openActive(t, 50_000)
	dst := env.openActive(t, 0)

	parked, err := env.coordinator.Initiate(context.Background(), InitiateInput{
		SourceAccountID: src.ID,
		TargetAccountID: dst.ID,
		TransactionType: TypeInternalTransfer,
		Amount:          decimal.NewFromInt(20_000),
		Currency:        "USD",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	cancelled, err := env.coordinator.Cancel(context.Background(), parked.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", cancelled.Status)
	}

	completed, err := env.coordinator.Initiate(context.Background(), InitiateInput{
		SourceAccountID: src.ID,
		TargetAccountID: dst.ID,
		TransactionType: TypeInternalTransfer,
		Amount:          decimal.NewFromInt(100),
		Currency:        "USD",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := env.coordinator.Cancel(context.Background(), completed.ID); !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("cancel completed transfer = %v, want ErrNotCancellable", err)
	}
}

func TestReverseCompletedTransfer(t *testing.T) {
	env := newTestEnv(t)
	src := env.openActive(t, 1000)
	dst := env.openActive(t, 0)

	txn, err := env.coordinator.Initiate(context.Background(), InitiateInput{
		SourceAccountID: src.ID,
		TargetAccountID: dst.ID,
		TransactionType: TypeInternalTransfer,
		Amount:          decimal.NewFromInt(300),
		Currency:        "USD",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	reversed, err := env.coordinator.Reverse(context.Background(), txn.ID)
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if reversed.Status != StatusReversed {
		t.Fatalf("status = %s, want REVERSED", reversed.Status)
	}
	if got := env.balance(t, src.ID); !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("source balance = %s, want 1000", got)
	}
	if got := env.balance(t, dst.ID); !got.IsZero() {
		t.Fatalf("target balance = %s, want 0", got)
	}

	if _, err := env.coordinator.Reverse(context.Background(), txn.ID); !errors.Is(err, ErrNotReversible) {
		t.Fatalf("second reverse = %v, want ErrNotReversible", err)
	}
}

func TestSingleLegDepositAndWithdrawal(t *testing.T) {
	env := newTestEnv(t)
	acct := env.openActive(t, 500)

	dep, err := env.coordinator.Initiate(context.Background(), InitiateInput{
		TargetAccountID: acct.ID,
		TransactionType: TypeDeposit,
		Amount:          decimal.NewFromInt(200),
		Currency:        "USD",
	})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if dep.Status != StatusCompleted {
		t.Fatalf("deposit status = %s, want COMPLETED", dep.Status)
	}
	if got := env.balance(t, acct.ID); !got.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("balance after deposit = %s, want 700", got)
	}

	wd, err := env.coordinator.Initiate(context.Background(), InitiateInput{
		SourceAccountID: acct.ID,
		TransactionType: TypeWithdrawal,
		Amount:          decimal.NewFromInt(150),
		Currency:        "USD",
	})
	if err != nil {
		t.Fatalf("withdrawal: %v", err)
	}
	if wd.Status != StatusCompleted {
		t.Fatalf("withdrawal status = %s, want COMPLETED", wd.Status)
	}
	if got := env.balance(t, acct.ID); !got.Equal(decimal.NewFromInt(550)) {
		t.Fatalf("balance after withdrawal = %s, want 550", got)
	}
}

// conflictingStore injects version conflicts into the first n SaveWithVersion
// calls to exercise the coordinator's bounded retry.
type conflictingStore struct {
	account.Store
	mu        sync.Mutex
	conflicts int
}

func (s *conflictingStore) SaveWithVersion(ctx context.Context, acct account.Account, expectedVersion int64) (account.Account, error) {
	s.mu.Lock()
	inject := s.conflicts > 0
	if inject {
		s.conflicts--
	}
	s.mu.Unlock()
	if inject {
		return account.Account{}, account.ErrVersionConflict
	}
	return s.Store.SaveWithVersion(ctx, acct, expectedVersion)
}

func TestSettleRetriesVersionConflict(t *testing.T) {
	inner := account.NewMemoryStore()
	store := &conflictingStore{Store: inner, conflicts: 2}
	env := newTestEnvWithAccounts(t, store)
	src := env.openActive(t, 1000)
	dst := env.openActive(t, 0)

	txn, err := env.coordinator.Initiate(context.Background(), InitiateInput{
		SourceAccountID: src.ID,
		TargetAccountID: dst.ID,
		TransactionType: TypeInternalTransfer,
		Amount:          decimal.NewFromInt(100),
		Currency:        "USD",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if txn.Status != StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED after retries", txn.Status)
	}
	if got := env.balance(t, src.ID); !got.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("source balance = %s, want 900", got)
	}
}

func TestSettleExhaustedRetriesFails(t *testing.T) {
	inner := account.NewMemoryStore()
	store := &conflictingStore{Store: inner, conflicts: 1000}
	env := newTestEnvWithAccounts(t, store)

	// Open accounts directly against the inner store so the injected
	// conflicts only hit the settlement path.
	ledger := account.NewLedger(inner, logging.Discard())
	open := func(balance int64) account.Account {
		acct, err := ledger.Open(context.Background(), account.OpenInput{
			OwnerName:      "Test Owner",
			OwnerEmail:     "owner@example.com",
			AccountType:    account.TypeChecking,
			Currency:       "USD",
			InitialDeposit: decimal.NewFromInt(balance),
			Activate:       true,
		})
		if err != nil {
			t.Fatalf("open account: %v", err)
		}
		return acct
	}
	src := open(1000)
	dst := open(0)

	txn, err := env.coordinator.Initiate(context.Background(), InitiateInput{
		SourceAccountID: src.ID,
		TargetAccountID: dst.ID,
		TransactionType: TypeInternalTransfer,
		Amount:          decimal.NewFromInt(100),
		Currency:        "USD",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if txn.Status != StatusFailed {
		t.Fatalf("status = %s, want FAILED", txn.Status)
	}
	if txn.FailureReason != "concurrency retries exhausted" {
		t.Fatalf("failure reason = %q", txn.FailureReason)
	}
	if got := env.balance(t, src.ID); !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("source balance = %s, want 1000", got)
	}
}

// erroringScorer simulates an unreachable scoring backend.
type erroringScorer struct{}

func (erroringScorer) Score(context.Context, fraud.ScoreInput) (float64, error) {
	return 0, fraud.ErrScorerUnavailable
}

func TestDegradedScoringStillSettles(t *testing.T) {
	logger := logging.Discard()
	accounts := account.NewMemoryStore()
	ledger := account.NewLedger(accounts, logger)
	engine := fraud.NewEngine(erroringScorer{}, fraud.NewMemoryVelocityTracker(), 50*time.Millisecond, logger)
	store := NewMemoryStore()
	coordinator := NewCoordinator(store, ledger, engine, nil, logger, 3, time.Millisecond)

	open := func(balance int64) account.Account {
		acct, err := ledger.Open(context.Background(), account.OpenInput{
			OwnerName:      "Test Owner",
			OwnerEmail:     "owner@example.com",
			AccountType:    account.TypeChecking,
			Currency:       "USD",
			InitialDeposit: decimal.NewFromInt(balance),
			Activate:       true,
		})
		if err != nil {
			t.Fatalf("open account: %v", err)
		}
		return acct
	}
	src := open(1000)
	dst := open(0)

	txn, err := coordinator.Initiate(context.Background(), InitiateInput{
		SourceAccountID: src.ID,
		TargetAccountID: dst.ID,
		TransactionType: TypeInternalTransfer,
		Amount:          decimal.NewFromInt(100),
		Currency:        "USD",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if txn.Status != StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED under degraded scoring", txn.Status)
	}
}

func TestManyDepositsDoNotInflateEachOthersRisk(t *testing.T) {
	env := newTestEnv(t)

	// Deposits carry no source account; they must not pool into a shared
	// velocity bucket that flags unrelated customers for review.
	for i := 0; i < 12; i++ {
		acct := env.openActive(t, 0)
		txn, err := env.coordinator.Initiate(context.Background(), InitiateInput{
			TargetAccountID: acct.ID,
			TransactionType: TypeDeposit,
			Amount:          decimal.NewFromInt(10),
			Currency:        "USD",
		})
		if err != nil {
			t.Fatalf("deposit %d: %v", i, err)
		}
		if txn.Status != StatusCompleted {
			t.Fatalf("deposit %d status = %s (risk %v), want COMPLETED", i, txn.Status, txn.RiskScore)
		}
	}
}

func TestTerminalTransactionsAreImmutable(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	txn := Transaction{
		ID:              uuid.NewString(),
		ReferenceNumber: "TXN-20260827-IMMUTABLE",
		SourceAccountID: "src",
		TargetAccountID: "dst",
		TransactionType: TypeInternalTransfer,
		Amount:          decimal.NewFromInt(5),
		Currency:        "USD",
		Status:          StatusFailed,
		InitiatedAt:     time.Now().UTC(),
	}
	if err := store.Create(ctx, txn); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Even a same-status write must be refused once terminal.
	txn.Description = "edited after the fact"
	if _, err := store.Update(ctx, txn); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("update of FAILED transaction = %v, want ErrInvalidTransition", err)
	}
	txn.Status = StatusProcessing
	if _, err := store.Update(ctx, txn); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("resurrection of FAILED transaction = %v, want ErrInvalidTransition", err)
	}
}

func TestListByDateRange(t *testing.T) {
	env := newTestEnv(t)
	src := env.openActive(t, 1000)
	dst := env.openActive(t, 0)

	before := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		if _, err := env.coordinator.Initiate(context.Background(), InitiateInput{
			SourceAccountID: src.ID,
			TargetAccountID: dst.ID,
			TransactionType: TypeInternalTransfer,
			Amount:          decimal.NewFromInt(10),
			Currency:        "USD",
		}); err != nil {
			t.Fatalf("initiate: %v", err)
		}
	}
	after := time.Now().UTC().Add(time.Minute)

	txns, err := env.coordinator.ListByDateRange(context.Background(), before, after, 0)
	if err != nil {
		t.Fatalf("list by date range: %v", err)
	}
	if len(txns) != 3 {
		t.Fatalf("window returned %d transactions, want 3", len(txns))
	}

	past, err := env.coordinator.ListByDateRange(context.Background(), before.Add(-time.Hour), before, 0)
	if err != nil {
		t.Fatalf("list past window: %v", err)
	}
	if len(past) != 0 {
		t.Fatalf("past window returned %d transactions, want 0", len(past))
	}

	if _, err := env.coordinator.ListByDateRange(context.Background(), after, before, 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("inverted window = %v, want ErrValidation", err)
	}
}

func TestGetStatsCountsOutcomes(t *testing.T) {
	env := newTestEnv(t)
	src := env.openActive(t, 10_000)
	dst := env.openActive(t, 0)

	for i := 0; i < 3; i++ {
		if _, err := env.coordinator.Initiate(context.Background(), InitiateInput{
			SourceAccountID: src.ID,
			TargetAccountID: dst.ID,
			TransactionType: TypeInternalTransfer,
			Amount:          decimal.NewFromInt(10),
			Currency:        "USD",
		}); err != nil {
			t.Fatalf("initiate: %v", err)
		}
	}
	if _, err := env.coordinator.Initiate(context.Background(), InitiateInput{
		SourceAccountID: src.ID,
		TargetAccountID: dst.ID,
		TransactionType: TypeInternalTransfer,
		Amount:          decimal.NewFromInt(60_000),
		Currency:        "USD",
	}); err != nil {
		t.Fatalf("initiate blocked: %v", err)
	}

	stats, err := env.coordinator.GetStats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Completed != 3 {
		t.Fatalf("completed = %d, want 3", stats.Completed)
	}
	if stats.Failed != 1 {
		t.Fatalf("failed = %d, want 1", stats.Failed)
	}
}

func TestGetByReference(t *testing.T) {
	env := newTestEnv(t)
	src := env.openActive(t, 1000)
	dst := env.openActive(t, 0)

	txn, err := env.coordinator.Initiate(context.Background(), InitiateInput{
		SourceAccountID: src.ID,
		TargetAccountID: dst.ID,
		TransactionType: TypeInternalTransfer,
		Amount:          decimal.NewFromInt(10),
		Currency:        "USD",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	found, err := env.coordinator.GetByReference(context.Background(), txn.ReferenceNumber)
	if err != nil {
		t.Fatalf("get by reference: %v", err)
	}
	if found.ID != txn.ID {
		t.Fatalf("lookup returned %s, want %s", found.ID, txn.ID)
	}
}
