package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore persists transactions in PostgreSQL. A unique index on
// external_reference is the durable idempotency guard.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a store backed by PostgreSQL.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const txnColumns = `id, reference_number, source_account_id, target_account_id,
        transaction_type, amount, currency, description, status, risk_score,
        external_reference, failure_reason, initiated_at, completed_at, failed_at`

// Create inserts a transaction row.
func (s *PostgresStore) Create(ctx context.Context, txn Transaction) error {
	id, err := uuid.Parse(txn.ID)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `INSERT INTO transactions (`+txnColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		id, txn.ReferenceNumber, nullable(txn.SourceAccountID), nullable(txn.TargetAccountID),
		string(txn.TransactionType), txn.Amount, txn.Currency, nullable(txn.Description),
		string(txn.Status), txn.RiskScore, nullable(txn.ExternalReference),
		nullable(txn.FailureReason), txn.InitiatedAt.UTC(), txn.CompletedAt, txn.FailedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

// Update writes the mutable columns, refusing any status regression at the
// database level by matching the allowed prior statuses.
func (s *PostgresStore) Update(ctx context.Context, txn Transaction) (Transaction, error) {
	id, err := uuid.Parse(txn.ID)
	if err != nil {
		return Transaction{}, ErrNotFound
	}

	current, err := s.Get(ctx, txn.ID)
	if err != nil {
		return Transaction{}, err
	}
	// Terminal transactions are immutable, even field edits under the same
	// status.
	if Terminal(current.Status) {
		return Transaction{}, ErrInvalidTransition
	}
	if current.Status != txn.Status && !CanTransition(current.Status, txn.Status) {
		return Transaction{}, ErrInvalidTransition
	}

	tag, err := s.db.Exec(ctx, `UPDATE transactions
        SET status = $1, risk_score = $2, failure_reason = $3, completed_at = $4, failed_at = $5
        WHERE id = $6 AND status = $7`,
		string(txn.Status), txn.RiskScore, nullable(txn.FailureReason),
		txn.CompletedAt, txn.FailedAt, id, string(current.Status))
	if err != nil {
		return Transaction{}, err
	}
	if tag.RowsAffected() == 0 {
		// A concurrent writer moved the status between read and write.
		return Transaction{}, ErrInvalidTransition
	}
	return txn, nil
}

// Get fetches a transaction by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (Transaction, error) {
	txnID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, ErrNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+txnColumns+` FROM transactions WHERE id = $1`, txnID)
	return scanTransaction(row)
}

// GetByReference fetches a transaction by its reference number.
func (s *PostgresStore) GetByReference(ctx context.Context, reference string) (Transaction, error) {
	row := s.db.QueryRow(ctx, `SELECT `+txnColumns+` FROM transactions WHERE reference_number = $1`, reference)
	return scanTransaction(row)
}

// GetByExternalReference fetches a transaction by the caller-supplied
// idempotency key.
func (s *PostgresStore) GetByExternalReference(ctx context.Context, externalRef string) (Transaction, error) {
	row := s.db.QueryRow(ctx, `SELECT `+txnColumns+` FROM transactions WHERE external_reference = $1`, externalRef)
	return scanTransaction(row)
}

// ListByAccount returns recent transactions touching the account.
func (s *PostgresStore) ListByAccount(ctx context.Context, accountID string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `SELECT `+txnColumns+` FROM transactions
        WHERE source_account_id = $1 OR target_account_id = $1
        ORDER BY initiated_at DESC LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListByDateRange returns transactions initiated in [from, to), newest first.
func (s *PostgresStore) ListByDateRange(ctx context.Context, from, to time.Time, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `SELECT `+txnColumns+` FROM transactions
        WHERE initiated_at >= $1 AND initiated_at < $2
        ORDER BY initiated_at DESC LIMIT $3`, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListPendingReview returns transactions parked for manual review, oldest first.
func (s *PostgresStore) ListPendingReview(ctx context.Context) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, `SELECT `+txnColumns+` FROM transactions
        WHERE status = $1 ORDER BY initiated_at ASC`, string(StatusPendingReview))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// CountByStatus counts transactions in the given status.
func (s *PostgresStore) CountByStatus(ctx context.Context, status Status) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE status = $1`, string(status)).Scan(&n)
	return n, err
}

func collectTransactions(rows pgx.Rows) ([]Transaction, error) {
	var out []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		txn         Transaction
		id          uuid.UUID
		source      *string
		target      *string
		txnType     string
		amount      decimal.Decimal
		description *string
		status      string
		extRef      *string
		failReason  *string
		initiatedAt time.Time
	)
	err := row.Scan(&id, &txn.ReferenceNumber, &source, &target, &txnType, &amount,
		&txn.Currency, &description, &status, &txn.RiskScore, &extRef, &failReason,
		&initiatedAt, &txn.CompletedAt, &txn.FailedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}
	txn.ID = id.String()
	txn.TransactionType = Type(txnType)
	txn.Amount = amount
	txn.Status = Status(status)
	txn.InitiatedAt = initiatedAt.UTC()
	if source != nil {
		txn.SourceAccountID = *source
	}
	if target != nil {
		txn.TargetAccountID = *target
	}
	if description != nil {
		txn.Description = *description
	}
	if extRef != nil {
		txn.ExternalReference = *extRef
	}
	if failReason != nil {
		txn.FailureReason = *failReason
	}
	return txn, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
