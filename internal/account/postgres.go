package account

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

// PostgresStore persists accounts in PostgreSQL with an explicit version
// column for compare-and-swap updates.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a store backed by PostgreSQL.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `id, account_number, owner_name, owner_email, account_type,
        currency, balance, status, version, created_at, updated_at, closed_at`

// Create inserts an account row.
func (s *PostgresStore) Create(ctx context.Context, acct Account) error {
	id, err := uuid.Parse(acct.ID)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `INSERT INTO accounts (`+accountColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, acct.AccountNumber, acct.OwnerName, acct.OwnerEmail, string(acct.AccountType),
		acct.Currency, acct.Balance, string(acct.Status), acct.Version,
		acct.CreatedAt.UTC(), acct.UpdatedAt.UTC(), acct.ClosedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateNumber
		}
		return err
	}
	return nil
}

// Get fetches an account by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (Account, error) {
	acctID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, acctID)
	return scanAccount(row)
}

// GetByNumber fetches an account by its immutable account number.
func (s *PostgresStore) GetByNumber(ctx context.Context, number string) (Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_number = $1`, number)
	return scanAccount(row)
}

// SaveWithVersion writes balance and status conditioned on the version read by
// the caller. Zero affected rows means another writer committed first.
func (s *PostgresStore) SaveWithVersion(ctx context.Context, acct Account, expectedVersion int64) (Account, error) {
	acctID, err := uuid.Parse(acct.ID)
	if err != nil {
		return Account{}, ErrNotFound
	}
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx, `UPDATE accounts
        SET balance = $1, status = $2, version = version + 1, updated_at = $3, closed_at = $4
        WHERE id = $5 AND version = $6`,
		acct.Balance, string(acct.Status), now, acct.ClosedAt, acctID, expectedVersion)
	if err != nil {
		return Account{}, err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a stale version.
		if _, getErr := s.Get(ctx, acct.ID); errors.Is(getErr, ErrNotFound) {
			return Account{}, ErrNotFound
		}
		return Account{}, ErrVersionConflict
	}
	acct.Version = expectedVersion + 1
	acct.UpdatedAt = now
	return acct, nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		acct      Account
		id        uuid.UUID
		acctType  string
		status    string
		balance   decimal.Decimal
		closedAt  *time.Time
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&id, &acct.AccountNumber, &acct.OwnerName, &acct.OwnerEmail, &acctType,
		&acct.Currency, &balance, &status, &acct.Version, &createdAt, &updatedAt, &closedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	acct.ID = id.String()
	acct.AccountType = Type(acctType)
	acct.Status = Status(status)
	acct.Balance = balance
	acct.CreatedAt = createdAt.UTC()
	acct.UpdatedAt = updatedAt.UTC()
	acct.ClosedAt = closedAt
	return acct, nil
}
