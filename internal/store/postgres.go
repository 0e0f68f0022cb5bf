package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkwon/balancebook/internal/domain"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	db *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// Connect builds a pool from a connection string and verifies connectivity.
func Connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

func (s *Postgres) GetUser(ctx context.Context, userID int64) (*domain.AccountUser, error) {
	var u domain.AccountUser
	err := s.db.QueryRow(ctx,
		"SELECT id, name, created_at FROM account_users WHERE id = $1",
		userID).Scan(&u.ID, &u.Name, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *Postgres) GetAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	var a domain.Account
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, account_number, status, balance, registered_at, closed_at
		   FROM accounts WHERE account_number = $1`,
		accountNumber).Scan(&a.ID, &a.UserID, &a.AccountNumber, &a.Status, &a.Balance, &a.RegisteredAt, &a.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

func (s *Postgres) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	var t domain.Transaction
	err := s.db.QueryRow(ctx,
		`SELECT id, transaction_id, type, result, account_id, amount, balance_snapshot, transacted_at
		   FROM transactions WHERE transaction_id = $1`,
		transactionID).Scan(&t.ID, &t.TransactionID, &t.Type, &t.Result, &t.AccountID, &t.Amount, &t.BalanceSnapshot, &t.TransactedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}

// ApplyBalanceChange commits the balance update and its transaction record as
// one unit. The caller already holds the account's distributed lock, so no
// row-level locking is layered on top here.
func (s *Postgres) ApplyBalanceChange(ctx context.Context, account *domain.Account, rec *domain.Transaction) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		"UPDATE accounts SET balance = $1 WHERE id = $2",
		account.Balance, account.ID)
	if err != nil {
		return fmt.Errorf("balance update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}

	if err := insertTransaction(ctx, tx, rec); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

func (s *Postgres) SaveTransaction(ctx context.Context, rec *domain.Transaction) error {
	return insertTransaction(ctx, s.db, rec)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertTransaction(ctx context.Context, q rowQuerier, rec *domain.Transaction) error {
	err := q.QueryRow(ctx,
		`INSERT INTO transactions (transaction_id, type, result, account_id, amount, balance_snapshot, transacted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		rec.TransactionID, rec.Type, rec.Result, rec.AccountID, rec.Amount, rec.BalanceSnapshot, rec.TransactedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("transaction insert failed: %w", err)
	}
	return nil
}

func (s *Postgres) CreateAccount(ctx context.Context, account *domain.Account) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO accounts (user_id, account_number, status, balance, registered_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		account.UserID, account.AccountNumber, account.Status, account.Balance, account.RegisteredAt,
	).Scan(&account.ID)
	if err != nil {
		return fmt.Errorf("account insert failed: %w", err)
	}
	return nil
}

func (s *Postgres) CloseAccount(ctx context.Context, account *domain.Account) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE accounts SET status = $1, closed_at = $2 WHERE id = $3 AND status = $4",
		domain.AccountStatusClosed, account.ClosedAt, account.ID, domain.AccountStatusActive)
	if err != nil {
		return fmt.Errorf("account close failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountClosed
	}
	return nil
}

func (s *Postgres) ListAccountsByUser(ctx context.Context, userID int64) ([]domain.Account, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, account_number, status, balance, registered_at, closed_at
		   FROM accounts WHERE user_id = $1 ORDER BY id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.AccountNumber, &a.Status, &a.Balance, &a.RegisteredAt, &a.ClosedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *Postgres) CountAccountsByUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM accounts WHERE user_id = $1", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return count, nil
}

func (s *Postgres) LastAccountNumber(ctx context.Context) (string, error) {
	var number string
	err := s.db.QueryRow(ctx,
		"SELECT account_number FROM accounts ORDER BY id DESC LIMIT 1").Scan(&number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("last account number: %w", err)
	}
	return number, nil
}
