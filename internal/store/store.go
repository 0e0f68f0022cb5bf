// Package store is the durable ledger behind the balance engine. The Postgres
// implementation is the production store; the engine depends only on the Store
// interface so tests can substitute an in-memory one.
package store

import (
	"context"

	"github.com/dkwon/balancebook/internal/domain"
)

// Store is the ledger contract the services run against.
//
// ApplyBalanceChange is the only balance-mutating entry point and is atomic:
// the new balance and its transaction record commit together or not at all.
// There is never a state where the balance changed without a record, or a
// SUCCESS record exists without its balance change.
type Store interface {
	GetUser(ctx context.Context, userID int64) (*domain.AccountUser, error)
	GetAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error)

	// ApplyBalanceChange persists account.Balance and inserts rec in one
	// storage transaction. rec.ID is filled on return.
	ApplyBalanceChange(ctx context.Context, account *domain.Account, rec *domain.Transaction) error

	// SaveTransaction inserts a record without touching any balance. Used for
	// FAILURE audit records only.
	SaveTransaction(ctx context.Context, rec *domain.Transaction) error

	CreateAccount(ctx context.Context, account *domain.Account) error
	CloseAccount(ctx context.Context, account *domain.Account) error
	ListAccountsByUser(ctx context.Context, userID int64) ([]domain.Account, error)
	CountAccountsByUser(ctx context.Context, userID int64) (int64, error)

	// LastAccountNumber returns the highest issued account number, or "" when
	// no account exists yet.
	LastAccountNumber(ctx context.Context) (string, error)
}
