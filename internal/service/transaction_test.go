package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dkwon/balancebook/internal/domain"
)

func newTestEngine(t *testing.T) (*TransactionService, *memStore) {
	t.Helper()
	st := newMemStore()
	return NewTransactionService(st, zap.NewNop()), st
}

func seedAccount(st *memStore, userID int64, number string, balance int64) domain.Account {
	st.addUser(userID, "tester")
	return st.addAccount(domain.Account{
		UserID:        userID,
		AccountNumber: number,
		Status:        domain.AccountStatusActive,
		Balance:       balance,
		RegisteredAt:  time.Now(),
	})
}

func TestUseBalanceSuccess(t *testing.T) {
	svc, st := newTestEngine(t)
	seedAccount(st, 1, "1000000000", 10000)

	rec, err := svc.UseBalance(context.Background(), 1, "1000000000", 2000)
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionTypeUse, rec.Type)
	assert.Equal(t, domain.TransactionResultSuccess, rec.Result)
	assert.Equal(t, int64(2000), rec.Amount)
	assert.Equal(t, int64(8000), rec.BalanceSnapshot)
	assert.Len(t, rec.TransactionID, 32)
	assert.False(t, rec.TransactedAt.IsZero())

	assert.Equal(t, int64(8000), st.balance("1000000000"))
	require.Len(t, st.records(), 1)
}

func TestUseBalancePreconditions(t *testing.T) {
	tests := []struct {
		name    string
		userID  int64
		number  string
		amount  int64
		seed    func(st *memStore)
		wantErr *domain.Error
	}{
		{
			name:   "user not found",
			userID: 99, number: "1000000000", amount: 100,
			seed:    func(st *memStore) { seedAccount(st, 1, "1000000000", 1000) },
			wantErr: domain.ErrUserNotFound,
		},
		{
			name:   "account not found",
			userID: 1, number: "9999999999", amount: 100,
			seed:    func(st *memStore) { seedAccount(st, 1, "1000000000", 1000) },
			wantErr: domain.ErrAccountNotFound,
		},
		{
			name:   "account owned by someone else",
			userID: 2, number: "1000000000", amount: 100,
			seed: func(st *memStore) {
				seedAccount(st, 1, "1000000000", 1000)
				st.addUser(2, "intruder")
			},
			wantErr: domain.ErrUserAccountMismatch,
		},
		{
			name:   "account closed",
			userID: 1, number: "1000000000", amount: 100,
			seed: func(st *memStore) {
				st.addUser(1, "tester")
				closedAt := time.Now()
				st.addAccount(domain.Account{
					UserID: 1, AccountNumber: "1000000000",
					Status: domain.AccountStatusClosed, ClosedAt: &closedAt,
				})
			},
			wantErr: domain.ErrAccountClosed,
		},
		{
			name:   "amount exceeds balance",
			userID: 1, number: "1000000000", amount: 20000,
			seed:    func(st *memStore) { seedAccount(st, 1, "1000000000", 10000) },
			wantErr: domain.ErrAmountExceedsBalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st := newTestEngine(t)
			tt.seed(st)

			_, err := svc.UseBalance(context.Background(), tt.userID, tt.number, tt.amount)
			assert.ErrorIs(t, err, tt.wantErr)

			// A rejected attempt mutates nothing and writes no record.
			assert.Empty(t, st.records())
		})
	}
}

func TestUseBalanceRejectionLeavesBalanceUntouched(t *testing.T) {
	svc, st := newTestEngine(t)
	seedAccount(st, 1, "1000000000", 10000)

	_, err := svc.UseBalance(context.Background(), 1, "1000000000", 20000)
	assert.ErrorIs(t, err, domain.ErrAmountExceedsBalance)
	assert.Equal(t, int64(10000), st.balance("1000000000"))
}

func TestCancelBalanceSuccess(t *testing.T) {
	svc, st := newTestEngine(t)
	seedAccount(st, 1, "1000000000", 10000)

	used, err := svc.UseBalance(context.Background(), 1, "1000000000", 2000)
	require.NoError(t, err)
	require.Equal(t, int64(8000), st.balance("1000000000"))

	canceled, err := svc.CancelBalance(context.Background(), used.TransactionID, "1000000000", 2000)
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionTypeCancel, canceled.Type)
	assert.Equal(t, domain.TransactionResultSuccess, canceled.Result)
	assert.Equal(t, int64(2000), canceled.Amount)
	assert.Equal(t, int64(10000), canceled.BalanceSnapshot)
	assert.NotEqual(t, used.TransactionID, canceled.TransactionID)

	assert.Equal(t, int64(10000), st.balance("1000000000"))
	assert.Len(t, st.records(), 2)
}

func TestCancelBalanceMustBeFull(t *testing.T) {
	svc, st := newTestEngine(t)
	seedAccount(st, 1, "1000000000", 10000)

	used, err := svc.UseBalance(context.Background(), 1, "1000000000", 2000)
	require.NoError(t, err)

	// Partial cancellation always fails, even though the balance could absorb it.
	_, err = svc.CancelBalance(context.Background(), used.TransactionID, "1000000000", 1000)
	assert.ErrorIs(t, err, domain.ErrCancelMustBeFull)
	assert.Equal(t, int64(8000), st.balance("1000000000"))
}

func TestCancelBalanceAccountMismatch(t *testing.T) {
	svc, st := newTestEngine(t)
	seedAccount(st, 1, "1000000000", 10000)
	st.addAccount(domain.Account{
		UserID: 1, AccountNumber: "1000000001",
		Status: domain.AccountStatusActive, Balance: 5000,
	})

	used, err := svc.UseBalance(context.Background(), 1, "1000000000", 2000)
	require.NoError(t, err)

	_, err = svc.CancelBalance(context.Background(), used.TransactionID, "1000000001", 2000)
	assert.ErrorIs(t, err, domain.ErrTransactionAccountMismatch)
}

func TestCancelBalanceTooOld(t *testing.T) {
	svc, st := newTestEngine(t)
	account := seedAccount(st, 1, "1000000000", 10000)

	old := st.addTransaction(domain.Transaction{
		TransactionID:   domain.NewTransactionID(),
		Type:            domain.TransactionTypeUse,
		Result:          domain.TransactionResultSuccess,
		AccountID:       account.ID,
		Amount:          2000,
		BalanceSnapshot: 8000,
		TransactedAt:    time.Now().AddDate(0, 0, -400),
	})

	_, err := svc.CancelBalance(context.Background(), old.TransactionID, "1000000000", 2000)
	assert.ErrorIs(t, err, domain.ErrTooOldToCancel)
}

func TestCancelBalanceJustInsideWindow(t *testing.T) {
	svc, st := newTestEngine(t)
	account := seedAccount(st, 1, "1000000000", 10000)

	recent := st.addTransaction(domain.Transaction{
		TransactionID:   domain.NewTransactionID(),
		Type:            domain.TransactionTypeUse,
		Result:          domain.TransactionResultSuccess,
		AccountID:       account.ID,
		Amount:          2000,
		BalanceSnapshot: 8000,
		TransactedAt:    time.Now().AddDate(0, 0, -360),
	})

	_, err := svc.CancelBalance(context.Background(), recent.TransactionID, "1000000000", 2000)
	assert.NoError(t, err)
	assert.Equal(t, int64(12000), st.balance("1000000000"))
}

func TestCancelBalanceUnknownTransaction(t *testing.T) {
	svc, st := newTestEngine(t)
	seedAccount(st, 1, "1000000000", 10000)

	_, err := svc.CancelBalance(context.Background(), "does-not-exist", "1000000000", 2000)
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestQueryTransaction(t *testing.T) {
	svc, st := newTestEngine(t)
	seedAccount(st, 1, "1000000000", 10000)

	used, err := svc.UseBalance(context.Background(), 1, "1000000000", 2000)
	require.NoError(t, err)

	got, err := svc.QueryTransaction(context.Background(), used.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, used.TransactionID, got.TransactionID)
	assert.Equal(t, int64(8000), got.BalanceSnapshot)

	_, err = svc.QueryTransaction(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestRecordFailedUse(t *testing.T) {
	svc, st := newTestEngine(t)
	seedAccount(st, 1, "1000000000", 10000)

	err := svc.RecordFailedUse(context.Background(), "1000000000", 20000)
	require.NoError(t, err)

	recs := st.records()
	require.Len(t, recs, 1)
	assert.Equal(t, domain.TransactionTypeUse, recs[0].Type)
	assert.Equal(t, domain.TransactionResultFailure, recs[0].Result)
	assert.Equal(t, int64(20000), recs[0].Amount)
	// Snapshot records the before-state; the balance itself is untouched.
	assert.Equal(t, int64(10000), recs[0].BalanceSnapshot)
	assert.Equal(t, int64(10000), st.balance("1000000000"))
}

func TestRecordFailedCancel(t *testing.T) {
	svc, st := newTestEngine(t)
	seedAccount(st, 1, "1000000000", 10000)

	err := svc.RecordFailedCancel(context.Background(), "1000000000", 2000)
	require.NoError(t, err)

	recs := st.records()
	require.Len(t, recs, 1)
	assert.Equal(t, domain.TransactionTypeCancel, recs[0].Type)
	assert.Equal(t, domain.TransactionResultFailure, recs[0].Result)
	assert.Equal(t, int64(10000), st.balance("1000000000"))
}

func TestSequentialOperationsPreserveBalanceArithmetic(t *testing.T) {
	svc, st := newTestEngine(t)
	seedAccount(st, 1, "1000000000", 10000)
	ctx := context.Background()

	first, err := svc.UseBalance(ctx, 1, "1000000000", 3000)
	require.NoError(t, err)
	_, err = svc.UseBalance(ctx, 1, "1000000000", 2500)
	require.NoError(t, err)
	_, err = svc.CancelBalance(ctx, first.TransactionID, "1000000000", 3000)
	require.NoError(t, err)

	// 10000 - 3000 - 2500 + 3000
	assert.Equal(t, int64(7500), st.balance("1000000000"))

	// Exactly one record per attempt that reached the engine and committed.
	assert.Len(t, st.records(), 3)
}
