package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/dkwon/balancebook/internal/domain"
	"github.com/dkwon/balancebook/internal/store"
)

// cancelWindow is how long after a USE transaction a cancellation is accepted.
const cancelWindow = 1 // years

var transactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "balance_transactions_total",
	Help: "Transaction records written, labeled by type and result",
}, []string{"type", "result"})

// TransactionService is the balance state machine. It validates and applies
// USE/CANCEL operations and writes exactly one transaction record per attempt
// that reaches it and mutates state.
//
// It performs no locking itself: callers must serialize operations per account
// number (see LockedTransactionService).
type TransactionService struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewTransactionService(s store.Store, logger *zap.Logger) *TransactionService {
	return &TransactionService{store: s, logger: logger, now: time.Now}
}

// UseBalance debits amount from the account and records the transaction.
//
// Preconditions fail fast, in order: user exists, account exists, account
// belongs to the user, account is active, amount does not exceed the balance.
// A precondition failure mutates nothing and writes no record.
func (s *TransactionService) UseBalance(ctx context.Context, userID int64, accountNumber string, amount int64) (*domain.Transaction, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	account, err := s.store.GetAccountByNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}

	if err := validateUseBalance(user, account, amount); err != nil {
		return nil, err
	}

	if err := account.UseBalance(amount); err != nil {
		return nil, err
	}

	rec := s.newTransaction(domain.TransactionTypeUse, domain.TransactionResultSuccess, account, amount)
	if err := s.store.ApplyBalanceChange(ctx, account, rec); err != nil {
		return nil, fmt.Errorf("use balance: %w", err)
	}

	transactionsTotal.WithLabelValues(string(rec.Type), string(rec.Result)).Inc()
	s.logger.Info("balance used",
		zap.String("account_number", accountNumber),
		zap.Int64("amount", amount),
		zap.Int64("balance", account.Balance),
		zap.String("transaction_id", rec.TransactionID))

	return rec, nil
}

func validateUseBalance(user *domain.AccountUser, account *domain.Account, amount int64) error {
	if user.ID != account.UserID {
		return domain.ErrUserAccountMismatch
	}
	if account.Status != domain.AccountStatusActive {
		return domain.ErrAccountClosed
	}
	if amount > account.Balance {
		return domain.ErrAmountExceedsBalance
	}
	return nil
}

// CancelBalance credits back a previously used amount and records the
// cancellation. Only full cancellation of a transaction less than a year old
// is allowed, and only against the account the original transaction debited.
func (s *TransactionService) CancelBalance(ctx context.Context, transactionID, accountNumber string, amount int64) (*domain.Transaction, error) {
	original, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	account, err := s.store.GetAccountByNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}

	if err := s.validateCancelBalance(original, account, amount); err != nil {
		return nil, err
	}

	if err := account.CancelBalance(amount); err != nil {
		return nil, err
	}

	rec := s.newTransaction(domain.TransactionTypeCancel, domain.TransactionResultSuccess, account, amount)
	if err := s.store.ApplyBalanceChange(ctx, account, rec); err != nil {
		return nil, fmt.Errorf("cancel balance: %w", err)
	}

	transactionsTotal.WithLabelValues(string(rec.Type), string(rec.Result)).Inc()
	s.logger.Info("balance use canceled",
		zap.String("account_number", accountNumber),
		zap.Int64("amount", amount),
		zap.Int64("balance", account.Balance),
		zap.String("transaction_id", rec.TransactionID))

	return rec, nil
}

func (s *TransactionService) validateCancelBalance(original *domain.Transaction, account *domain.Account, amount int64) error {
	if original.AccountID != account.ID {
		return domain.ErrTransactionAccountMismatch
	}
	if account.Status != domain.AccountStatusActive {
		return domain.ErrAccountClosed
	}
	if original.Amount != amount {
		return domain.ErrCancelMustBeFull
	}
	if original.TransactedAt.Before(s.now().AddDate(-cancelWindow, 0, 0)) {
		return domain.ErrTooOldToCancel
	}
	return nil
}

// QueryTransaction returns the stored record for a transaction id.
func (s *TransactionService) QueryTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return s.store.GetTransaction(ctx, transactionID)
}

// RecordFailedUse writes a USE/FAILURE audit record. The balance is untouched
// and the snapshot is the balance as it stood when the attempt erred. Called
// only for unexpected failures that happened after the account lock was held.
func (s *TransactionService) RecordFailedUse(ctx context.Context, accountNumber string, amount int64) error {
	return s.recordFailure(ctx, domain.TransactionTypeUse, accountNumber, amount)
}

// RecordFailedCancel is RecordFailedUse for the CANCEL path.
func (s *TransactionService) RecordFailedCancel(ctx context.Context, accountNumber string, amount int64) error {
	return s.recordFailure(ctx, domain.TransactionTypeCancel, accountNumber, amount)
}

func (s *TransactionService) recordFailure(ctx context.Context, txType domain.TransactionType, accountNumber string, amount int64) error {
	account, err := s.store.GetAccountByNumber(ctx, accountNumber)
	if err != nil {
		return err
	}

	rec := s.newTransaction(txType, domain.TransactionResultFailure, account, amount)
	if err := s.store.SaveTransaction(ctx, rec); err != nil {
		return fmt.Errorf("record failed %s: %w", txType, err)
	}

	transactionsTotal.WithLabelValues(string(rec.Type), string(rec.Result)).Inc()
	return nil
}

// newTransaction snapshots the account balance as it stands now: post-mutation
// for successes, untouched for failure records.
func (s *TransactionService) newTransaction(txType domain.TransactionType, result domain.TransactionResult, account *domain.Account, amount int64) *domain.Transaction {
	return &domain.Transaction{
		TransactionID:   domain.NewTransactionID(),
		Type:            txType,
		Result:          result,
		AccountID:       account.ID,
		Amount:          amount,
		BalanceSnapshot: account.Balance,
		TransactedAt:    s.now(),
	}
}
