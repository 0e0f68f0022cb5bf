package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dkwon/balancebook/internal/domain"
	"github.com/dkwon/balancebook/internal/lock"
)

// UseBalanceRequest carries everything needed to debit an account. Any request
// type exposing an account number can be lock-guarded; these two are the ones
// the engine ships with.
type UseBalanceRequest struct {
	UserID        int64  `json:"user_id"`
	AccountNumber string `json:"account_number"`
	Amount        int64  `json:"amount"`
}

// CancelBalanceRequest reverses an earlier debit, identified by the original
// transaction id.
type CancelBalanceRequest struct {
	TransactionID string `json:"transaction_id"`
	AccountNumber string `json:"account_number"`
	Amount        int64  `json:"amount"`
}

type guardFn[R any] func(context.Context, R, func(context.Context) (*domain.Transaction, error)) (*domain.Transaction, error)

// LockedTransactionService decorates the transaction engine with the
// per-account distributed lock and the unexpected-failure audit contract.
//
// The lock covers exactly validation + mutation + record write. Business
// rejections pass through untouched; an unexpected failure downstream of a
// successful acquisition triggers a best-effort FAILURE record before the
// original error propagates. Lock-acquisition failures never reach the engine
// and are never recorded.
type LockedTransactionService struct {
	engine      *TransactionService
	logger      *zap.Logger
	guardUse    guardFn[UseBalanceRequest]
	guardCancel guardFn[CancelBalanceRequest]
}

func NewLockedTransactionService(engine *TransactionService, locker *lock.Manager, logger *zap.Logger) *LockedTransactionService {
	return &LockedTransactionService{
		engine: engine,
		logger: logger,
		guardUse: lock.Guard[UseBalanceRequest, *domain.Transaction](locker,
			func(r UseBalanceRequest) string { return r.AccountNumber }),
		guardCancel: lock.Guard[CancelBalanceRequest, *domain.Transaction](locker,
			func(r CancelBalanceRequest) string { return r.AccountNumber }),
	}
}

// UseBalance runs the engine's UseBalance under the account's lock.
func (s *LockedTransactionService) UseBalance(ctx context.Context, req UseBalanceRequest) (*domain.Transaction, error) {
	return s.guardUse(ctx, req, func(ctx context.Context) (*domain.Transaction, error) {
		rec, err := s.engine.UseBalance(ctx, req.UserID, req.AccountNumber, req.Amount)
		if err != nil {
			return nil, s.auditUnexpected(ctx, domain.TransactionTypeUse, req.AccountNumber, req.Amount, err)
		}
		return rec, nil
	})
}

// CancelBalance runs the engine's CancelBalance under the account's lock.
func (s *LockedTransactionService) CancelBalance(ctx context.Context, req CancelBalanceRequest) (*domain.Transaction, error) {
	return s.guardCancel(ctx, req, func(ctx context.Context) (*domain.Transaction, error) {
		rec, err := s.engine.CancelBalance(ctx, req.TransactionID, req.AccountNumber, req.Amount)
		if err != nil {
			return nil, s.auditUnexpected(ctx, domain.TransactionTypeCancel, req.AccountNumber, req.Amount, err)
		}
		return rec, nil
	})
}

// QueryTransaction is a pure read and takes no lock.
func (s *LockedTransactionService) QueryTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return s.engine.QueryTransaction(ctx, transactionID)
}

// auditUnexpected applies the failure-recording contract: business rejections
// return unchanged, anything else gets a best-effort FAILURE record. If the
// audit write itself fails it is logged only; the root cause always wins.
func (s *LockedTransactionService) auditUnexpected(ctx context.Context, txType domain.TransactionType, accountNumber string, amount int64, err error) error {
	if domain.IsBusinessError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	s.logger.Error("unexpected failure under account lock",
		zap.String("type", string(txType)),
		zap.String("account_number", accountNumber),
		zap.Error(err))

	var auditErr error
	switch txType {
	case domain.TransactionTypeCancel:
		auditErr = s.engine.RecordFailedCancel(ctx, accountNumber, amount)
	default:
		auditErr = s.engine.RecordFailedUse(ctx, accountNumber, amount)
	}
	if auditErr != nil {
		s.logger.Error("failure audit record could not be written",
			zap.String("account_number", accountNumber), zap.Error(auditErr))
	}

	return fmt.Errorf("unexpected failure: %w", err)
}
