package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dkwon/balancebook/internal/domain"
	"github.com/dkwon/balancebook/internal/store"
)

const (
	maxAccountsPerUser = 10
	firstAccountNumber = "1000000000"
)

// AccountService handles account lifecycle bookkeeping. It never touches
// balances beyond the initial deposit at creation; balance mutation is the
// transaction engine's job.
type AccountService struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewAccountService(s store.Store, logger *zap.Logger) *AccountService {
	return &AccountService{store: s, logger: logger, now: time.Now}
}

// CreateAccount opens an account for the user with the next sequential account
// number, starting at 1000000000. A user holds at most ten accounts.
func (s *AccountService) CreateAccount(ctx context.Context, userID, initialBalance int64) (*domain.Account, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	count, err := s.store.CountAccountsByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if count >= maxAccountsPerUser {
		return nil, domain.ErrMaxAccountsPerUser
	}

	number, err := s.nextAccountNumber(ctx)
	if err != nil {
		return nil, err
	}

	account := &domain.Account{
		UserID:        user.ID,
		AccountNumber: number,
		Status:        domain.AccountStatusActive,
		Balance:       initialBalance,
		RegisteredAt:  s.now(),
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("account created",
		zap.Int64("user_id", userID),
		zap.String("account_number", account.AccountNumber))

	return account, nil
}

func (s *AccountService) nextAccountNumber(ctx context.Context) (string, error) {
	last, err := s.store.LastAccountNumber(ctx)
	if err != nil {
		return "", err
	}
	if last == "" {
		return firstAccountNumber, nil
	}

	n, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return "", domain.ErrInvalidRequest
	}
	return strconv.FormatInt(n+1, 10), nil
}

// CloseAccount marks an account closed. The account must belong to the user,
// still be active, and hold a zero balance.
func (s *AccountService) CloseAccount(ctx context.Context, userID int64, accountNumber string) (*domain.Account, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	account, err := s.store.GetAccountByNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}

	if user.ID != account.UserID {
		return nil, domain.ErrUserAccountMismatch
	}
	if err := account.Close(s.now()); err != nil {
		return nil, err
	}

	if err := s.store.CloseAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("account closed",
		zap.Int64("user_id", userID),
		zap.String("account_number", accountNumber))

	return account, nil
}

// ListAccounts returns every account owned by the user.
func (s *AccountService) ListAccounts(ctx context.Context, userID int64) ([]domain.Account, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.ListAccountsByUser(ctx, user.ID)
}
