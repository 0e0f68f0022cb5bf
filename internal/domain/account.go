package domain

import "time"

// AccountStatus is the lifecycle state of an account. The only transition is
// ACTIVE -> CLOSED; closed accounts accept no further balance mutation.
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusClosed AccountStatus = "CLOSED"
)

// AccountUser owns accounts. Kept minimal; user management lives elsewhere.
type AccountUser struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Account holds a balance in the smallest currency unit. The internal ID is
// never exposed outside the service; callers address accounts by AccountNumber.
type Account struct {
	ID            int64         `json:"-"`
	UserID        int64         `json:"user_id"`
	AccountNumber string        `json:"account_number"`
	Status        AccountStatus `json:"status"`
	Balance       int64         `json:"balance"`
	RegisteredAt  time.Time     `json:"registered_at"`
	ClosedAt      *time.Time    `json:"closed_at,omitempty"`
}

// UseBalance debits the account. The balance-never-negative invariant is
// enforced here so no caller can bypass it.
func (a *Account) UseBalance(amount int64) error {
	if amount > a.Balance {
		return ErrAmountExceedsBalance
	}
	a.Balance -= amount
	return nil
}

// CancelBalance credits the account, reversing an earlier debit.
func (a *Account) CancelBalance(amount int64) error {
	if amount < 0 {
		return ErrInvalidRequest
	}
	a.Balance += amount
	return nil
}

// Close marks the account closed as of now. Closing is one-way.
func (a *Account) Close(now time.Time) error {
	if a.Status != AccountStatusActive {
		return ErrAccountClosed
	}
	if a.Balance > 0 {
		return ErrBalanceNotEmpty
	}
	a.Status = AccountStatusClosed
	a.ClosedAt = &now
	return nil
}
