package service

import (
	"context"
	"sync"
	"time"

	"github.com/dkwon/balancebook/internal/domain"
	"github.com/dkwon/balancebook/internal/store"
)

var _ store.Store = (*memStore)(nil)

// memStore is an in-memory store.Store used by the service tests. It is
// safe for concurrent use so the locked-service tests can hammer it from
// multiple goroutines.
type memStore struct {
	mu           sync.Mutex
	users        map[int64]domain.AccountUser
	accounts     map[string]domain.Account // keyed by account number
	transactions []domain.Transaction
	nextID       int64

	applyErr error // injected fault for ApplyBalanceChange
	saveErr  error // injected fault for SaveTransaction
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[int64]domain.AccountUser),
		accounts: make(map[string]domain.Account),
	}
}

func (m *memStore) addUser(id int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = domain.AccountUser{ID: id, Name: name, CreatedAt: time.Now()}
}

func (m *memStore) addAccount(a domain.Account) domain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	m.accounts[a.AccountNumber] = a
	return a
}

func (m *memStore) addTransaction(t domain.Transaction) domain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	m.transactions = append(m.transactions, t)
	return t
}

func (m *memStore) balance(accountNumber string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[accountNumber].Balance
}

func (m *memStore) records() []domain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Transaction, len(m.transactions))
	copy(out, m.transactions)
	return out
}

func (m *memStore) GetUser(_ context.Context, userID int64) (*domain.AccountUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (m *memStore) GetAccountByNumber(_ context.Context, accountNumber string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountNumber]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &a, nil
}

func (m *memStore) GetTransaction(_ context.Context, transactionID string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.transactions {
		if m.transactions[i].TransactionID == transactionID {
			t := m.transactions[i]
			return &t, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (m *memStore) ApplyBalanceChange(_ context.Context, account *domain.Account, rec *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return m.applyErr
	}

	stored, ok := m.accounts[account.AccountNumber]
	if !ok {
		return domain.ErrAccountNotFound
	}
	stored.Balance = account.Balance
	m.accounts[account.AccountNumber] = stored

	m.nextID++
	rec.ID = m.nextID
	m.transactions = append(m.transactions, *rec)
	return nil
}

func (m *memStore) SaveTransaction(_ context.Context, rec *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}

	m.nextID++
	rec.ID = m.nextID
	m.transactions = append(m.transactions, *rec)
	return nil
}

func (m *memStore) CreateAccount(_ context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	account.ID = m.nextID
	m.accounts[account.AccountNumber] = *account
	return nil
}

func (m *memStore) CloseAccount(_ context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.AccountNumber] = *account
	return nil
}

func (m *memStore) ListAccountsByUser(_ context.Context, userID int64) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Account
	for _, a := range m.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) CountAccountsByUser(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, a := range m.accounts {
		if a.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (m *memStore) LastAccountNumber(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last string
	for _, a := range m.accounts {
		if a.AccountNumber > last {
			last = a.AccountNumber
		}
	}
	return last, nil
}
