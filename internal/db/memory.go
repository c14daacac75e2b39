package db

import (
	"context"
	"errors"
	"sync"

	"github.com/abkawan/atm-teller/internal/models"
)

// ErrNotFound is returned by every store when no record has the account number
var ErrNotFound = errors.New("account not found")

// MemoryStore keeps account records in process memory. Records are copied on
// the way in and out so callers never share state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
}

// creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*models.Account)}
}

// retrieves an account by number
func (m *MemoryStore) Get(ctx context.Context, accountNumber string) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[accountNumber]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

// inserts or replaces an account
func (m *MemoryStore) Put(ctx context.Context, account *models.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.accounts[account.AccountNumber] = account.Clone()
	return nil
}

// ResetLockouts reactivates every locked account and returns how many changed
func (m *MemoryStore) ResetLockouts(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return resetLockouts(m.accounts), nil
}

func resetLockouts(accounts map[string]*models.Account) int {
	n := 0
	for _, a := range accounts {
		if a.IsLocked() || a.FailedAttempts > 0 {
			a.Status = models.Active
			a.FailedAttempts = 0
			n++
		}
	}
	return n
}
