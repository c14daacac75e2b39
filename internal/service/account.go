package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abkawan/atm-teller/internal/db"
	"github.com/abkawan/atm-teller/internal/models"
	"github.com/abkawan/atm-teller/internal/validate"
)

// handles account administration
type AccountService struct {
	store AccountStore
	clock Clock
	locks *AccountLocks
}

// creates a new Account Service
func NewAccountService(store AccountStore, clock Clock, locks *AccountLocks) *AccountService {
	return &AccountService{
		store: store,
		clock: clock,
		locks: locks,
	}
}

// opens a new active account
func (s *AccountService) OpenAccount(ctx context.Context, req models.CreateAccountRequest) (*models.Account, error) {
	if !validate.IsValidAccountNumber(req.AccountNumber) {
		return nil, ErrInvalidAccountNumber
	}

	if !validate.IsValidHolderName(req.HolderName) {
		return nil, ErrInvalidHolderName
	}

	if !validate.IsValidPin(req.Pin) {
		return nil, &InvalidPinError{}
	}

	balance, err := validate.ParseBalance(req.InitialBalance)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(req.AccountNumber)
	defer unlock()

	_, err = s.store.Get(ctx, req.AccountNumber)
	if err == nil {
		return nil, ErrAccountExists
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, &StoreError{Op: "get", Err: err}
	}

	now := s.clock.Now()
	account := &models.Account{
		AccountNumber: req.AccountNumber,
		HolderName:    strings.TrimSpace(req.HolderName),
		Balance:       balance,
		Status:        models.Active,
		CurrentDay:    now.Format(models.DayLayout),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := account.SetPin(req.Pin); err != nil {
		return nil, fmt.Errorf("failed to hash pin: %w", err)
	}

	if err := s.store.Put(ctx, account); err != nil {
		return nil, &StoreError{Op: "put", Err: err}
	}

	return account, nil
}

// retrieves an account by number
func (s *AccountService) GetAccount(ctx context.Context, accountNumber string) (*models.Account, error) {
	account, err := s.store.Get(ctx, accountNumber)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, &StoreError{Op: "get", Err: err}
	}

	return account, nil
}

// Unlock is the administrative reset of a lockout
func (s *AccountService) Unlock(ctx context.Context, accountNumber string) (*models.Account, error) {
	unlock := s.locks.Lock(accountNumber)
	defer unlock()

	account, err := s.GetAccount(ctx, accountNumber)
	if err != nil {
		return nil, err
	}

	account.Status = models.Active
	account.FailedAttempts = 0
	account.UpdatedAt = s.clock.Now()

	if err := s.store.Put(ctx, account); err != nil {
		return nil, &StoreError{Op: "put", Err: err}
	}

	return account, nil
}

// Seed stores each account whose number is not taken yet and reports how
// many were added
func (s *AccountService) Seed(ctx context.Context, accounts []*models.Account) (int, error) {
	added := 0
	for _, account := range accounts {
		ok, err := s.seedOne(ctx, account)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}

	return added, nil
}

func (s *AccountService) seedOne(ctx context.Context, account *models.Account) (bool, error) {
	unlock := s.locks.Lock(account.AccountNumber)
	defer unlock()

	_, err := s.store.Get(ctx, account.AccountNumber)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return false, &StoreError{Op: "get", Err: err}
	}

	if err := s.store.Put(ctx, account); err != nil {
		return false, &StoreError{Op: "put", Err: err}
	}

	return true, nil
}

// ResetLockouts clears every lockout when the store supports it. Used at
// startup when lockouts are configured not to survive a restart.
func (s *AccountService) ResetLockouts(ctx context.Context) (int, error) {
	resetter, ok := s.store.(LockoutResetter)
	if !ok {
		return 0, fmt.Errorf("store %T cannot reset lockouts", s.store)
	}

	n, err := resetter.ResetLockouts(ctx)
	if err != nil {
		return 0, &StoreError{Op: "reset lockouts", Err: err}
	}

	return n, nil
}
