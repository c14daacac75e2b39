package service

import (
	"context"
	"errors"
	"iter"
	"log"
	"sync"
	"time"

	"github.com/abkawan/atm-teller/internal/db"
	"github.com/abkawan/atm-teller/internal/models"
	"github.com/abkawan/atm-teller/internal/validate"
	"github.com/shopspring/decimal"
)

// handles cardholder login and lockout
type AuthService struct {
	store AccountStore
	clock Clock
	locks *AccountLocks
}

// creates a new AuthService
func NewAuthService(store AccountStore, clock Clock, locks *AccountLocks) *AuthService {
	return &AuthService{
		store: store,
		clock: clock,
		locks: locks,
	}
}

// Login checks pin against the stored credential of accountNumber.
//
// A locked account fails with ErrAccountLocked without looking at the PIN.
// A wrong PIN counts toward lockout and the new count is stored before Login
// returns; the third consecutive miss locks the account. A PIN that is not
// four digits is rejected without counting.
func (s *AuthService) Login(ctx context.Context, accountNumber, pin string) (*Session, error) {
	if !validate.IsValidAccountNumber(accountNumber) {
		return nil, ErrAccountNotFound
	}

	unlock := s.locks.Lock(accountNumber)
	defer unlock()

	account, err := s.store.Get(ctx, accountNumber)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, &StoreError{Op: "get", Err: err}
	}

	if account.IsLocked() {
		return nil, ErrAccountLocked
	}

	if !validate.IsValidPin(pin) {
		return nil, &InvalidPinError{Remaining: remainingAttempts(account)}
	}

	if account.PinMatches(pin) {
		if account.FailedAttempts != 0 {
			account.FailedAttempts = 0
			account.UpdatedAt = s.clock.Now()
			if err := s.store.Put(ctx, account); err != nil {
				return nil, &StoreError{Op: "put", Err: err}
			}
		}
		return newSession(s.store, account), nil
	}

	account.FailedAttempts = min(account.FailedAttempts+1, models.MaxFailedAttempts)
	if account.FailedAttempts == models.MaxFailedAttempts {
		account.Status = models.Locked
	}
	account.UpdatedAt = s.clock.Now()

	if err := s.store.Put(ctx, account); err != nil {
		return nil, &StoreError{Op: "put", Err: err}
	}

	if account.IsLocked() {
		log.Printf("Account %s locked after %d failed attempts", accountNumber, account.FailedAttempts)
		return nil, ErrAccountLocked
	}

	return nil, &InvalidPinError{Remaining: remainingAttempts(account)}
}

func remainingAttempts(account *models.Account) int {
	return max(0, models.MaxFailedAttempts-account.FailedAttempts)
}

// Session is an authenticated view of one account. Queries re-read the
// record from the store, so a session sees commits made through any other
// session of the same account.
type Session struct {
	store AccountStore

	mu            sync.RWMutex
	accountNumber string
	holderName    string
	authenticated bool
}

func newSession(store AccountStore, account *models.Account) *Session {
	return &Session{
		store:         store,
		accountNumber: account.AccountNumber,
		holderName:    account.HolderName,
		authenticated: true,
	}
}

// Logout ends the session. Calling it again has no effect.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.authenticated = false
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.authenticated
}

func (s *Session) AccountNumber() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.authenticated {
		return "", ErrSessionNotAuthenticated
	}
	return s.accountNumber, nil
}

func (s *Session) HolderName() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.authenticated {
		return "", ErrSessionNotAuthenticated
	}
	return s.holderName, nil
}

func (s *Session) Balance(ctx context.Context) (decimal.Decimal, error) {
	a, err := s.current(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return a.Balance, nil
}

// MiniStatement yields the five most recent entries, newest first
func (s *Session) MiniStatement(ctx context.Context) (iter.Seq[models.TransactionEntry], error) {
	a, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return a.History.MiniStatement(), nil
}

// History returns every retained entry, newest first
func (s *Session) History(ctx context.Context) ([]models.TransactionEntry, error) {
	a, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return a.History.Entries(), nil
}

// Summary totals the retained entries recorded at or after since
func (s *Session) Summary(ctx context.Context, since time.Time) (models.LedgerSummary, error) {
	a, err := s.current(ctx)
	if err != nil {
		return models.LedgerSummary{}, err
	}
	return a.History.Summary(since), nil
}

// current reads the committed record of the session's account
func (s *Session) current(ctx context.Context) (*models.Account, error) {
	accountNumber, err := s.AccountNumber()
	if err != nil {
		return nil, err
	}

	account, err := s.store.Get(ctx, accountNumber)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, &StoreError{Op: "get", Err: err}
	}
	return account, nil
}
