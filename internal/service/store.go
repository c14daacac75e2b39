package service

import (
	"context"
	"sync"
	"time"

	"github.com/abkawan/atm-teller/internal/models"
)

// AccountStore is the persistence the teller core reads from and writes to.
// Get returns db.ErrNotFound when no record exists.
type AccountStore interface {
	Get(ctx context.Context, accountNumber string) (*models.Account, error)
	Put(ctx context.Context, account *models.Account) error
}

// LockoutResetter is implemented by stores that can clear every lockout at once
type LockoutResetter interface {
	ResetLockouts(ctx context.Context) (int, error)
}

// EntryPublisher receives every committed history entry
type EntryPublisher interface {
	PublishEntry(ctx context.Context, ev models.EntryEvent) error
}

// Clock supplies the current time; its location decides the calendar day
// used for daily limits.
type Clock interface {
	Now() time.Time
}

type systemClock struct {
	loc *time.Location
}

// creates a wall clock reporting time in loc
func NewSystemClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return systemClock{loc: loc}
}

func (c systemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// AccountLocks serializes read-modify-write sequences per account number
type AccountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewAccountLocks() *AccountLocks {
	return &AccountLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until the account is free and returns the matching unlock
func (l *AccountLocks) Lock(accountNumber string) func() {
	l.mu.Lock()
	m, ok := l.locks[accountNumber]
	if !ok {
		m = &sync.Mutex{}
		l.locks[accountNumber] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
