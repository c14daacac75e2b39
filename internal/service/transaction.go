package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/abkawan/atm-teller/internal/db"
	"github.com/abkawan/atm-teller/internal/models"
	"github.com/abkawan/atm-teller/internal/validate"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Limits caps the cumulative amounts an account may move per calendar day
type Limits struct {
	DailyDeposit    decimal.Decimal
	DailyWithdrawal decimal.Decimal
}

func DefaultLimits() Limits {
	return Limits{
		DailyDeposit:    decimal.NewFromInt(5000),
		DailyWithdrawal: decimal.NewFromInt(1000),
	}
}

// applies deposits, withdrawals and PIN changes to authenticated sessions
type TransactionEngine struct {
	store     AccountStore
	clock     Clock
	locks     *AccountLocks
	publisher EntryPublisher
	limits    Limits
}

// creates a new TransactionEngine. publisher may be nil.
func NewTransactionEngine(store AccountStore, clock Clock, locks *AccountLocks, publisher EntryPublisher, limits Limits) *TransactionEngine {
	return &TransactionEngine{
		store:     store,
		clock:     clock,
		locks:     locks,
		publisher: publisher,
		limits:    limits,
	}
}

// Deposit adds amount to the balance within the daily deposit limit
func (e *TransactionEngine) Deposit(ctx context.Context, s *Session, amount string) (models.TransactionEntry, error) {
	return e.apply(ctx, s, func(a *models.Account, now time.Time) (models.TransactionEntry, error) {
		value, err := validate.ParseAmount(amount)
		if err != nil {
			return models.TransactionEntry{}, err
		}

		deposited := a.DailyDeposited.Add(value)
		if deposited.GreaterThan(e.limits.DailyDeposit) {
			return models.TransactionEntry{}, &LimitError{
				Kind:      models.Deposit,
				Limit:     e.limits.DailyDeposit,
				Remaining: e.limits.DailyDeposit.Sub(a.DailyDeposited),
			}
		}

		a.Balance = a.Balance.Add(value)
		a.DailyDeposited = deposited

		return newEntry(now, models.Deposit, value, a.Balance), nil
	})
}

// Withdraw takes amount from the balance. The daily limit is checked before
// the balance, so an affordable but oversized request reports the limit.
func (e *TransactionEngine) Withdraw(ctx context.Context, s *Session, amount string) (models.TransactionEntry, error) {
	return e.apply(ctx, s, func(a *models.Account, now time.Time) (models.TransactionEntry, error) {
		value, err := validate.ParseAmount(amount)
		if err != nil {
			return models.TransactionEntry{}, err
		}

		withdrawn := a.DailyWithdrawn.Add(value)
		if withdrawn.GreaterThan(e.limits.DailyWithdrawal) {
			return models.TransactionEntry{}, &LimitError{
				Kind:      models.Withdrawal,
				Limit:     e.limits.DailyWithdrawal,
				Remaining: e.limits.DailyWithdrawal.Sub(a.DailyWithdrawn),
			}
		}

		if value.GreaterThan(a.Balance) {
			return models.TransactionEntry{}, ErrInsufficientFunds
		}

		a.Balance = a.Balance.Sub(value)
		a.DailyWithdrawn = withdrawn

		return newEntry(now, models.Withdrawal, value, a.Balance), nil
	})
}

// ChangePin replaces the credential after checking the current PIN and the
// confirmation. A wrong current PIN here does not count toward lockout.
func (e *TransactionEngine) ChangePin(ctx context.Context, s *Session, currentPin, newPin, confirmPin string) (models.TransactionEntry, error) {
	return e.apply(ctx, s, func(a *models.Account, now time.Time) (models.TransactionEntry, error) {
		if !a.PinMatches(currentPin) {
			return models.TransactionEntry{}, &InvalidPinError{}
		}

		if newPin != confirmPin {
			return models.TransactionEntry{}, ErrPinMismatch
		}

		if !validate.IsValidPin(newPin) {
			return models.TransactionEntry{}, &InvalidPinError{}
		}

		if newPin == currentPin {
			return models.TransactionEntry{}, ErrPinUnchanged
		}

		if err := a.SetPin(newPin); err != nil {
			return models.TransactionEntry{}, fmt.Errorf("failed to hash pin: %w", err)
		}

		return newEntry(now, models.PinChange, decimal.Zero, a.Balance), nil
	})
}

// apply runs op against a fresh copy of the stored record under the account
// lock. The copy is stored only when op succeeds; otherwise nothing changes.
func (e *TransactionEngine) apply(ctx context.Context, s *Session, op func(a *models.Account, now time.Time) (models.TransactionEntry, error)) (models.TransactionEntry, error) {
	accountNumber, err := s.AccountNumber()
	if err != nil {
		return models.TransactionEntry{}, err
	}

	unlock := e.locks.Lock(accountNumber)
	defer unlock()

	now := e.clock.Now()

	current, err := e.store.Get(ctx, accountNumber)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return models.TransactionEntry{}, ErrAccountNotFound
		}
		return models.TransactionEntry{}, &StoreError{Op: "get", Err: err}
	}

	next := current.Clone()
	next.RollDay(now.Format(models.DayLayout))

	entry, err := op(next, now)
	if err != nil {
		return models.TransactionEntry{}, err
	}

	next.History.Append(entry)
	next.UpdatedAt = now

	if err := e.store.Put(ctx, next); err != nil {
		return models.TransactionEntry{}, &StoreError{Op: "put", Err: err}
	}

	e.publish(ctx, accountNumber, entry)

	return entry, nil
}

// the entry is already committed, so a failed publish is only logged
func (e *TransactionEngine) publish(ctx context.Context, accountNumber string, entry models.TransactionEntry) {
	if e.publisher == nil {
		return
	}

	err := e.publisher.PublishEntry(ctx, models.EntryEvent{AccountNumber: accountNumber, Entry: entry})
	if err != nil {
		log.Printf("Failed to publish entry %s for account %s: %v", entry.ID, accountNumber, err)
	}
}

func newEntry(now time.Time, kind models.TransactionKind, amount, balance decimal.Decimal) models.TransactionEntry {
	return models.TransactionEntry{
		ID:               uuid.New().String(),
		Timestamp:        now,
		Kind:             kind,
		Amount:           amount,
		ResultingBalance: balance,
	}
}
