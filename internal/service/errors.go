package service

import (
	"errors"
	"fmt"

	"github.com/abkawan/atm-teller/internal/models"
	"github.com/abkawan/atm-teller/internal/validate"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound         = errors.New("account not found")
	ErrAccountLocked           = errors.New("account locked")
	ErrAccountExists           = errors.New("account already exists")
	ErrInvalidAccountNumber    = errors.New("account number must be 6 to 12 digits")
	ErrInvalidHolderName       = errors.New("invalid holder name")
	ErrInvalidPin              = errors.New("invalid pin")
	ErrPinMismatch             = errors.New("new pin and confirmation do not match")
	ErrPinUnchanged            = errors.New("new pin must differ from the current pin")
	ErrInvalidAmount           = validate.ErrInvalidAmount
	ErrDailyLimitExceeded      = errors.New("daily limit exceeded")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrStore                   = errors.New("account store failure")
	ErrSessionNotAuthenticated = errors.New("session not authenticated")
)

// InvalidPinError is returned for a wrong or malformed PIN. Remaining is the
// number of login attempts left before lockout; it is zero when the failure
// does not count toward lockout.
type InvalidPinError struct {
	Remaining int
}

func (e *InvalidPinError) Error() string {
	if e.Remaining > 0 {
		return fmt.Sprintf("invalid pin: %d attempt(s) remaining", e.Remaining)
	}
	return "invalid pin"
}

func (e *InvalidPinError) Is(target error) bool {
	return target == ErrInvalidPin
}

// LimitError reports which daily limit a request would exceed
type LimitError struct {
	Kind      models.TransactionKind
	Limit     decimal.Decimal
	Remaining decimal.Decimal
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("daily %s limit of %s exceeded: %s remaining today", e.Kind, e.Limit.StringFixed(2), e.Remaining.StringFixed(2))
}

func (e *LimitError) Is(target error) bool {
	return target == ErrDailyLimitExceeded
}

// StoreError wraps a failure of the account store. It is never retried.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("account store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}
