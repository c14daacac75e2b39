package models

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type AccountStatus string

const (
	// Active accounts accept logins
	Active AccountStatus = "active"

	// Locked accounts reject every login until an administrative unlock
	Locked AccountStatus = "locked"
)

// MaxFailedAttempts is the number of consecutive PIN mismatches that locks an account
const MaxFailedAttempts = 3

// DayLayout formats the calendar day used for daily limit accounting
const DayLayout = "2006-01-02"

// PinHashCost is the bcrypt cost used for new credentials
var PinHashCost = bcrypt.DefaultCost

// Account is the full persisted record of a cardholder account
type Account struct {
	AccountNumber  string          `json:"account_number"`
	HolderName     string          `json:"holder_name"`
	PinHash        string          `json:"pin_hash"`
	Balance        decimal.Decimal `json:"balance"`
	Status         AccountStatus   `json:"status"`
	FailedAttempts int             `json:"failed_attempts"`
	History        Ledger          `json:"history"`
	DailyDeposited decimal.Decimal `json:"daily_deposited"`
	DailyWithdrawn decimal.Decimal `json:"daily_withdrawn"`
	CurrentDay     string          `json:"current_day"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Clone returns an independent copy of the record
func (a *Account) Clone() *Account {
	cp := *a
	return &cp
}

func (a *Account) IsLocked() bool {
	return a.Status == Locked
}

// SetPin replaces the stored credential with a hash of pin
func (a *Account) SetPin(pin string) error {
	hash, err := HashPin(pin)
	if err != nil {
		return err
	}
	a.PinHash = hash
	return nil
}

// PinMatches reports whether pin matches the stored credential
func (a *Account) PinMatches(pin string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.PinHash), []byte(pin)) == nil
}

// HashPin derives the opaque credential stored for a PIN
func HashPin(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), PinHashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// RollDay resets the daily totals when day differs from the one on record
func (a *Account) RollDay(day string) {
	if a.CurrentDay == day {
		return
	}
	a.CurrentDay = day
	a.DailyDeposited = decimal.Zero
	a.DailyWithdrawn = decimal.Zero
}

type CreateAccountRequest struct {
	AccountNumber  string `json:"account_number"`
	HolderName     string `json:"holder_name"`
	Pin            string `json:"pin"`
	InitialBalance string `json:"initial_balance"`
}

type AccountResponse struct {
	AccountNumber string          `json:"account_number"`
	HolderName    string          `json:"holder_name"`
	Balance       decimal.Decimal `json:"balance"`
	Status        AccountStatus   `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

type LoginRequest struct {
	AccountNumber string `json:"account_number"`
	Pin           string `json:"pin"`
}

type LoginResponse struct {
	Token      string `json:"token"`
	HolderName string `json:"holder_name"`
}

type BalanceResponse struct {
	HolderName string          `json:"holder_name"`
	Balance    decimal.Decimal `json:"balance"`
}

// represents the mini statement, or the full retained history when requested
type StatementResponse struct {
	HolderName string             `json:"holder_name"`
	Balance    decimal.Decimal    `json:"balance"`
	Entries    []TransactionEntry `json:"entries"`
	Summary    *LedgerSummary     `json:"summary,omitempty"`
}
