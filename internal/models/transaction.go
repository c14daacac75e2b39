package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	// Deposit represents cash put into the account
	Deposit TransactionKind = "deposit"

	// Withdrawal represents cash taken out of the account
	Withdrawal TransactionKind = "withdrawal"

	// PinChange records a credential update; it never moves money
	PinChange TransactionKind = "pin_change"
)

// TransactionEntry is one line of an account's activity history.
// Entries are values and are never modified after creation.
type TransactionEntry struct {
	ID               string          `json:"id"`
	Timestamp        time.Time       `json:"timestamp"`
	Kind             TransactionKind `json:"kind"`
	Amount           decimal.Decimal `json:"amount"`
	ResultingBalance decimal.Decimal `json:"resulting_balance"`
}

// EntryEvent is published after an entry has been committed to the store
type EntryEvent struct {
	AccountNumber string           `json:"account_number"`
	Entry         TransactionEntry `json:"entry"`
}

// EntryDelivery is an EntryEvent received from a broker. The consumer calls
// exactly one of Ack or Nack once the event is handled.
type EntryDelivery struct {
	Event EntryEvent
	Ack   func() error
	Nack  func(requeue bool) error
}

// represents the request body for deposits and withdrawals.
// Amount is kept as the raw string so validation can report why it was rejected.
type AmountRequest struct {
	Amount string `json:"amount"`
}

// represents the API response after a deposit or withdrawal
type AmountResponse struct {
	Entry   TransactionEntry `json:"entry"`
	Balance decimal.Decimal  `json:"balance"`
}

type ChangePinRequest struct {
	CurrentPin string `json:"current_pin"`
	NewPin     string `json:"new_pin"`
	ConfirmPin string `json:"confirm_pin"`
}
