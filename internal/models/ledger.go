package models

import (
	"encoding/json"
	"iter"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// HistoryCapacity is the number of entries an account retains
	HistoryCapacity = 10

	// MiniStatementSize is the number of entries shown on a mini statement
	MiniStatementSize = 5
)

// Ledger is a fixed-capacity ring holding the most recent entries of one
// account. Appending to a full ledger overwrites the oldest entry.
//
// The zero value is an empty ledger. Ledger has no pointers of its own, so
// copying an Account copies its history.
type Ledger struct {
	entries [HistoryCapacity]TransactionEntry
	start   int // slot of the oldest entry
	size    int
}

// Append records e as the newest entry
func (l *Ledger) Append(e TransactionEntry) {
	if l.size < HistoryCapacity {
		l.entries[(l.start+l.size)%HistoryCapacity] = e
		l.size++
		return
	}

	l.entries[l.start] = e
	l.start = (l.start + 1) % HistoryCapacity
}

func (l *Ledger) Len() int {
	return l.size
}

// newest returns the i-th most recent entry, 0 being the latest
func (l *Ledger) newest(i int) TransactionEntry {
	return l.entries[(l.start+l.size-1-i)%HistoryCapacity]
}

// Recent yields up to n entries, newest first. The sequence reads a copy taken
// when Recent is called, so it can be ranged over repeatedly.
func (l *Ledger) Recent(n int) iter.Seq[TransactionEntry] {
	snap := *l
	n = max(0, min(n, snap.size))

	return func(yield func(TransactionEntry) bool) {
		for i := 0; i < n; i++ {
			if !yield(snap.newest(i)) {
				return
			}
		}
	}
}

// MiniStatement yields the five most recent entries, newest first
func (l *Ledger) MiniStatement() iter.Seq[TransactionEntry] {
	return l.Recent(MiniStatementSize)
}

// Entries returns every retained entry, newest first
func (l *Ledger) Entries() []TransactionEntry {
	return slices.Collect(l.Recent(HistoryCapacity))
}

// LedgerSummary aggregates the retained entries of a ledger
type LedgerSummary struct {
	DepositCount     int             `json:"deposit_count"`
	WithdrawalCount  int             `json:"withdrawal_count"`
	PinChangeCount   int             `json:"pin_change_count"`
	TotalDeposits    decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals decimal.Decimal `json:"total_withdrawals"`
}

// Summary totals the retained entries recorded at or after since.
// A zero since includes everything.
func (l *Ledger) Summary(since time.Time) LedgerSummary {
	var s LedgerSummary
	for e := range l.Recent(HistoryCapacity) {
		if e.Timestamp.Before(since) {
			continue
		}

		switch e.Kind {
		case Deposit:
			s.DepositCount++
			s.TotalDeposits = s.TotalDeposits.Add(e.Amount)
		case Withdrawal:
			s.WithdrawalCount++
			s.TotalWithdrawals = s.TotalWithdrawals.Add(e.Amount)
		case PinChange:
			s.PinChangeCount++
		}
	}

	return s
}

// MarshalJSON encodes the ledger as an array, oldest entry first
func (l Ledger) MarshalJSON() ([]byte, error) {
	out := make([]TransactionEntry, 0, l.size)
	for i := 0; i < l.size; i++ {
		out = append(out, l.entries[(l.start+i)%HistoryCapacity])
	}

	return json.Marshal(out)
}

// UnmarshalJSON rebuilds the ledger from an oldest-first array. Arrays longer
// than the capacity keep only their newest entries.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	var entries []TransactionEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}

	*l = Ledger{}
	for _, e := range entries {
		l.Append(e)
	}

	return nil
}
