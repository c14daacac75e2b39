package db

import (
	"fmt"
	"time"

	"github.com/abkawan/atm-teller/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type sampleEntry struct {
	daysAgo int
	kind    models.TransactionKind
	amount  string
	balance string
}

type sampleAccount struct {
	number         string
	name           string
	pin            string
	balance        string
	failedAttempts int
	locked         bool
	history        []sampleEntry
}

// demo data loaded by SEED_SAMPLE_DATA; covers a locked account and one close to locking
var sampleAccounts = []sampleAccount{
	{
		number: "123456789", name: "John Smith", pin: "1234", balance: "1500.00",
		history: []sampleEntry{
			{5, models.Deposit, "500.00", "1000.00"},
			{3, models.Withdrawal, "200.00", "800.00"},
			{1, models.Deposit, "700.00", "1500.00"},
		},
	},
	{
		number: "987654321", name: "Jane Doe", pin: "5678", balance: "2750.50",
		history: []sampleEntry{
			{7, models.Deposit, "1000.00", "2000.00"},
			{4, models.Withdrawal, "250.00", "1750.00"},
			{2, models.Deposit, "1000.50", "2750.50"},
		},
	},
	{
		number: "555666777", name: "Bob Johnson", pin: "9999", balance: "50.00",
		history: []sampleEntry{
			{10, models.Deposit, "100.00", "100.00"},
			{6, models.Withdrawal, "50.00", "50.00"},
		},
	},
	{number: "111222333", name: "Alice Brown", pin: "0000", balance: "5000.00", failedAttempts: 2},
	{number: "444555666", name: "Charlie Wilson", pin: "1111", balance: "750.25", failedAttempts: 3, locked: true},
}

// SampleAccounts builds the demo accounts with history relative to now
func SampleAccounts(now time.Time) ([]*models.Account, error) {
	accounts := make([]*models.Account, 0, len(sampleAccounts))

	for _, s := range sampleAccounts {
		a := &models.Account{
			AccountNumber:  s.number,
			HolderName:     s.name,
			Balance:        decimal.RequireFromString(s.balance),
			Status:         models.Active,
			FailedAttempts: s.failedAttempts,
			CurrentDay:     now.Format(models.DayLayout),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if s.locked {
			a.Status = models.Locked
		}

		if err := a.SetPin(s.pin); err != nil {
			return nil, fmt.Errorf("failed to hash sample pin: %w", err)
		}

		for _, e := range s.history {
			a.History.Append(models.TransactionEntry{
				ID:               uuid.New().String(),
				Timestamp:        now.AddDate(0, 0, -e.daysAgo),
				Kind:             e.kind,
				Amount:           decimal.RequireFromString(e.amount),
				ResultingBalance: decimal.RequireFromString(e.balance),
			})
		}

		accounts = append(accounts, a)
	}

	return accounts, nil
}
