package db

import (
	"testing"
	"time"

	"github.com/abkawan/atm-teller/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalDocumentConversion(t *testing.T) {
	ev := models.EntryEvent{
		AccountNumber: "987654321",
		Entry: models.TransactionEntry{
			ID:               "4b0c7f0e",
			Timestamp:        time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
			Kind:             models.Withdrawal,
			Amount:           decimal.RequireFromString("1000.50"),
			ResultingBalance: decimal.RequireFromString("1750"),
		},
	}

	doc, err := toJournalDocument(ev)
	require.NoError(t, err)
	assert.Equal(t, "4b0c7f0e", doc.ID)
	assert.Equal(t, "987654321", doc.AccountNumber)
	assert.Equal(t, "withdrawal", doc.Kind)

	back, err := fromJournalDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, ev.Entry.ID, back.ID)
	assert.Equal(t, ev.Entry.Kind, back.Kind)
	assert.True(t, ev.Entry.Amount.Equal(back.Amount), "amount %s", back.Amount)
	assert.True(t, ev.Entry.ResultingBalance.Equal(back.ResultingBalance), "balance %s", back.ResultingBalance)
	assert.True(t, ev.Entry.Timestamp.Equal(back.Timestamp))
}
