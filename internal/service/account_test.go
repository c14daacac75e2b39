package service

import (
	"context"
	"testing"
	"time"

	"github.com/abkawan/atm-teller/internal/db"
	"github.com/abkawan/atm-teller/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAccount(t *testing.T) {
	f := newFixture(t)

	account, err := f.accounts.OpenAccount(context.Background(), models.CreateAccountRequest{
		AccountNumber:  "987654321",
		HolderName:     "  Jane Doe ",
		Pin:            "5678",
		InitialBalance: "2,750.50",
	})
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", account.HolderName)
	assert.Equal(t, models.Active, account.Status)
	assert.True(t, account.Balance.Equal(dec("2750.50")))
	assert.NotEqual(t, "5678", account.PinHash)
	assert.Equal(t, "2026-03-14", account.CurrentDay)

	stored := f.stored(t, "987654321")
	assert.True(t, stored.PinMatches("5678"))
}

func TestOpenAccountRejections(t *testing.T) {
	f := newFixture(t)
	f.openAccount(t, "123456789", "1234", "0")

	tests := []struct {
		name    string
		req     models.CreateAccountRequest
		wantErr error
	}{
		{
			name:    "Duplicate number",
			req:     models.CreateAccountRequest{AccountNumber: "123456789", HolderName: "Jane Doe", Pin: "5678"},
			wantErr: ErrAccountExists,
		},
		{
			name:    "Short number",
			req:     models.CreateAccountRequest{AccountNumber: "12345", HolderName: "Jane Doe", Pin: "5678"},
			wantErr: ErrInvalidAccountNumber,
		},
		{
			name:    "Bad holder name",
			req:     models.CreateAccountRequest{AccountNumber: "987654321", HolderName: "J4ne", Pin: "5678"},
			wantErr: ErrInvalidHolderName,
		},
		{
			name:    "Bad PIN",
			req:     models.CreateAccountRequest{AccountNumber: "987654321", HolderName: "Jane Doe", Pin: "56789"},
			wantErr: ErrInvalidPin,
		},
		{
			name:    "Negative balance",
			req:     models.CreateAccountRequest{AccountNumber: "987654321", HolderName: "Jane Doe", Pin: "5678", InitialBalance: "-1"},
			wantErr: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.accounts.OpenAccount(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := f.store.Get(context.Background(), "987654321")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestGetAccount(t *testing.T) {
	f := newFixture(t)
	f.openAccount(t, "123456789", "1234", "10")

	account, err := f.accounts.GetAccount(context.Background(), "123456789")
	require.NoError(t, err)
	assert.Equal(t, "123456789", account.AccountNumber)

	_, err = f.accounts.GetAccount(context.Background(), "000000000")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	f.store.setFailures(true, false)
	_, err = f.accounts.GetAccount(context.Background(), "123456789")
	assert.ErrorIs(t, err, ErrStore)
}

func TestUnlock(t *testing.T) {
	f := newFixture(t)
	f.openAccount(t, "123456789", "1234", "10")
	ctx := context.Background()

	for i := 0; i < models.MaxFailedAttempts; i++ {
		_, _ = f.auth.Login(ctx, "123456789", "0000")
	}
	require.True(t, f.stored(t, "123456789").IsLocked())

	f.clock.Advance(time.Hour)
	account, err := f.accounts.Unlock(ctx, "123456789")
	require.NoError(t, err)
	assert.Equal(t, models.Active, account.Status)
	assert.Zero(t, account.FailedAttempts)
	assert.Equal(t, f.clock.Now(), account.UpdatedAt)

	f.login(t, "123456789", "1234")

	_, err = f.accounts.Unlock(ctx, "000000000")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestSeedSkipsExistingAccounts(t *testing.T) {
	f := newFixture(t)
	f.openAccount(t, "123456789", "4321", "1")

	sample, err := db.SampleAccounts(f.clock.Now())
	require.NoError(t, err)

	added, err := f.accounts.Seed(context.Background(), sample)
	require.NoError(t, err)
	assert.Equal(t, len(sample)-1, added)

	// the existing record wins
	assert.True(t, f.stored(t, "123456789").PinMatches("4321"))

	added, err = f.accounts.Seed(context.Background(), sample)
	require.NoError(t, err)
	assert.Zero(t, added)

	_, err = f.auth.Login(context.Background(), "444555666", "1111")
	assert.ErrorIs(t, err, ErrAccountLocked)
}

func TestResetLockouts(t *testing.T) {
	f := newFixture(t)

	sample, err := db.SampleAccounts(f.clock.Now())
	require.NoError(t, err)
	_, err = f.accounts.Seed(context.Background(), sample)
	require.NoError(t, err)

	n, err := f.accounts.ResetLockouts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f.login(t, "444555666", "1111")
	assert.Zero(t, f.stored(t, "111222333").FailedAttempts)
}

type plainStore struct {
	AccountStore
}

func TestResetLockoutsUnsupported(t *testing.T) {
	svc := NewAccountService(plainStore{db.NewMemoryStore()}, &fakeClock{}, NewAccountLocks())

	_, err := svc.ResetLockouts(context.Background())
	assert.Error(t, err)
}
