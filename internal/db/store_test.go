package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abkawan/atm-teller/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	models.PinHashCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func testAccount(number string) *models.Account {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	a := &models.Account{
		AccountNumber:  number,
		HolderName:     "John Smith",
		PinHash:        "hash",
		Balance:        decimal.RequireFromString("1500.05"),
		Status:         models.Active,
		FailedAttempts: 1,
		DailyDeposited: decimal.RequireFromString("250.10"),
		DailyWithdrawn: decimal.RequireFromString("99.99"),
		CurrentDay:     "2026-03-14",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	a.History.Append(models.TransactionEntry{
		ID:               "e1",
		Timestamp:        now,
		Kind:             models.Deposit,
		Amount:           decimal.RequireFromString("250.10"),
		ResultingBalance: decimal.RequireFromString("1500.05"),
	})
	return a
}

func assertSameAccount(t *testing.T, want, got *models.Account) {
	t.Helper()

	assert.Equal(t, want.AccountNumber, got.AccountNumber)
	assert.Equal(t, want.HolderName, got.HolderName)
	assert.Equal(t, want.PinHash, got.PinHash)
	assert.True(t, want.Balance.Equal(got.Balance), "balance %s != %s", want.Balance, got.Balance)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.FailedAttempts, got.FailedAttempts)
	assert.True(t, want.DailyDeposited.Equal(got.DailyDeposited))
	assert.True(t, want.DailyWithdrawn.Equal(got.DailyWithdrawn))
	assert.Equal(t, want.CurrentDay, got.CurrentDay)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))

	wantEntries, gotEntries := want.History.Entries(), got.History.Entries()
	require.Len(t, gotEntries, len(wantEntries))
	for i := range wantEntries {
		assert.Equal(t, wantEntries[i].ID, gotEntries[i].ID)
		assert.Equal(t, wantEntries[i].Kind, gotEntries[i].Kind)
		assert.True(t, wantEntries[i].Amount.Equal(gotEntries[i].Amount))
		assert.True(t, wantEntries[i].ResultingBalance.Equal(gotEntries[i].ResultingBalance))
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "123456789")
	assert.ErrorIs(t, err, ErrNotFound)

	a := testAccount("123456789")
	require.NoError(t, store.Put(ctx, a))

	got, err := store.Get(ctx, "123456789")
	require.NoError(t, err)
	assertSameAccount(t, a, got)

	// callers get copies
	got.Balance = decimal.Zero
	got.History.Append(models.TransactionEntry{ID: "e2"})
	again, err := store.Get(ctx, "123456789")
	require.NoError(t, err)
	assert.True(t, again.Balance.Equal(a.Balance))
	assert.Equal(t, 1, again.History.Len())
}

func TestMemoryStoreHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewMemoryStore()
	assert.ErrorIs(t, store.Put(ctx, testAccount("123456789")), context.Canceled)
}

func TestMemoryStoreResetLockouts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	locked := testAccount("444555666")
	locked.Status = models.Locked
	locked.FailedAttempts = 3
	clean := testAccount("123456789")
	clean.FailedAttempts = 0

	require.NoError(t, store.Put(ctx, locked))
	require.NoError(t, store.Put(ctx, clean))

	n, err := store.ResetLockouts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Get(ctx, "444555666")
	require.NoError(t, err)
	assert.Equal(t, models.Active, got.Status)
	assert.Zero(t, got.FailedAttempts)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounts.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	a := testAccount("123456789")
	require.NoError(t, store.Put(ctx, a))

	_, err = os.Stat(path)
	require.NoError(t, err, "file written on put")
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file renamed away")

	reopened, err := NewFileStore(path)
	require.NoError(t, err)

	got, err := reopened.Get(ctx, "123456789")
	require.NoError(t, err)
	assertSameAccount(t, a, got)

	_, err = reopened.Get(ctx, "000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreRollsBackFailedWrite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "missing", "accounts.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	err = store.Put(ctx, testAccount("123456789"))
	require.Error(t, err)

	_, err = store.Get(ctx, "123456789")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreResetLockouts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounts.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	locked := testAccount("444555666")
	locked.Status = models.Locked
	locked.FailedAttempts = 3
	require.NoError(t, store.Put(ctx, locked))

	n, err := store.ResetLockouts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "444555666")
	require.NoError(t, err)
	assert.Equal(t, models.Active, got.Status)
}

func TestFileStoreResetLockoutsRollsBackFailedWrite(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "store")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	store, err := NewFileStore(filepath.Join(dir, "accounts.json"))
	require.NoError(t, err)

	locked := testAccount("444555666")
	locked.Status = models.Locked
	locked.FailedAttempts = 3
	require.NoError(t, store.Put(ctx, locked))

	// the next flush has nowhere to write
	require.NoError(t, os.RemoveAll(dir))

	n, err := store.ResetLockouts(ctx)
	require.Error(t, err)
	assert.Zero(t, n)

	got, err := store.Get(ctx, "444555666")
	require.NoError(t, err)
	assert.Equal(t, models.Locked, got.Status)
	assert.Equal(t, 3, got.FailedAttempts)
}

func TestSampleAccounts(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	accounts, err := SampleAccounts(now)
	require.NoError(t, err)
	require.Len(t, accounts, 5)

	byNumber := make(map[string]*models.Account)
	for _, a := range accounts {
		byNumber[a.AccountNumber] = a
	}

	john := byNumber["123456789"]
	require.NotNil(t, john)
	assert.True(t, john.PinMatches("1234"))
	assert.True(t, john.Balance.Equal(decimal.RequireFromString("1500")))
	assert.Equal(t, 3, john.History.Len())
	assert.Equal(t, models.Deposit, john.History.Entries()[0].Kind)

	assert.True(t, byNumber["444555666"].IsLocked())
	assert.Equal(t, 2, byNumber["111222333"].FailedAttempts)
}
