package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/abkawan/atm-teller/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountColumns = []string{
	"account_number", "holder_name", "pin_hash", "balance", "status", "failed_attempts",
	"history", "daily_deposited", "daily_withdrawn", "current_day", "created_at", "updated_at",
}

// utcTime matches a time.Time argument at instant want, expressed in UTC
type utcTime struct {
	want time.Time
}

func (u utcTime) Match(v driver.Value) bool {
	t, ok := v.(time.Time)
	if !ok || t.Location() != time.UTC {
		return false
	}
	return u.want.IsZero() || t.Equal(u.want)
}

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewPostgresFromDB(db), mock
}

func TestPostgresGet(t *testing.T) {
	want := testAccount("123456789")
	history, err := json.Marshal(want.History)
	require.NoError(t, err)

	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantErr   error
	}{
		{
			name: "Account found",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(accountColumns).AddRow(
					want.AccountNumber, want.HolderName, want.PinHash, "1500.05", "active", 1,
					history, "250.10", "99.99", "2026-03-14", want.CreatedAt, want.UpdatedAt,
				)
				mock.ExpectQuery("SELECT account_number").WithArgs("123456789").WillReturnRows(rows)
			},
		},
		{
			name: "Account missing",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT account_number").WithArgs("123456789").WillReturnError(sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "Driver failure",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT account_number").WithArgs("123456789").WillReturnError(errors.New("connection reset"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockPostgres(t)
			tt.setupMock(mock)

			got, err := store.Get(context.Background(), "123456789")

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.name == "Driver failure":
				assert.Error(t, err)
				assert.NotErrorIs(t, err, ErrNotFound)
			default:
				require.NoError(t, err)
				assertSameAccount(t, want, got)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("Unfulfilled mock expectations: %v", err)
			}
		})
	}
}

func TestPostgresPut(t *testing.T) {
	store, mock := newMockPostgres(t)
	a := testAccount("123456789")

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(
			"123456789", "John Smith", "hash", sqlmock.AnyArg(), "active", 1,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "2026-03-14",
			a.CreatedAt, a.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Put(context.Background(), a))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPutStoresTimesInUTC(t *testing.T) {
	store, mock := newMockPostgres(t)

	a := testAccount("123456789")
	nyc := time.FixedZone("EST", -5*60*60)
	a.CreatedAt = time.Date(2026, 3, 14, 4, 30, 0, 0, nyc)
	a.UpdatedAt = time.Date(2026, 3, 14, 23, 15, 0, 0, nyc)

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(
			"123456789", "John Smith", "hash", sqlmock.AnyArg(), "active", 1,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "2026-03-14",
			utcTime{time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)},
			utcTime{time.Date(2026, 3, 15, 4, 15, 0, 0, time.UTC)},
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Put(context.Background(), a))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetReturnsUTC(t *testing.T) {
	store, mock := newMockPostgres(t)

	want := testAccount("123456789")
	history, err := json.Marshal(want.History)
	require.NoError(t, err)

	// a session time zone other than UTC
	local := want.CreatedAt.In(time.FixedZone("CET", 60*60))
	rows := sqlmock.NewRows(accountColumns).AddRow(
		want.AccountNumber, want.HolderName, want.PinHash, "1500.05", "active", 1,
		history, "250.10", "99.99", "2026-03-14", local, local,
	)
	mock.ExpectQuery("SELECT account_number").WithArgs("123456789").WillReturnRows(rows)

	got, err := store.Get(context.Background(), "123456789")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, got.CreatedAt.Location())
	assert.Equal(t, time.UTC, got.UpdatedAt.Location())
	assert.True(t, got.CreatedAt.Equal(want.CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPutFailure(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectExec("INSERT INTO accounts").WillReturnError(errors.New("disk full"))

	err := store.Put(context.Background(), testAccount("123456789"))
	assert.ErrorContains(t, err, "failed to save account")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresResetLockouts(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectExec("UPDATE accounts SET status").
		WithArgs(string(models.Active), utcTime{}, string(models.Locked)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := store.ResetLockouts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInitSchema(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS accounts .* created_at TIMESTAMPTZ NOT NULL, updated_at TIMESTAMPTZ NOT NULL").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.InitSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
