package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abkawan/atm-teller/internal/models"
	_ "github.com/lib/pq"
)

// Postgres.go handles PostgreSQL account storage
type Postgres struct {
	db *sql.DB
}

// creates a new Postgres instance
func NewPostgres(connStr string) (*Postgres, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// wraps an already opened handle
func NewPostgresFromDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// closes the database connection
func (p *Postgres) Close() error {
	return p.db.Close()
}

// initialize the database schema
func (p *Postgres) InitSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS accounts (
		account_number VARCHAR(12) PRIMARY KEY,
		holder_name VARCHAR(50) NOT NULL,
		pin_hash TEXT NOT NULL,
		balance DECIMAL(20, 2) NOT NULL CHECK (balance >= 0),
		status VARCHAR(10) NOT NULL,
		failed_attempts SMALLINT NOT NULL DEFAULT 0,
		history JSONB NOT NULL DEFAULT '[]',
		daily_deposited DECIMAL(20, 2) NOT NULL DEFAULT 0,
		daily_withdrawn DECIMAL(20, 2) NOT NULL DEFAULT 0,
		current_day VARCHAR(10) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);`

	_, err := p.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create accounts table: %w", err)
	}
	return nil
}

// retrieves an account by number
func (p *Postgres) Get(ctx context.Context, accountNumber string) (*models.Account, error) {
	query := `
	SELECT account_number, holder_name, pin_hash, balance, status, failed_attempts,
		history, daily_deposited, daily_withdrawn, current_day, created_at, updated_at
	FROM accounts
	WHERE account_number = $1`

	var (
		account models.Account
		status  string
		history []byte
	)
	err := p.db.QueryRowContext(ctx, query, accountNumber).Scan(
		&account.AccountNumber, &account.HolderName, &account.PinHash, &account.Balance,
		&status, &account.FailedAttempts, &history, &account.DailyDeposited,
		&account.DailyWithdrawn, &account.CurrentDay, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	account.Status = models.AccountStatus(status)
	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()
	if err := json.Unmarshal(history, &account.History); err != nil {
		return nil, fmt.Errorf("failed to decode account history: %w", err)
	}

	return &account, nil
}

// inserts or replaces an account in one statement
func (p *Postgres) Put(ctx context.Context, account *models.Account) error {
	history, err := json.Marshal(account.History)
	if err != nil {
		return fmt.Errorf("failed to encode account history: %w", err)
	}

	query := `
	INSERT INTO accounts (account_number, holder_name, pin_hash, balance, status, failed_attempts,
		history, daily_deposited, daily_withdrawn, current_day, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (account_number) DO UPDATE SET
		holder_name = EXCLUDED.holder_name,
		pin_hash = EXCLUDED.pin_hash,
		balance = EXCLUDED.balance,
		status = EXCLUDED.status,
		failed_attempts = EXCLUDED.failed_attempts,
		history = EXCLUDED.history,
		daily_deposited = EXCLUDED.daily_deposited,
		daily_withdrawn = EXCLUDED.daily_withdrawn,
		current_day = EXCLUDED.current_day,
		updated_at = EXCLUDED.updated_at`

	_, err = p.db.ExecContext(ctx, query,
		account.AccountNumber, account.HolderName, account.PinHash, account.Balance,
		string(account.Status), account.FailedAttempts, string(history),
		account.DailyDeposited, account.DailyWithdrawn, account.CurrentDay,
		account.CreatedAt.UTC(), account.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	return nil
}

// ResetLockouts reactivates locked accounts and clears failed attempts
func (p *Postgres) ResetLockouts(ctx context.Context) (int, error) {
	res, err := p.db.ExecContext(ctx,
		"UPDATE accounts SET status = $1, failed_attempts = 0, updated_at = $2 WHERE status = $3 OR failed_attempts > 0",
		string(models.Active), time.Now().UTC(), string(models.Locked),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset lockouts: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count reset lockouts: %w", err)
	}
	return int(n), nil
}
