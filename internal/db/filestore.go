package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/abkawan/atm-teller/internal/models"
)

const fileSnapshotVersion = 1

type fileMeta struct {
	Storage   string    `json:"storage"`
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

type fileSnapshot struct {
	Meta     fileMeta          `json:"_meta"`
	Accounts []*models.Account `json:"accounts"`
}

// FileStore keeps every account in one JSON document. Each Put rewrites the
// document through a temporary file and a rename, so a crash leaves either the
// old or the new file on disk.
type FileStore struct {
	mu       sync.Mutex
	path     string
	accounts map[string]*models.Account
}

// opens the store at path, loading it if the file exists
func NewFileStore(path string) (*FileStore, error) {
	f := &FileStore{
		path:     path,
		accounts: make(map[string]*models.Account),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("failed to read account file: %w", err)
	}

	var snap fileSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode account file: %w", err)
	}

	for _, a := range snap.Accounts {
		f.accounts[a.AccountNumber] = a
	}

	return f, nil
}

// retrieves an account by number
func (f *FileStore) Get(ctx context.Context, accountNumber string) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.accounts[accountNumber]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

// inserts or replaces an account and flushes the file. On a failed flush the
// in-memory view is rolled back to the previous record.
func (f *FileStore) Put(ctx context.Context, account *models.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	prev, existed := f.accounts[account.AccountNumber]
	f.accounts[account.AccountNumber] = account.Clone()

	if err := f.flush(); err != nil {
		if existed {
			f.accounts[account.AccountNumber] = prev
		} else {
			delete(f.accounts, account.AccountNumber)
		}
		return err
	}

	return nil
}

// ResetLockouts reactivates every locked account and returns how many changed.
// A failed flush leaves every account as it was.
func (f *FileStore) ResetLockouts(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	prev := make(map[string]*models.Account, len(f.accounts))
	for number, a := range f.accounts {
		prev[number] = a.Clone()
	}

	n := resetLockouts(f.accounts)
	if n == 0 {
		return 0, nil
	}
	if err := f.flush(); err != nil {
		f.accounts = prev
		return 0, err
	}
	return n, nil
}

func (f *FileStore) flush() error {
	snap := fileSnapshot{
		Meta: fileMeta{
			Storage:   "json_file",
			Version:   fileSnapshotVersion,
			Timestamp: time.Now().UTC(),
		},
		Accounts: make([]*models.Account, 0, len(f.accounts)),
	}
	for _, a := range f.accounts {
		snap.Accounts = append(snap.Accounts, a)
	}
	sort.Slice(snap.Accounts, func(i, j int) bool {
		return snap.Accounts[i].AccountNumber < snap.Accounts[j].AccountNumber
	})

	tmp := f.path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create account file: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		out.Close()
		return fmt.Errorf("failed to encode account file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close account file: %w", err)
	}

	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace account file: %w", err)
	}
	return nil
}
