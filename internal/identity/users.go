package identity

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/vaultguard/vaultguard/internal/errors"
	"github.com/vaultguard/vaultguard/internal/models"
)

// UserStore persists user accounts. Lookups are keyed by normalized
// (lowercased, trimmed) email.
type UserStore interface {
	CreateUser(ctx context.Context, account models.UserAccount) error
	UserByEmail(ctx context.Context, email string) (models.UserAccount, error)
	UserByID(ctx context.Context, id string) (models.UserAccount, error)
	UpdateUser(ctx context.Context, account models.UserAccount) error
}

// NormalizeEmail canonicalizes an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MemoryUserStore is an in-memory UserStore for tests and ephemeral runs.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[string]models.UserAccount
	byEmail map[string]string
}

// NewMemoryUserStore creates an empty in-memory user store
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[string]models.UserAccount),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryUserStore) CreateUser(_ context.Context, account models.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := NormalizeEmail(account.Email)
	if _, exists := s.byEmail[email]; exists {
		return &errors.ErrAccountAlreadyExists{Email: account.Email}
	}
	s.byID[account.ID] = account
	s.byEmail[email] = account.ID
	return nil
}

func (s *MemoryUserStore) UserByEmail(_ context.Context, email string) (models.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return models.UserAccount{}, &errors.ErrNotFound{ID: email}
	}
	return s.byID[id], nil
}

func (s *MemoryUserStore) UserByID(_ context.Context, id string) (models.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byID[id]
	if !ok {
		return models.UserAccount{}, &errors.ErrNotFound{ID: id}
	}
	return account, nil
}

func (s *MemoryUserStore) UpdateUser(_ context.Context, account models.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[account.ID]; !ok {
		return &errors.ErrNotFound{ID: account.ID}
	}
	s.byID[account.ID] = account
	s.byEmail[NormalizeEmail(account.Email)] = account.ID
	return nil
}

// SQLiteUserStore persists accounts in SQLite. It is built on a shared
// handle so accounts can live in the same database file as the vault.
type SQLiteUserStore struct {
	db *sql.DB
}

// NewSQLiteUserStore prepares the accounts table on the given handle
func NewSQLiteUserStore(db *sql.DB) (*SQLiteUserStore, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS user_accounts (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			email_verified INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "create accounts table", Err: err}
	}
	return &SQLiteUserStore{db: db}, nil
}

const accountColumns = "id, email, display_name, password_hash, email_verified, created_at, updated_at"

func scanAccount(row interface{ Scan(...interface{}) error }) (models.UserAccount, error) {
	var account models.UserAccount
	var verified int
	var createdAt, updatedAt string

	err := row.Scan(
		&account.ID, &account.Email, &account.DisplayName,
		&account.PasswordHash, &verified, &createdAt, &updatedAt,
	)
	if err != nil {
		return account, err
	}

	account.EmailVerified = verified != 0
	if account.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return account, &errors.ErrDatabaseQuery{Operation: "parse created_at", Err: err}
	}
	if account.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return account, &errors.ErrDatabaseQuery{Operation: "parse updated_at", Err: err}
	}
	return account, nil
}

func (s *SQLiteUserStore) CreateUser(ctx context.Context, account models.UserAccount) error {
	verified := 0
	if account.EmailVerified {
		verified = 1
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO user_accounts ("+accountColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		account.ID, NormalizeEmail(account.Email), account.DisplayName,
		account.PasswordHash, verified,
		account.CreatedAt.UTC().Format(time.RFC3339Nano),
		account.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return &errors.ErrAccountAlreadyExists{Email: account.Email}
		}
		return &errors.ErrDatabaseQuery{Operation: "create account", Err: err}
	}
	return nil
}

func (s *SQLiteUserStore) UserByEmail(ctx context.Context, email string) (models.UserAccount, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM user_accounts WHERE email = ?", NormalizeEmail(email))

	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return models.UserAccount{}, &errors.ErrNotFound{ID: email}
	}
	if err != nil {
		return models.UserAccount{}, &errors.ErrDatabaseQuery{Operation: "get account by email", Err: err}
	}
	return account, nil
}

func (s *SQLiteUserStore) UserByID(ctx context.Context, id string) (models.UserAccount, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM user_accounts WHERE id = ?", id)

	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return models.UserAccount{}, &errors.ErrNotFound{ID: id}
	}
	if err != nil {
		return models.UserAccount{}, &errors.ErrDatabaseQuery{Operation: "get account by id", Err: err}
	}
	return account, nil
}

func (s *SQLiteUserStore) UpdateUser(ctx context.Context, account models.UserAccount) error {
	verified := 0
	if account.EmailVerified {
		verified = 1
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE user_accounts
		 SET email = ?, display_name = ?, password_hash = ?, email_verified = ?, updated_at = ?
		 WHERE id = ?`,
		NormalizeEmail(account.Email), account.DisplayName, account.PasswordHash,
		verified, account.UpdatedAt.UTC().Format(time.RFC3339Nano), account.ID,
	)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "update account", Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "update account", Err: err}
	}
	if affected == 0 {
		return &errors.ErrNotFound{ID: account.ID}
	}
	return nil
}
