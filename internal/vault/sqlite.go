package vault

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vaultguard/vaultguard/internal/errors"
	"github.com/vaultguard/vaultguard/internal/logging"
	"github.com/vaultguard/vaultguard/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore provides SQLite-backed credential storage with WAL mode.
// It is thread-safe and supports concurrent access.
type SQLiteStore struct {
	db     *sql.DB
	logger *logging.Logger

	subMu       sync.RWMutex
	subscribers map[string][]chan models.CredentialsSnapshot
}

// NewSQLiteStore creates a new SQLite store with WAL mode enabled
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{
		db:          db,
		logger:      logging.NewLogger(),
		subscribers: make(map[string][]chan models.CredentialsSnapshot),
	}, nil
}

// DB exposes the underlying handle so other components (user accounts,
// audit trail) can share one database file.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "create migrations table", Err: err}
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "get current migration version", Err: err}
	}

	migrations := []struct {
		version int
		up      string
	}{
		{
			version: 1,
			up: `
				CREATE TABLE IF NOT EXISTS vault_records (
					id TEXT PRIMARY KEY,
					owner_id TEXT NOT NULL,
					title TEXT NOT NULL,
					username TEXT NOT NULL DEFAULT '',
					email TEXT NOT NULL DEFAULT '',
					password TEXT NOT NULL,
					url TEXT NOT NULL DEFAULT '',
					notes TEXT NOT NULL DEFAULT '',
					category TEXT NOT NULL DEFAULT 'Personal',
					favorite INTEGER NOT NULL DEFAULT 0,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL
				);
				CREATE INDEX IF NOT EXISTS idx_vault_records_owner
					ON vault_records(owner_id, updated_at DESC);
			`,
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
		}
		if _, err := tx.Exec(m.up); err != nil {
			tx.Rollback()
			return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
		}
		if err := tx.Commit(); err != nil {
			return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
		}
	}

	return nil
}

const recordColumns = "id, owner_id, title, username, email, password, url, notes, category, favorite, created_at, updated_at"

func scanRecord(row interface{ Scan(...interface{}) error }) (models.CredentialRecord, error) {
	var rec models.CredentialRecord
	var favorite int
	var createdAt, updatedAt string

	err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.Title, &rec.Username, &rec.Email,
		&rec.Password, &rec.URL, &rec.Notes, &rec.Category,
		&favorite, &createdAt, &updatedAt,
	)
	if err != nil {
		return rec, err
	}

	rec.Favorite = favorite != 0
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return rec, &errors.ErrDatabaseQuery{Operation: "parse created_at", Err: err}
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return rec, &errors.ErrDatabaseQuery{Operation: "parse updated_at", Err: err}
	}
	return rec, nil
}

// List returns the owner's records ordered by UpdatedAt descending
func (s *SQLiteStore) List(ctx context.Context, ownerID string) ([]models.CredentialRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM vault_records WHERE owner_id = ? ORDER BY updated_at DESC, id DESC",
		ownerID,
	)
	if err != nil {
		return nil, &errors.ErrRemoteUnavailable{Op: "list", Err: err}
	}
	defer rows.Close()

	result := make([]models.CredentialRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "scan record", Err: err}
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &errors.ErrRemoteUnavailable{Op: "list", Err: err}
	}
	return result, nil
}

// Get retrieves one record by ID
func (s *SQLiteStore) Get(ctx context.Context, ownerID, id string) (models.CredentialRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM vault_records WHERE owner_id = ? AND id = ?",
		ownerID, id,
	)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return models.CredentialRecord{}, &errors.ErrNotFound{ID: id}
	}
	if err != nil {
		return models.CredentialRecord{}, &errors.ErrRemoteUnavailable{Op: "get", Err: err}
	}
	return rec, nil
}

// Create validates the draft and inserts a new record
func (s *SQLiteStore) Create(ctx context.Context, ownerID string, draft models.Draft) (models.CredentialRecord, error) {
	if err := draft.Validate(); err != nil {
		return models.CredentialRecord{}, err
	}

	rec := newRecordFromDraft(ownerID, draft)
	rec.ID = uuid.New().String()
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vault_records (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OwnerID, rec.Title, rec.Username, rec.Email, rec.Password,
		rec.URL, rec.Notes, rec.Category, boolToInt(rec.Favorite),
		rec.CreatedAt.Format(time.RFC3339Nano), rec.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return models.CredentialRecord{}, &errors.ErrRemoteUnavailable{Op: "create", Err: err}
	}

	s.notify(ctx, ownerID)
	return rec, nil
}

// Update merges the provided fields into an existing record and rewrites
// UpdatedAt
func (s *SQLiteStore) Update(ctx context.Context, ownerID, id string, update models.RecordUpdate) (models.CredentialRecord, error) {
	if err := update.Validate(); err != nil {
		return models.CredentialRecord{}, err
	}

	rec, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return models.CredentialRecord{}, err
	}

	update.ApplyTo(&rec)
	rec.UpdatedAt = time.Now().UTC()

	if err := s.writeRecord(ctx, ownerID, id, rec); err != nil {
		return models.CredentialRecord{}, err
	}

	s.notify(ctx, ownerID)
	return rec, nil
}

// writeRecord rewrites a merged record. The record can vanish between the
// merge read and this write; a zero-row update must not report the merged
// record as stored.
func (s *SQLiteStore) writeRecord(ctx context.Context, ownerID, id string, rec models.CredentialRecord) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vault_records SET title = ?, username = ?, email = ?, password = ?,
			url = ?, notes = ?, category = ?, favorite = ?, updated_at = ?
		 WHERE owner_id = ? AND id = ?`,
		rec.Title, rec.Username, rec.Email, rec.Password, rec.URL, rec.Notes,
		rec.Category, boolToInt(rec.Favorite), rec.UpdatedAt.Format(time.RFC3339Nano),
		ownerID, id,
	)
	if err != nil {
		return &errors.ErrRemoteUnavailable{Op: "update", Err: err}
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return &errors.ErrNotFound{ID: id}
	}
	return nil
}

// Delete removes a record. Deleting a missing id is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM vault_records WHERE owner_id = ? AND id = ?",
		ownerID, id,
	)
	if err != nil {
		return &errors.ErrRemoteUnavailable{Op: "delete", Err: err}
	}

	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		s.notify(ctx, ownerID)
	}
	return nil
}

// ToggleFavorite writes the negation of the caller-supplied value
func (s *SQLiteStore) ToggleFavorite(ctx context.Context, ownerID, id string, current bool) (bool, error) {
	next := !current
	_, err := s.Update(ctx, ownerID, id, models.RecordUpdate{Favorite: &next})
	if err != nil {
		return current, err
	}
	return next, nil
}

// Subscribe creates a snapshot subscription for one owner
func (s *SQLiteStore) Subscribe(ownerID string) (<-chan models.CredentialsSnapshot, func()) {
	ch := make(chan models.CredentialsSnapshot, 1)

	s.subMu.Lock()
	s.subscribers[ownerID] = append(s.subscribers[ownerID], ch)
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			subs := s.subscribers[ownerID]
			for i, sub := range subs {
				if sub == ch {
					subs[i] = subs[len(subs)-1]
					s.subscribers[ownerID] = subs[:len(subs)-1]
					close(ch)
					return
				}
			}
		})
	}
	return ch, cancel
}

// notify reads the owner's current list and fans it out to subscribers.
// A full channel is drained first so slow consumers observe the latest
// snapshot instead of blocking the mutation.
func (s *SQLiteStore) notify(ctx context.Context, ownerID string) {
	s.subMu.RLock()
	active := len(s.subscribers[ownerID])
	s.subMu.RUnlock()

	if active == 0 {
		return
	}

	records, err := s.List(ctx, ownerID)
	if err != nil {
		s.logger.ErrorWithContext(ctx, "failed to build snapshot", "owner_id", ownerID, "error", err.Error())
		return
	}

	// Cancel closes channels under the write lock, so sends stay inside
	// the read lock.
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	snapshot := models.CredentialsSnapshot{Records: records}
	for _, ch := range s.subscribers[ownerID] {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure SQLiteStore implements the Store interface
var _ Store = (*SQLiteStore)(nil)
