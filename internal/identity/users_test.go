package identity

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vgerrors "github.com/vaultguard/vaultguard/internal/errors"
	"github.com/vaultguard/vaultguard/internal/models"
	_ "modernc.org/sqlite"
)

func newTestSQLiteUserStore(t *testing.T) *SQLiteUserStore {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewSQLiteUserStore(db)
	require.NoError(t, err)
	return store
}

func testAccount(email string) models.UserAccount {
	now := time.Now().UTC()
	return models.UserAccount{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: "$2a$10$fakehash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// userStores lets one test body cover both implementations.
func userStores(t *testing.T) map[string]UserStore {
	return map[string]UserStore{
		"memory": NewMemoryUserStore(),
		"sqlite": newTestSQLiteUserStore(t),
	}
}

func TestUserStore_CreateAndLookup(t *testing.T) {
	ctx := context.Background()

	for name, store := range userStores(t) {
		t.Run(name, func(t *testing.T) {
			account := testAccount("User@Example.com")
			require.NoError(t, store.CreateUser(ctx, account))

			byEmail, err := store.UserByEmail(ctx, "user@example.com")
			require.NoError(t, err)
			assert.Equal(t, account.ID, byEmail.ID)

			byID, err := store.UserByID(ctx, account.ID)
			require.NoError(t, err)
			assert.Equal(t, byEmail.ID, byID.ID)

			var notFound *vgerrors.ErrNotFound
			_, err = store.UserByEmail(ctx, "ghost@example.com")
			require.ErrorAs(t, err, &notFound)
			_, err = store.UserByID(ctx, "ghost")
			require.ErrorAs(t, err, &notFound)
		})
	}
}

func TestUserStore_DuplicateEmail(t *testing.T) {
	ctx := context.Background()

	for name, store := range userStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.CreateUser(ctx, testAccount("dup@example.com")))

			var exists *vgerrors.ErrAccountAlreadyExists
			err := store.CreateUser(ctx, testAccount("DUP@example.com"))
			require.ErrorAs(t, err, &exists)
		})
	}
}

func TestUserStore_Update(t *testing.T) {
	ctx := context.Background()

	for name, store := range userStores(t) {
		t.Run(name, func(t *testing.T) {
			account := testAccount("a@example.com")
			require.NoError(t, store.CreateUser(ctx, account))

			account.DisplayName = "Ada"
			account.EmailVerified = true
			account.UpdatedAt = time.Now().UTC()
			require.NoError(t, store.UpdateUser(ctx, account))

			got, err := store.UserByID(ctx, account.ID)
			require.NoError(t, err)
			assert.Equal(t, "Ada", got.DisplayName)
			assert.True(t, got.EmailVerified)

			var notFound *vgerrors.ErrNotFound
			missing := testAccount("b@example.com")
			require.ErrorAs(t, store.UpdateUser(ctx, missing), &notFound)
		})
	}
}

func TestSQLiteUserStore_CorruptTimestampSurfaces(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteUserStore(t)

	account := testAccount("corrupt@example.com")
	require.NoError(t, store.CreateUser(ctx, account))

	_, err := store.db.ExecContext(ctx,
		"UPDATE user_accounts SET updated_at = 'not-a-timestamp' WHERE id = ?", account.ID)
	require.NoError(t, err)

	_, err = store.UserByID(ctx, account.ID)
	var queryErr *vgerrors.ErrDatabaseQuery
	require.ErrorAs(t, err, &queryErr)
}
