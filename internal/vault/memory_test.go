package vault

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vgerrors "github.com/vaultguard/vaultguard/internal/errors"
	"github.com/vaultguard/vaultguard/internal/models"
)

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	require.NotNil(t, store)
	assert.NotNil(t, store.records)
	assert.NotNil(t, store.subscribers)
}

func TestMemoryStore_CRUD(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	t.Run("Create assigns ID, defaults and timestamps", func(t *testing.T) {
		rec, err := store.Create(ctx, "user-1", models.Draft{Title: "GitHub", Password: "s3cret"})
		require.NoError(t, err)

		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, "user-1", rec.OwnerID)
		assert.False(t, rec.Favorite)
		assert.Equal(t, models.DefaultCategory, rec.Category)
		assert.False(t, rec.CreatedAt.IsZero())
		assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)
	})

	t.Run("Create rejects invalid draft", func(t *testing.T) {
		var verr *vgerrors.ErrValidation

		_, err := store.Create(ctx, "user-1", models.Draft{Password: "s3cret"})
		require.ErrorAs(t, err, &verr)

		_, err = store.Create(ctx, "user-1", models.Draft{Title: "GitHub"})
		require.ErrorAs(t, err, &verr)
	})

	t.Run("Get returns stored record", func(t *testing.T) {
		created, err := store.Create(ctx, "user-1", models.Draft{Title: "Bank", Password: "hunter2"})
		require.NoError(t, err)

		got, err := store.Get(ctx, "user-1", created.ID)
		require.NoError(t, err)
		assert.Equal(t, created, got)
	})

	t.Run("Get missing record", func(t *testing.T) {
		var notFound *vgerrors.ErrNotFound
		_, err := store.Get(ctx, "user-1", "missing")
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "missing", notFound.ID)
	})

	t.Run("Get is owner scoped", func(t *testing.T) {
		created, err := store.Create(ctx, "user-1", models.Draft{Title: "Mail", Password: "pw"})
		require.NoError(t, err)

		var notFound *vgerrors.ErrNotFound
		_, err = store.Get(ctx, "user-2", created.ID)
		require.ErrorAs(t, err, &notFound)
	})

	t.Run("Update merges partial fields and rewrites UpdatedAt", func(t *testing.T) {
		created, err := store.Create(ctx, "user-1", models.Draft{Title: "Shop", Username: "me", Password: "pw"})
		require.NoError(t, err)

		time.Sleep(2 * time.Millisecond)

		title := "Shop (new)"
		updated, err := store.Update(ctx, "user-1", created.ID, models.RecordUpdate{Title: &title})
		require.NoError(t, err)

		assert.Equal(t, "Shop (new)", updated.Title)
		assert.Equal(t, "me", updated.Username)
		assert.Equal(t, "pw", updated.Password)
		assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
		assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	})

	t.Run("Update missing record", func(t *testing.T) {
		var notFound *vgerrors.ErrNotFound
		title := "x"
		_, err := store.Update(ctx, "user-1", "missing", models.RecordUpdate{Title: &title})
		require.ErrorAs(t, err, &notFound)
	})

	t.Run("Delete then List excludes the record", func(t *testing.T) {
		created, err := store.Create(ctx, "user-1", models.Draft{Title: "Temp", Password: "pw"})
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, "user-1", created.ID))

		records, err := store.List(ctx, "user-1")
		require.NoError(t, err)
		for _, rec := range records {
			assert.NotEqual(t, created.ID, rec.ID)
		}
	})

	t.Run("Delete is idempotent", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, "user-1", "already-gone"))
		assert.NoError(t, store.Delete(ctx, "user-1", "already-gone"))
	})
}

func TestMemoryStore_ListOrdering(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.Create(ctx, "user-1", models.Draft{Title: "first", Password: "pw"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := store.Create(ctx, "user-1", models.Draft{Title: "second", Password: "pw"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	// Touching the oldest record moves it to the front.
	notes := "touched"
	_, err = store.Update(ctx, "user-1", first.ID, models.RecordUpdate{Notes: &notes})
	require.NoError(t, err)

	records, err := store.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first.ID, records[0].ID)
	assert.Equal(t, second.ID, records[1].ID)
}

func TestMemoryStore_ToggleFavorite(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	created, err := store.Create(ctx, "user-1", models.Draft{Title: "Fav", Password: "pw"})
	require.NoError(t, err)

	next, err := store.ToggleFavorite(ctx, "user-1", created.ID, false)
	require.NoError(t, err)
	assert.True(t, next)

	got, err := store.Get(ctx, "user-1", created.ID)
	require.NoError(t, err)
	assert.True(t, got.Favorite)

	// The toggle writes the negation of the supplied value, not of the
	// stored one.
	next, err = store.ToggleFavorite(ctx, "user-1", created.ID, true)
	require.NoError(t, err)
	assert.False(t, next)

	var notFound *vgerrors.ErrNotFound
	_, err = store.ToggleFavorite(ctx, "user-1", "missing", false)
	require.ErrorAs(t, err, &notFound)
}

func TestMemoryStore_Subscription(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ch, cancel := store.Subscribe("user-1")
	defer cancel()

	created, err := store.Create(ctx, "user-1", models.Draft{Title: "Watch", Password: "pw"})
	require.NoError(t, err)

	select {
	case snapshot := <-ch:
		require.Len(t, snapshot.Records, 1)
		assert.Equal(t, created.ID, snapshot.Records[0].ID)
	case <-time.After(time.Second):
		t.Fatal("expected snapshot after create")
	}

	// Mutations for other owners do not reach this subscriber.
	_, err = store.Create(ctx, "user-2", models.Draft{Title: "Other", Password: "pw"})
	require.NoError(t, err)

	select {
	case snapshot := <-ch:
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryStore_SubscriptionKeepsLatestSnapshot(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ch, cancel := store.Subscribe("user-1")
	defer cancel()

	// Two mutations without a read in between: the slow consumer sees the
	// latest snapshot, not the intermediate one.
	_, err := store.Create(ctx, "user-1", models.Draft{Title: "one", Password: "pw"})
	require.NoError(t, err)
	_, err = store.Create(ctx, "user-1", models.Draft{Title: "two", Password: "pw"})
	require.NoError(t, err)

	select {
	case snapshot := <-ch:
		assert.Len(t, snapshot.Records, 2)
	case <-time.After(time.Second):
		t.Fatal("expected snapshot")
	}
}

func TestMemoryStore_UnsubscribeIsIdempotent(t *testing.T) {
	store := NewMemoryStore()

	ch, cancel := store.Subscribe("user-1")
	cancel()
	cancel() // second call is a no-op

	_, open := <-ch
	assert.False(t, open)

	// Mutations after cancel must not panic.
	_, err := store.Create(context.Background(), "user-1", models.Draft{Title: "after", Password: "pw"})
	assert.NoError(t, err)
}

func TestCountingStore_NoDispatchOnInvalidDraft(t *testing.T) {
	counting := NewCountingStore(NewMemoryStore())
	ctx := context.Background()

	_, err := counting.Create(ctx, "user-1", models.Draft{Title: "", Password: ""})

	var verr *vgerrors.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, int64(0), counting.CreateCalls.Load(), "invalid draft must not reach the store")

	_, err = counting.Create(ctx, "user-1", models.Draft{Title: "ok", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), counting.CreateCalls.Load())
}
