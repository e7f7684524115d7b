// Package vault provides credential record storage with live snapshot
// subscriptions. Implementations cover an in-memory store, a SQLite store,
// and an HTTP client adapter against a remote VaultGuard server.
package vault

import (
	"context"

	"github.com/vaultguard/vaultguard/internal/models"
)

// Store defines credential record storage scoped to one owner.
//
// List results are ordered by UpdatedAt descending. Create assigns the ID,
// Favorite=false and both timestamps; Update merges only the provided
// fields and always rewrites UpdatedAt. Delete is idempotent from the
// caller's perspective: a missing id deletes silently.
//
// Subscriptions deliver the owner's full current list on every change
// (full-snapshot replace semantics). A mutating call's return value may
// race the next snapshot; subscribers treat the snapshot stream, not the
// return value, as the source of truth for list state.
type Store interface {
	List(ctx context.Context, ownerID string) ([]models.CredentialRecord, error)
	Get(ctx context.Context, ownerID, id string) (models.CredentialRecord, error)
	Create(ctx context.Context, ownerID string, draft models.Draft) (models.CredentialRecord, error)
	Update(ctx context.Context, ownerID, id string, update models.RecordUpdate) (models.CredentialRecord, error)
	Delete(ctx context.Context, ownerID, id string) error

	// ToggleFavorite writes the negation of the caller-supplied current
	// value without re-reading the stored flag first. Concurrent toggles
	// from two sessions can race; this is a documented gap, not corrected.
	ToggleFavorite(ctx context.Context, ownerID, id string, current bool) (bool, error)

	// Subscribe returns a snapshot channel for one owner and a cancel
	// function. The caller owns calling cancel exactly once; cancel is
	// safe to call again but later calls are no-ops. Slow consumers lose
	// intermediate snapshots, never the latest.
	Subscribe(ownerID string) (<-chan models.CredentialsSnapshot, func())

	Close() error
}

// newRecordFromDraft builds the stored shape shared by implementations.
func newRecordFromDraft(ownerID string, draft models.Draft) models.CredentialRecord {
	category := draft.Category
	if category == "" {
		category = models.DefaultCategory
	}
	return models.CredentialRecord{
		OwnerID:  ownerID,
		Title:    draft.Title,
		Username: draft.Username,
		Email:    draft.Email,
		Password: draft.Password,
		URL:      draft.URL,
		Notes:    draft.Notes,
		Category: category,
		Favorite: false,
	}
}
