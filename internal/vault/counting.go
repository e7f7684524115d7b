package vault

import (
	"context"
	"sync/atomic"

	"github.com/vaultguard/vaultguard/internal/models"
)

// CountingStore wraps a Store and counts every call that reaches the
// backing store. Tests use it to assert that locally rejected operations
// never produce a store round trip.
type CountingStore struct {
	Backing Store

	ListCalls   atomic.Int64
	GetCalls    atomic.Int64
	CreateCalls atomic.Int64
	UpdateCalls atomic.Int64
	DeleteCalls atomic.Int64
	ToggleCalls atomic.Int64
}

// NewCountingStore wraps a backing store
func NewCountingStore(backing Store) *CountingStore {
	return &CountingStore{Backing: backing}
}

func (c *CountingStore) List(ctx context.Context, ownerID string) ([]models.CredentialRecord, error) {
	c.ListCalls.Add(1)
	return c.Backing.List(ctx, ownerID)
}

func (c *CountingStore) Get(ctx context.Context, ownerID, id string) (models.CredentialRecord, error) {
	c.GetCalls.Add(1)
	return c.Backing.Get(ctx, ownerID, id)
}

// Create counts only dispatched writes: an invalid draft is rejected
// before the backing store is touched.
func (c *CountingStore) Create(ctx context.Context, ownerID string, draft models.Draft) (models.CredentialRecord, error) {
	if err := draft.Validate(); err != nil {
		return models.CredentialRecord{}, err
	}
	c.CreateCalls.Add(1)
	return c.Backing.Create(ctx, ownerID, draft)
}

func (c *CountingStore) Update(ctx context.Context, ownerID, id string, update models.RecordUpdate) (models.CredentialRecord, error) {
	if err := update.Validate(); err != nil {
		return models.CredentialRecord{}, err
	}
	c.UpdateCalls.Add(1)
	return c.Backing.Update(ctx, ownerID, id, update)
}

func (c *CountingStore) Delete(ctx context.Context, ownerID, id string) error {
	c.DeleteCalls.Add(1)
	return c.Backing.Delete(ctx, ownerID, id)
}

func (c *CountingStore) ToggleFavorite(ctx context.Context, ownerID, id string, current bool) (bool, error) {
	c.ToggleCalls.Add(1)
	return c.Backing.ToggleFavorite(ctx, ownerID, id, current)
}

func (c *CountingStore) Subscribe(ownerID string) (<-chan models.CredentialsSnapshot, func()) {
	return c.Backing.Subscribe(ownerID)
}

func (c *CountingStore) Close() error {
	return c.Backing.Close()
}

var _ Store = (*CountingStore)(nil)
