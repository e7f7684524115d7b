package vault

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vaultguard/vaultguard/internal/errors"
	"github.com/vaultguard/vaultguard/internal/models"
)

// MemoryStore provides in-memory credential storage. It is thread-safe and
// doubles as the test backend.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]*models.CredentialRecord // ownerID -> recordID

	subMu       sync.RWMutex
	subscribers map[string][]chan models.CredentialsSnapshot
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:     make(map[string]map[string]*models.CredentialRecord),
		subscribers: make(map[string][]chan models.CredentialsSnapshot),
	}
}

// List returns the owner's records ordered by UpdatedAt descending
func (s *MemoryStore) List(_ context.Context, ownerID string) ([]models.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(ownerID), nil
}

func (s *MemoryStore) listLocked(ownerID string) []models.CredentialRecord {
	owned := s.records[ownerID]
	result := make([]models.CredentialRecord, 0, len(owned))
	for _, rec := range owned {
		result = append(result, *rec)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result
}

// Get retrieves one record by ID
func (s *MemoryStore) Get(_ context.Context, ownerID, id string) (models.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[ownerID][id]
	if !ok {
		return models.CredentialRecord{}, &errors.ErrNotFound{ID: id}
	}
	return *rec, nil
}

// Create validates the draft and stores a new record
func (s *MemoryStore) Create(_ context.Context, ownerID string, draft models.Draft) (models.CredentialRecord, error) {
	if err := draft.Validate(); err != nil {
		return models.CredentialRecord{}, err
	}

	rec := newRecordFromDraft(ownerID, draft)
	rec.ID = uuid.New().String()
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	s.mu.Lock()
	if s.records[ownerID] == nil {
		s.records[ownerID] = make(map[string]*models.CredentialRecord)
	}
	s.records[ownerID][rec.ID] = &rec
	snapshot := s.listLocked(ownerID)
	s.mu.Unlock()

	s.notify(ownerID, snapshot)
	return rec, nil
}

// Update merges the provided fields into an existing record and rewrites
// UpdatedAt
func (s *MemoryStore) Update(_ context.Context, ownerID, id string, update models.RecordUpdate) (models.CredentialRecord, error) {
	if err := update.Validate(); err != nil {
		return models.CredentialRecord{}, err
	}

	s.mu.Lock()
	rec, ok := s.records[ownerID][id]
	if !ok {
		s.mu.Unlock()
		return models.CredentialRecord{}, &errors.ErrNotFound{ID: id}
	}

	update.ApplyTo(rec)
	rec.UpdatedAt = time.Now().UTC()
	updated := *rec
	snapshot := s.listLocked(ownerID)
	s.mu.Unlock()

	s.notify(ownerID, snapshot)
	return updated, nil
}

// Delete removes a record. Deleting a missing id is not an error.
func (s *MemoryStore) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	owned := s.records[ownerID]
	if _, ok := owned[id]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(owned, id)
	snapshot := s.listLocked(ownerID)
	s.mu.Unlock()

	s.notify(ownerID, snapshot)
	return nil
}

// ToggleFavorite writes the negation of the caller-supplied value
func (s *MemoryStore) ToggleFavorite(ctx context.Context, ownerID, id string, current bool) (bool, error) {
	next := !current
	_, err := s.Update(ctx, ownerID, id, models.RecordUpdate{Favorite: &next})
	if err != nil {
		return current, err
	}
	return next, nil
}

// Subscribe creates a snapshot subscription for one owner
func (s *MemoryStore) Subscribe(ownerID string) (<-chan models.CredentialsSnapshot, func()) {
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

// notify delivers a snapshot to every subscriber of the owner. A full
// channel is drained first so slow consumers observe the latest snapshot
// instead of blocking the mutation.
func (s *MemoryStore) notify(ownerID string, records []models.CredentialRecord) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for _, ch := range s.subscribers[ownerID] {
		snapshot := models.CredentialsSnapshot{Records: records}
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

// Clear removes all data from the store
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]map[string]*models.CredentialRecord)
}

// Close implements Store Close (no-op for memory store).
func (s *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements the Store interface
var _ Store = (*MemoryStore)(nil)
