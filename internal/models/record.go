package models

import (
	"time"

	"github.com/vaultguard/vaultguard/internal/errors"
)

// DefaultCategory is assigned when a draft does not name one.
const DefaultCategory = "Personal"

// CredentialRecord is one stored secret entry. The secret value is held in
// plaintext; there is no client-side encryption in this design.
type CredentialRecord struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Title    string `json:"title"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
	URL      string `json:"url,omitempty"`
	Notes    string `json:"notes,omitempty"`
	Category string `json:"category"`
	Favorite bool   `json:"favorite"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Draft carries the caller-settable fields of a credential record.
type Draft struct {
	Title    string `json:"title"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
	URL      string `json:"url,omitempty"`
	Notes    string `json:"notes,omitempty"`
	Category string `json:"category,omitempty"`
}

// Validate enforces the write invariant: title and password must be
// non-empty before any store call is attempted.
func (d *Draft) Validate() error {
	if d.Title == "" {
		return &errors.ErrValidation{Field: "title", Reason: "must not be empty"}
	}
	if d.Password == "" {
		return &errors.ErrValidation{Field: "password", Reason: "must not be empty"}
	}
	return nil
}

// RecordUpdate holds the fields of a partial update. Nil fields are left
// untouched by the merge.
type RecordUpdate struct {
	Title    *string `json:"title,omitempty"`
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	URL      *string `json:"url,omitempty"`
	Notes    *string `json:"notes,omitempty"`
	Category *string `json:"category,omitempty"`
	Favorite *bool   `json:"favorite,omitempty"`
}

// Validate rejects updates that would blank a required field.
func (u *RecordUpdate) Validate() error {
	if u.Title != nil && *u.Title == "" {
		return &errors.ErrValidation{Field: "title", Reason: "must not be empty"}
	}
	if u.Password != nil && *u.Password == "" {
		return &errors.ErrValidation{Field: "password", Reason: "must not be empty"}
	}
	return nil
}

// Empty reports whether the update changes nothing.
func (u *RecordUpdate) Empty() bool {
	return u.Title == nil && u.Username == nil && u.Email == nil &&
		u.Password == nil && u.URL == nil && u.Notes == nil &&
		u.Category == nil && u.Favorite == nil
}

// ApplyTo merges the update into a record and reports whether any field
// changed. The caller owns rewriting UpdatedAt.
func (u *RecordUpdate) ApplyTo(rec *CredentialRecord) {
	if u.Title != nil {
		rec.Title = *u.Title
	}
	if u.Username != nil {
		rec.Username = *u.Username
	}
	if u.Email != nil {
		rec.Email = *u.Email
	}
	if u.Password != nil {
		rec.Password = *u.Password
	}
	if u.URL != nil {
		rec.URL = *u.URL
	}
	if u.Notes != nil {
		rec.Notes = *u.Notes
	}
	if u.Category != nil {
		rec.Category = *u.Category
	}
	if u.Favorite != nil {
		rec.Favorite = *u.Favorite
	}
}

// NormalizeDocument maps a raw stored document onto the canonical record
// shape. Historical writes disagree on field naming (favorite vs isFavorite,
// title vs name, url vs website vs link); every read path funnels through
// here so the rest of the system never sees the drift.
func NormalizeDocument(doc map[string]interface{}) CredentialRecord {
	rec := CredentialRecord{
		ID:       docString(doc, "id"),
		OwnerID:  firstDocString(doc, "owner_id", "ownerId", "userId"),
		Title:    firstDocString(doc, "title", "name"),
		Username: docString(doc, "username"),
		Email:    docString(doc, "email"),
		Password: docString(doc, "password"),
		URL:      firstDocString(doc, "url", "website", "link"),
		Notes:    docString(doc, "notes"),
		Category: firstDocString(doc, "category"),
	}

	if rec.Category == "" {
		rec.Category = DefaultCategory
	}

	if v, ok := doc["favorite"].(bool); ok {
		rec.Favorite = v
	} else if v, ok := doc["isFavorite"].(bool); ok {
		rec.Favorite = v
	}

	rec.CreatedAt = docTime(doc, "created_at", "createdAt")
	rec.UpdatedAt = docTime(doc, "updated_at", "updatedAt")

	return rec
}

func docString(doc map[string]interface{}, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}

func firstDocString(doc map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v := docString(doc, key); v != "" {
			return v
		}
	}
	return ""
}

func docTime(doc map[string]interface{}, keys ...string) time.Time {
	for _, key := range keys {
		switch v := doc[key].(type) {
		case time.Time:
			return v
		case string:
			if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
				return ts
			}
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				return ts
			}
		}
	}
	return time.Time{}
}
