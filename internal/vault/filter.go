package vault

import (
	"strings"

	"github.com/vaultguard/vaultguard/internal/models"
)

// CategoryAll matches every category in Filter.
const CategoryAll = "all"

// Filter narrows a snapshot by search query, category and favorite flag.
// It always returns a fresh slice: derived list state is recomputed per
// snapshot, never mutated in place.
func Filter(records []models.CredentialRecord, query, category string, favoritesOnly bool) []models.CredentialRecord {
	result := make([]models.CredentialRecord, 0, len(records))
	needle := strings.ToLower(strings.TrimSpace(query))

	for _, rec := range records {
		if favoritesOnly && !rec.Favorite {
			continue
		}
		if category != "" && category != CategoryAll && !strings.EqualFold(rec.Category, category) {
			continue
		}
		if needle != "" && !matches(rec, needle) {
			continue
		}
		result = append(result, rec)
	}
	return result
}

func matches(rec models.CredentialRecord, needle string) bool {
	return strings.Contains(strings.ToLower(rec.Title), needle) ||
		strings.Contains(strings.ToLower(rec.Username), needle) ||
		strings.Contains(strings.ToLower(rec.URL), needle)
}

// Categories returns the distinct categories present in a snapshot,
// preserving first-seen order.
func Categories(records []models.CredentialRecord) []string {
	seen := make(map[string]bool)
	var result []string
	for _, rec := range records {
		key := strings.ToLower(rec.Category)
		if rec.Category == "" || seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, rec.Category)
	}
	return result
}
