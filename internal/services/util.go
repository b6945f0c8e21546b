package services

import (
	"cmp"
	"slices"

	"github.com/isdelr/ender-feed-be/internal/models"
)

// dedupe returns ids without duplicates or empty strings, keeping first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sortUsers(users []models.User) {
	slices.SortFunc(users, func(a, b models.User) int {
		if c := cmp.Compare(a.Username, b.Username); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
