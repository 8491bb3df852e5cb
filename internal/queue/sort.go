package queue

import (
	"sort"
)

// SortNewest orders items by creation time descending, ties by id ascending.
func SortNewest(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}

// SortOldest orders items by creation time ascending, ties by id ascending.
func SortOldest(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}

// Merge combines both collections into one list keyed by id. When a crash
// left an item in both collections, the processed copy wins.
func Merge(pending, processed []Item) []Item {
	seen := make(map[string]struct{}, len(processed))
	out := make([]Item, 0, len(pending)+len(processed))
	for _, item := range processed {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	for _, item := range pending {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}
