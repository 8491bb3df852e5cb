package api

import "postgate/internal/queue"

// FilterByStatus keeps items whose status is one of statuses. No statuses
// means no filtering.
func FilterByStatus(items []queue.Item, statuses ...queue.Status) []queue.Item {
	if len(statuses) == 0 {
		return items
	}
	wanted := make(map[queue.Status]struct{}, len(statuses))
	for _, status := range statuses {
		wanted[status] = struct{}{}
	}
	filtered := make([]queue.Item, 0, len(items))
	for _, item := range items {
		if _, ok := wanted[item.Status]; ok {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// Limit truncates items to at most n entries; n <= 0 keeps all.
func Limit(items []queue.Item, n int) []queue.Item {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	if items == nil {
		return []queue.Item{}
	}
	return items
}

// PostState summarizes the publish outcome of an item for display.
func PostState(item queue.Item) string {
	switch {
	case item.Posted:
		return "posted"
	case item.PostError != "":
		return "failed"
	case item.Status == queue.StatusApproved:
		return "queued"
	default:
		return "-"
	}
}
