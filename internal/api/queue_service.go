package api

import (
	"context"

	"postgate/internal/queue"
)

// QueueReader abstracts the store operations needed for queries.
type QueueReader interface {
	List(ctx context.Context, collection queue.Collection) ([]queue.Item, error)
	Get(ctx context.Context, collection queue.Collection, id string) (queue.Item, error)
}

// QueueService exposes read-only queue aggregations.
type QueueService struct {
	store QueueReader
}

// NewQueueService constructs a QueueService around the provided reader.
func NewQueueService(store QueueReader) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store}
}

// Snapshot returns every item across both collections, deduplicated.
func (s *QueueService) Snapshot(ctx context.Context) ([]queue.Item, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	return queue.Snapshot(ctx, s.store)
}

// Stats returns counts by status.
func (s *QueueService) Stats(ctx context.Context) (StatsResponse, error) {
	items, err := s.Snapshot(ctx)
	if err != nil {
		return StatsResponse{}, err
	}
	counts := queue.Count(items)
	return StatsResponse{Pending: counts.Pending, Approved: counts.Approved, Rejected: counts.Rejected}, nil
}

// Recent returns up to limit items, newest first. A non-positive limit
// returns everything.
func (s *QueueService) Recent(ctx context.Context, limit int) ([]queue.Item, error) {
	items, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	queue.SortNewest(items)
	return Limit(items, limit), nil
}

// List returns items filtered by status, newest first.
func (s *QueueService) List(ctx context.Context, statuses ...queue.Status) ([]queue.Item, error) {
	items, err := s.Recent(ctx, 0)
	if err != nil {
		return nil, err
	}
	return FilterByStatus(items, statuses...), nil
}

// Describe fetches a single item from whichever collection holds it,
// preferring processed.
func (s *QueueService) Describe(ctx context.Context, id string) (queue.Item, error) {
	if s == nil || s.store == nil {
		return queue.Item{}, &queue.NotFoundError{ID: id}
	}
	return queue.Find(ctx, s.store, id)
}
