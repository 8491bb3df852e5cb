package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"postgate/internal/queue"
)

type mockQueueReader struct {
	pending   []queue.Item
	processed []queue.Item
	listErr   error
}

func (m *mockQueueReader) List(_ context.Context, c queue.Collection) ([]queue.Item, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if c == queue.CollectionPending {
		return append([]queue.Item(nil), m.pending...), nil
	}
	return append([]queue.Item(nil), m.processed...), nil
}

func (m *mockQueueReader) Get(_ context.Context, c queue.Collection, id string) (queue.Item, error) {
	source := m.pending
	if c == queue.CollectionProcessed {
		source = m.processed
	}
	for _, item := range source {
		if item.ID == id {
			return item, nil
		}
	}
	return queue.Item{}, &queue.NotFoundError{ID: id, Collection: c}
}

func fixture() *mockQueueReader {
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	return &mockQueueReader{
		pending: []queue.Item{
			{ID: "p1", Status: queue.StatusPending, CreatedAt: base.Add(3 * time.Hour)},
			// interrupted move: also present in processed
			{ID: "dup", Status: queue.StatusPending, CreatedAt: base.Add(time.Hour)},
		},
		processed: []queue.Item{
			{ID: "a1", Status: queue.StatusApproved, CreatedAt: base, Posted: true},
			{ID: "dup", Status: queue.StatusApproved, CreatedAt: base.Add(time.Hour)},
			{ID: "r1", Status: queue.StatusRejected, CreatedAt: base.Add(2 * time.Hour)},
		},
	}
}

func TestQueueService_Stats(t *testing.T) {
	svc := NewQueueService(fixture())
	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.Pending != 1 || stats.Approved != 2 || stats.Rejected != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.Total() != 4 {
		t.Fatalf("unexpected total %d", stats.Total())
	}
}

func TestQueueService_RecentNewestFirst(t *testing.T) {
	svc := NewQueueService(fixture())
	items, err := svc.Recent(context.Background(), 3)
	if err != nil {
		t.Fatalf("Recent returned error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	want := []string{"p1", "r1", "dup"}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, items[i].ID)
		}
	}
	if items[2].Status != queue.StatusApproved {
		t.Fatalf("duplicate should resolve to processed copy, got %s", items[2].Status)
	}
}

func TestQueueService_ListFilters(t *testing.T) {
	svc := NewQueueService(fixture())
	items, err := svc.List(context.Background(), queue.StatusApproved)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 approved items, got %d", len(items))
	}
	if PostState(items[1]) != "posted" || PostState(items[0]) != "queued" {
		t.Fatalf("unexpected post states %q %q", PostState(items[0]), PostState(items[1]))
	}
}

func TestQueueService_Describe(t *testing.T) {
	svc := NewQueueService(fixture())
	item, err := svc.Describe(context.Background(), "dup")
	if err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	if item.Status != queue.StatusApproved {
		t.Fatalf("expected processed copy, got %s", item.Status)
	}
	if _, err := svc.Describe(context.Background(), "missing"); !queue.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestQueueService_PropagatesErrors(t *testing.T) {
	svc := NewQueueService(&mockQueueReader{listErr: errors.New("boom")})
	if _, err := svc.Stats(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if NewQueueService(nil) != nil {
		t.Fatal("expected nil service for nil reader")
	}
}
