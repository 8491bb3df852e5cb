package testsupport

import (
	"context"
	"testing"
	"time"

	"postgate/internal/config"
	"postgate/internal/logging"
	"postgate/internal/queue"
)

// MustOpenStore opens the configured queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) queue.Store {
	t.Helper()

	store, err := queue.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// ItemOption customizes a generated item.
type ItemOption func(*queue.Item)

// WithImage sets the item's image reference.
func WithImage(url string) ItemOption {
	return func(item *queue.Item) { item.ImagePath = url }
}

// WithContent sets the generated caption.
func WithContent(content string) ItemOption {
	return func(item *queue.Item) { item.Content = content }
}

// CreatedAt overrides the creation timestamp.
func CreatedAt(ts time.Time) ItemOption {
	return func(item *queue.Item) { item.CreatedAt = ts.UTC() }
}

// NewPending creates a pending item in store and returns it.
func NewPending(t testing.TB, store queue.Store, description string, opts ...ItemOption) queue.Item {
	t.Helper()

	item := queue.Item{
		ID:          queue.NewID(),
		Type:        queue.TypePost,
		Description: description,
		Status:      queue.StatusPending,
		CreatedAt:   time.Now().UTC(),
		RequestedBy: "1001",
	}
	for _, opt := range opts {
		opt(&item)
	}
	if err := store.Create(context.Background(), item); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return item
}

// NewApproved creates an item and approves it.
func NewApproved(t testing.TB, store queue.Store, description string, opts ...ItemOption) queue.Item {
	t.Helper()

	item := NewPending(t, store, description, opts...)
	approved, err := store.Move(context.Background(), item.ID, queue.CollectionPending, queue.CollectionProcessed,
		queue.ApplyDecision(queue.DecisionApprove, time.Now()))
	if err != nil {
		t.Fatalf("store.Move: %v", err)
	}
	return approved
}
