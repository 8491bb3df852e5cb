package queue

import (
	"context"
	"fmt"
	"log/slog"

	"postgate/internal/config"
)

// Store persists items across the pending and processed collections.
// Implementations are safe for concurrent use by multiple goroutines and by
// multiple processes sharing the same root.
type Store interface {
	// Create writes a new item into pending. The id must be absent from both
	// collections.
	Create(ctx context.Context, item Item) error
	// List returns every well-formed record in collection, in no particular
	// order. Unparsable records are skipped.
	List(ctx context.Context, collection Collection) ([]Item, error)
	// Get loads one record.
	Get(ctx context.Context, collection Collection, id string) (Item, error)
	// Move reads id from one collection, applies mutate, writes it to the
	// other collection, and removes the source.
	Move(ctx context.Context, id string, from, to Collection, mutate Mutator) (Item, error)
	// Update rewrites id in place after applying mutate.
	Update(ctx context.Context, id string, collection Collection, mutate Mutator) (Item, error)
	// Reconcile removes pending copies of ids already present in processed
	// and returns the ids it removed.
	Reconcile(ctx context.Context) ([]string, error)
	Close() error
}

// Open returns the backend selected by cfg.Queue.Backend.
func Open(cfg *config.Config, logger *slog.Logger) (Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	switch cfg.Queue.Backend {
	case "sqlite":
		return OpenSQLite(cfg.Queue.Path, logger)
	case "files", "":
		return NewFileStore(cfg.Queue.Path, logger)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}

// Reader is the read-only subset of Store.
type Reader interface {
	List(ctx context.Context, collection Collection) ([]Item, error)
	Get(ctx context.Context, collection Collection, id string) (Item, error)
}

// Snapshot lists both collections and merges them, processed copies winning.
func Snapshot(ctx context.Context, store Reader) ([]Item, error) {
	pending, err := store.List(ctx, CollectionPending)
	if err != nil {
		return nil, err
	}
	processed, err := store.List(ctx, CollectionProcessed)
	if err != nil {
		return nil, err
	}
	return Merge(pending, processed), nil
}

// Find looks id up in processed first, then pending.
func Find(ctx context.Context, store Reader, id string) (Item, error) {
	item, err := store.Get(ctx, CollectionProcessed, id)
	if err == nil || !IsNotFound(err) {
		return item, err
	}
	return store.Get(ctx, CollectionPending, id)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func checkMove(id string, from, to Collection) error {
	if !ValidID(id) {
		return &NotFoundError{ID: id, Collection: from}
	}
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("move %s: unknown collection %q -> %q", id, from, to)
	}
	if from == to {
		return fmt.Errorf("move %s: source and destination are both %s", id, from)
	}
	return nil
}

// applyMutation runs mutate on a copy of item and enforces that the result
// still belongs in want.
func applyMutation(item Item, want Collection, mutate Mutator) (Item, error) {
	next := item.Clone()
	if mutate != nil {
		if err := mutate(&next); err != nil {
			return Item{}, err
		}
	}
	if next.ID != item.ID {
		return Item{}, fmt.Errorf("mutator changed id %s to %s", item.ID, next.ID)
	}
	if got := CollectionFor(next.Status); got != want {
		return Item{}, &InvalidTransitionError{ID: item.ID, From: item.Status, To: next.Status}
	}
	return next, nil
}
