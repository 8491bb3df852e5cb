package queue

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"postgate/internal/logging"
)

const (
	lockFileName   = ".queue.lock"
	recordSuffix   = ".json"
	lockRetryDelay = 10 * time.Millisecond
)

// FileStore keeps one JSON document per item under root.
type FileStore struct {
	root   string
	logger *slog.Logger
	mu     sync.Mutex
	lock   *flock.Flock
}

// NewFileStore prepares root and its collection directories.
func NewFileStore(root string, logger *slog.Logger) (*FileStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("queue root is empty")
	}
	for _, c := range []Collection{CollectionPending, CollectionProcessed} {
		if err := os.MkdirAll(filepath.Join(root, string(c)), 0o755); err != nil {
			return nil, &WriteError{Op: "init", Err: err}
		}
	}
	return &FileStore{
		root:   root,
		logger: logging.NewComponentLogger(logger, "queue"),
		lock:   flock.New(filepath.Join(root, lockFileName)),
	}, nil
}

// Root returns the queue directory.
func (s *FileStore) Root() string { return s.root }

func (s *FileStore) recordPath(c Collection, id string) string {
	return filepath.Join(s.root, string(c), id+recordSuffix)
}

// withLock serializes mutations across goroutines (mu) and processes (flock).
func (s *FileStore) withLock(ctx context.Context, fn func() error) error {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return &WriteError{Op: "lock", Err: err}
	}
	if !locked {
		return &WriteError{Op: "lock", Err: errors.New("queue lock not acquired")}
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("queue lock release failed", logging.Error(err))
		}
	}()
	return fn()
}

func (s *FileStore) Create(ctx context.Context, item Item) error {
	if !ValidID(item.ID) {
		return &WriteError{ID: item.ID, Op: "create", Err: errors.New("invalid id")}
	}
	if item.Status != StatusPending {
		return &InvalidTransitionError{ID: item.ID, From: "", To: item.Status}
	}
	data, err := item.Encode()
	if err != nil {
		return &WriteError{ID: item.ID, Op: "create", Err: err}
	}
	return s.withLock(ctx, func() error {
		for _, c := range []Collection{CollectionPending, CollectionProcessed} {
			if exists(s.recordPath(c, item.ID)) {
				return &DuplicateIDError{ID: item.ID, Collection: c}
			}
		}
		dir := filepath.Join(s.root, string(CollectionPending))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &WriteError{ID: item.ID, Op: "create", Err: err}
		}
		tmp, err := writeTemp(dir, item.ID, data)
		if err != nil {
			return &WriteError{ID: item.ID, Op: "create", Err: err}
		}
		defer os.Remove(tmp)
		if err := os.Link(tmp, s.recordPath(CollectionPending, item.ID)); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return &DuplicateIDError{ID: item.ID, Collection: CollectionPending}
			}
			return &WriteError{ID: item.ID, Op: "create", Err: err}
		}
		return nil
	})
}

func (s *FileStore) List(ctx context.Context, collection Collection) ([]Item, error) {
	if !collection.Valid() {
		return nil, &ReadError{Collection: collection, Err: errors.New("unknown collection")}
	}
	if err := ensureContext(ctx).Err(); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, string(collection))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &ReadError{Collection: collection, Err: err}
	}
	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordSuffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// moved by another process between ReadDir and ReadFile
				continue
			}
			return nil, &ReadError{Collection: collection, Err: err}
		}
		item, err := Decode(data)
		if err != nil {
			logging.WarnWithContext(s.logger, "skipping unreadable queue record", "queue_record_corrupt",
				logging.String("collection", string(collection)),
				logging.String("file", name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "record is invisible to all roles"),
				logging.String(logging.FieldErrorHint, "inspect or remove the file"),
			)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *FileStore) Get(ctx context.Context, collection Collection, id string) (Item, error) {
	if err := ensureContext(ctx).Err(); err != nil {
		return Item{}, err
	}
	if !collection.Valid() || !ValidID(id) {
		return Item{}, &NotFoundError{ID: id, Collection: collection}
	}
	return s.read(collection, id)
}

func (s *FileStore) read(collection Collection, id string) (Item, error) {
	data, err := os.ReadFile(s.recordPath(collection, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Item{}, &NotFoundError{ID: id, Collection: collection}
		}
		return Item{}, &ReadError{Collection: collection, Err: err}
	}
	item, err := Decode(data)
	if err != nil {
		return Item{}, &ReadError{Collection: collection, Err: fmt.Errorf("decode %s: %w", id, err)}
	}
	return item, nil
}

// Move writes the destination before removing the source, so an interrupted
// move leaves the item in both collections rather than neither.
func (s *FileStore) Move(ctx context.Context, id string, from, to Collection, mutate Mutator) (Item, error) {
	if err := checkMove(id, from, to); err != nil {
		return Item{}, err
	}
	var moved Item
	err := s.withLock(ctx, func() error {
		current, err := s.read(from, id)
		if err != nil {
			return err
		}
		if _, err := os.Stat(s.recordPath(to, id)); err == nil {
			// Left behind by a move interrupted after its write; the destination wins.
			if err := os.Remove(s.recordPath(from, id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return &WriteError{ID: id, Op: "move", Err: fmt.Errorf("remove stale source: %w", err)}
			}
			s.logger.Info("removed stale pending copy", logging.ItemID(id), logging.String("collection", string(from)))
			return &NotFoundError{ID: id, Collection: from}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return &ReadError{Collection: to, Err: err}
		}
		next, err := applyMutation(current, to, mutate)
		if err != nil {
			return err
		}
		data, err := next.Encode()
		if err != nil {
			return &WriteError{ID: id, Op: "move", Err: err}
		}
		if err := writeAtomic(s.recordPath(to, id), data); err != nil {
			return &WriteError{ID: id, Op: "move", Err: err}
		}
		if err := os.Remove(s.recordPath(from, id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &WriteError{ID: id, Op: "move", Err: fmt.Errorf("remove source: %w", err)}
		}
		moved = next
		return nil
	})
	return moved, err
}

func (s *FileStore) Update(ctx context.Context, id string, collection Collection, mutate Mutator) (Item, error) {
	if !collection.Valid() || !ValidID(id) {
		return Item{}, &NotFoundError{ID: id, Collection: collection}
	}
	var updated Item
	err := s.withLock(ctx, func() error {
		current, err := s.read(collection, id)
		if err != nil {
			return err
		}
		next, err := applyMutation(current, collection, mutate)
		if err != nil {
			return err
		}
		data, err := next.Encode()
		if err != nil {
			return &WriteError{ID: id, Op: "update", Err: err}
		}
		if err := writeAtomic(s.recordPath(collection, id), data); err != nil {
			return &WriteError{ID: id, Op: "update", Err: err}
		}
		updated = next
		return nil
	})
	return updated, err
}

func (s *FileStore) Reconcile(ctx context.Context) ([]string, error) {
	var removed []string
	err := s.withLock(ctx, func() error {
		entries, err := os.ReadDir(filepath.Join(s.root, string(CollectionPending)))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return &ReadError{Collection: CollectionPending, Err: err}
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordSuffix) {
				continue
			}
			id := strings.TrimSuffix(name, recordSuffix)
			if !exists(s.recordPath(CollectionProcessed, id)) {
				continue
			}
			if err := os.Remove(s.recordPath(CollectionPending, id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return &WriteError{ID: id, Op: "reconcile", Err: err}
			}
			s.logger.Info("removed stale pending copy", logging.ItemID(id))
			removed = append(removed, id)
		}
		return nil
	})
	return removed, err
}

// Close releases the lock handle. The store must not be used afterwards.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock.Close()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeTemp(dir, id string, data []byte) (string, error) {
	file, err := os.CreateTemp(dir, "."+id+"-*.tmp")
	if err != nil {
		return "", err
	}
	name := file.Name()
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(name)
		return "", err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(name)
		return "", err
	}
	if err := file.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := writeTemp(dir, strings.TrimSuffix(filepath.Base(path), recordSuffix), data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
