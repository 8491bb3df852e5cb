package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"postgate/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLiteStore keeps one row per item in <root>/queue.db.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenSQLite initializes or connects to the queue database under root.
func OpenSQLite(root string, logger *slog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &WriteError{Op: "init", Err: err}
	}
	dbPath := filepath.Join(root, "queue.db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	store := &SQLiteStore{db: db, path: dbPath, logger: logging.NewComponentLogger(logger, "queue")}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	return retryOnBusy(ctx, func() error {
		var tableExists int
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
		).Scan(&tableExists); err != nil {
			return fmt.Errorf("check schema_version table: %w", err)
		}
		if tableExists == 0 {
			return s.createSchema(ctx)
		}
		var version int
		if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		if version != schemaVersion {
			return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
		}
		return nil
	})
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_version").Scan(&count); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if count == 0 {
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	ctx = ensureContext(ctx)
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *SQLiteStore) Create(ctx context.Context, item Item) error {
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
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err = retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			`INSERT INTO queue_items (id, collection, document, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			item.ID, CollectionPending, string(data), item.CreatedAt.UTC().Format(time.RFC3339Nano), now,
		)
		return execErr
	})
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		collection := CollectionPending
		if existing, findErr := s.collectionOf(ctx, item.ID); findErr == nil {
			collection = existing
		}
		return &DuplicateIDError{ID: item.ID, Collection: collection}
	default:
		return &WriteError{ID: item.ID, Op: "create", Err: err}
	}
}

func (s *SQLiteStore) collectionOf(ctx context.Context, id string) (Collection, error) {
	var c string
	if err := s.db.QueryRowContext(ctx, `SELECT collection FROM queue_items WHERE id = ?`, id).Scan(&c); err != nil {
		return "", err
	}
	return Collection(c), nil
}

func (s *SQLiteStore) List(ctx context.Context, collection Collection) ([]Item, error) {
	ctx = ensureContext(ctx)
	if !collection.Valid() {
		return nil, &ReadError{Collection: collection, Err: errors.New("unknown collection")}
	}
	var items []Item
	err := retryOnBusy(ctx, func() error {
		items = items[:0]
		rows, err := s.db.QueryContext(ctx, `SELECT id, document FROM queue_items WHERE collection = ?`, collection)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id, document string
			if err := rows.Scan(&id, &document); err != nil {
				return err
			}
			item, err := Decode([]byte(document))
			if err != nil {
				logging.WarnWithContext(s.logger, "skipping unreadable queue record", "queue_record_corrupt",
					logging.ItemID(id),
					logging.String("collection", string(collection)),
					logging.Error(err),
					logging.String(logging.FieldImpact, "record is invisible to all roles"),
				)
				continue
			}
			items = append(items, item)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, &ReadError{Collection: collection, Err: err}
	}
	return items, nil
}

func (s *SQLiteStore) Get(ctx context.Context, collection Collection, id string) (Item, error) {
	ctx = ensureContext(ctx)
	var document string
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT document FROM queue_items WHERE id = ? AND collection = ?`, id, collection,
		).Scan(&document)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, &NotFoundError{ID: id, Collection: collection}
	}
	if err != nil {
		return Item{}, &ReadError{Collection: collection, Err: err}
	}
	item, err := Decode([]byte(document))
	if err != nil {
		return Item{}, &ReadError{Collection: collection, Err: fmt.Errorf("decode %s: %w", id, err)}
	}
	return item, nil
}

// mutateRow runs read-mutate-write for one row inside a transaction guarded by
// the source collection. The loser of a race observes zero rows.
func (s *SQLiteStore) mutateRow(ctx context.Context, op, id string, from, to Collection, mutate Mutator) (Item, error) {
	ctx = ensureContext(ctx)
	var result Item
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var document string
		if err := tx.QueryRowContext(ctx,
			`SELECT document FROM queue_items WHERE id = ? AND collection = ?`, id, from,
		).Scan(&document); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &NotFoundError{ID: id, Collection: from}
			}
			return err
		}
		current, err := Decode([]byte(document))
		if err != nil {
			return &ReadError{Collection: from, Err: fmt.Errorf("decode %s: %w", id, err)}
		}
		next, err := applyMutation(current, to, mutate)
		if err != nil {
			return err
		}
		data, err := next.Encode()
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE queue_items SET collection = ?, document = ?, updated_at = ? WHERE id = ? AND collection = ?`,
			to, string(data), time.Now().UTC().Format(time.RFC3339Nano), id, from,
		)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return &NotFoundError{ID: id, Collection: from}
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		var classifier ErrorClassifier
		if errors.As(err, &classifier) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Item{}, err
		}
		return Item{}, &WriteError{ID: id, Op: op, Err: err}
	}
	return result, nil
}

func (s *SQLiteStore) Move(ctx context.Context, id string, from, to Collection, mutate Mutator) (Item, error) {
	if err := checkMove(id, from, to); err != nil {
		return Item{}, err
	}
	return s.mutateRow(ctx, "move", id, from, to, mutate)
}

func (s *SQLiteStore) Update(ctx context.Context, id string, collection Collection, mutate Mutator) (Item, error) {
	if !collection.Valid() {
		return Item{}, &NotFoundError{ID: id, Collection: collection}
	}
	return s.mutateRow(ctx, "update", id, collection, collection, mutate)
}

// Reconcile is a no-op: the primary key keeps each id in one collection.
func (s *SQLiteStore) Reconcile(ctx context.Context) ([]string, error) {
	return nil, ensureContext(ctx).Err()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
