package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StatusHealthy is the only status value a passing heartbeat carries.
const StatusHealthy = "healthy"

// Heartbeat is the JSON document written to a role's health file.
type Heartbeat struct {
	Timestamp     time.Time `json:"timestamp"`
	Status        string    `json:"status"`
	UptimeSeconds float64   `json:"uptimeSeconds"`
	PostsToday    *int      `json:"postsToday,omitempty"`
}

// Path returns the heartbeat file location for role.
func Path(dir, role string) string {
	return filepath.Join(dir, role+"_health")
}

// Writer periodically records a role's heartbeat.
type Writer struct {
	path    string
	started time.Time
	now     func() time.Time
	posts   func() int
}

// WriterOption customizes a Writer.
type WriterOption func(*Writer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) WriterOption {
	return func(w *Writer) {
		if now != nil {
			w.now = now
		}
	}
}

// WithPostsToday adds the postsToday field, read from fn on each beat.
func WithPostsToday(fn func() int) WriterOption {
	return func(w *Writer) {
		w.posts = fn
	}
}

// NewWriter returns a writer for <dir>/<role>_health. Uptime is measured
// from the call.
func NewWriter(dir, role string, opts ...WriterOption) *Writer {
	w := &Writer{path: Path(dir, role), now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	w.started = w.now()
	return w
}

// Path returns the file the writer maintains.
func (w *Writer) Path() string {
	return w.path
}

// Beat writes the current heartbeat. The file is replaced atomically so a
// concurrent reader never sees a partial document.
func (w *Writer) Beat(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := w.now()
	hb := Heartbeat{
		Timestamp:     now.UTC(),
		Status:        StatusHealthy,
		UptimeSeconds: now.Sub(w.started).Seconds(),
	}
	if w.posts != nil {
		n := w.posts()
		hb.PostsToday = &n
	}
	data, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("encode heartbeat: %w", err)
	}
	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write heartbeat: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace heartbeat: %w", err)
	}
	return nil
}

// Remove deletes the heartbeat file; a missing file is not an error.
func (w *Writer) Remove() error {
	if err := os.Remove(w.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Read loads the heartbeat for role.
func Read(dir, role string) (Heartbeat, error) {
	data, err := os.ReadFile(Path(dir, role))
	if err != nil {
		return Heartbeat{}, err
	}
	var hb Heartbeat
	if err := json.Unmarshal(data, &hb); err != nil {
		return Heartbeat{}, fmt.Errorf("decode heartbeat: %w", err)
	}
	return hb, nil
}

// Check reports whether role's heartbeat is healthy and younger than maxAge.
func Check(dir, role string, maxAge time.Duration, now time.Time) (Heartbeat, error) {
	hb, err := Read(dir, role)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Heartbeat{}, fmt.Errorf("%s heartbeat missing", role)
		}
		return Heartbeat{}, err
	}
	if hb.Status != StatusHealthy {
		return hb, fmt.Errorf("%s reports status %q", role, hb.Status)
	}
	if age := now.Sub(hb.Timestamp); age > maxAge {
		return hb, fmt.Errorf("%s heartbeat is stale (%s old, max %s)", role, age.Round(time.Second), maxAge)
	}
	return hb, nil
}
