package health

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestWriterBeatAndCheck(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start
	w := NewWriter(dir, "publisher",
		WithClock(func() time.Time { return now }),
		WithPostsToday(func() int { return 3 }),
	)

	now = start.Add(90 * time.Second)
	if err := w.Beat(context.Background()); err != nil {
		t.Fatalf("Beat failed: %v", err)
	}

	hb, err := Check(dir, "publisher", time.Minute, now.Add(10*time.Second))
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if hb.UptimeSeconds != 90 {
		t.Fatalf("expected uptime 90s, got %v", hb.UptimeSeconds)
	}
	if hb.PostsToday == nil || *hb.PostsToday != 3 {
		t.Fatalf("expected postsToday 3, got %v", hb.PostsToday)
	}
}

func TestCheckStaleHeartbeat(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := NewWriter(dir, "bot", WithClock(func() time.Time { return now }))
	if err := w.Beat(context.Background()); err != nil {
		t.Fatalf("Beat failed: %v", err)
	}

	_, err := Check(dir, "bot", time.Minute, now.Add(2*time.Minute))
	if err == nil || !strings.Contains(err.Error(), "stale") {
		t.Fatalf("expected stale error, got %v", err)
	}
}

func TestCheckMissingHeartbeat(t *testing.T) {
	_, err := Check(t.TempDir(), "bot", time.Minute, time.Now())
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Fatalf("expected missing error, got %v", err)
	}
}

func TestCheckUnhealthyStatus(t *testing.T) {
	dir := t.TempDir()
	now := time.Now().UTC()
	doc := `{"timestamp":"` + now.Format(time.RFC3339Nano) + `","status":"degraded","uptimeSeconds":1}`
	if err := os.WriteFile(Path(dir, "bot"), []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Check(dir, "bot", time.Minute, now); err == nil {
		t.Fatal("expected unhealthy status to fail")
	}
}

func TestBotHeartbeatOmitsPostsToday(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "bot")
	if err := w.Beat(context.Background()); err != nil {
		t.Fatalf("Beat failed: %v", err)
	}
	data, err := os.ReadFile(w.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(data), "postsToday") {
		t.Fatalf("unexpected postsToday field: %s", data)
	}
	if err := w.Remove(); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := w.Remove(); err != nil {
		t.Fatalf("second Remove failed: %v", err)
	}
}
