package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteRecord places raw bytes at <root>/<collection>/<name>, bypassing the
// store. Used to simulate corrupt records and interrupted moves.
func WriteRecord(t testing.TB, root, collection, name string, data []byte) string {
	t.Helper()

	dir := filepath.Join(root, collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// CopyRecord duplicates a record file between collections.
func CopyRecord(t testing.TB, root, from, to, id string) {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(root, from, id+".json"))
	if err != nil {
		t.Fatalf("read record %s: %v", id, err)
	}
	WriteRecord(t, root, to, id+".json", data)
}
