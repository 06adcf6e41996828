package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// WriteJSON marshals v into dir/name and returns the path.
func WriteJSON(tb testing.TB, dir, name string, v any) string {
	tb.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		tb.Fatalf("marshal %s: %v", name, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		tb.Fatalf("write %s: %v", name, err)
	}
	return path
}
