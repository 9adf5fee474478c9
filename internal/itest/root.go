//go:build integration

package itest

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// mustRepoRoot finds the module root so `go run ./cmd/vidbrief` works from
// any package directory. VIDBRIEF_REPO_ROOT wins when set.
func mustRepoRoot(t *testing.T) string {
	t.Helper()
	if dir := os.Getenv("VIDBRIEF_REPO_ROOT"); dir != "" {
		return dir
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("repo root: %v", err)
	}
	for dir := wd; ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		if filepath.Dir(dir) == dir {
			break
		}
	}
	t.Fatalf("repo root: %v", fmt.Errorf("no go.mod above %s", wd))
	return ""
}
