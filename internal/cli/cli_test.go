package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestSummarizeDemo(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	tmp := t.TempDir()
	out, logs, err := execute(t, "summarize", "--demo", "--demo-duration", "1m", "--title", "Weekly meeting",
		"--out", filepath.Join(tmp, "out"), "--cache", filepath.Join(tmp, "cache"), "--store", "off")
	if err != nil {
		t.Fatalf("summarize: %v\n%s", err, logs)
	}
	runDir := strings.TrimSpace(out)
	for _, name := range []string{"summary.json", "summary.md", "transcript.txt", "captions.vtt"} {
		if _, err := os.Stat(filepath.Join(runDir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
	if !strings.Contains(logs, "[vidbrief] Done (1m 0s, 5 points)") {
		t.Fatalf("missing done line:\n%s", logs)
	}
}

func TestSummarizeRejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no input", []string{"summarize", "--store", "off"}, "config: input is empty"},
		{"two inputs", []string{"summarize", "--demo", "--transcript", "t.json", "--store", "off"}, "not several"},
		{"missing video", []string{"summarize", "/nope/in.mp4", "--store", "off"}, "config: stat input:"},
		{"bad mode", []string{"summarize", "--demo", "--mode", "cloud", "--store", "off"}, `config: unknown summary mode "cloud"`},
		{"too many args", []string{"summarize", "a.mp4", "b.mp4"}, "accepts at most 1 arg(s), received 2"},
		{"unknown flag", []string{"summarize", "--clips", "3"}, "unknown flag: --clips"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRunsListAndRemove(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	tmp := t.TempDir()
	db := filepath.Join(tmp, "runs.db")
	if _, logs, err := execute(t, "summarize", "--demo", "--title", "Go tutorial", "--store", db,
		"--out", filepath.Join(tmp, "out"), "--cache", filepath.Join(tmp, "cache")); err != nil {
		t.Fatalf("summarize: %v\n%s", err, logs)
	}

	out, _, err := execute(t, "runs", "--store", db)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "Go tutorial") || !strings.Contains(lines[1], "05:00") {
		t.Fatalf("unexpected listing:\n%s", out)
	}
	id := strings.Fields(lines[1])[0]

	if _, _, err := execute(t, "runs", "rm", id, "--store", db); err != nil {
		t.Fatalf("rm: %v", err)
	}
	out, _, _ = execute(t, "runs", "--store", db)
	if strings.Contains(out, id) {
		t.Fatalf("run still listed after rm:\n%s", out)
	}
	if _, _, err := execute(t, "runs", "rm", id, "--store", db); err == nil {
		t.Fatalf("removing a missing run should fail")
	}
}

func TestRunsStoreOff(t *testing.T) {
	_, _, err := execute(t, "runs", "--store", "off")
	if !errors.Is(err, errStoreOff) {
		t.Fatalf("expected errStoreOff, got %v", err)
	}
}
