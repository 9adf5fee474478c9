package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// fakeMPV answers every command with success, interleaving an event line,
// and records what it received.
type fakeMPV struct {
	mu       sync.Mutex
	commands [][]any
}

func (f *fakeMPV) serve(t *testing.T, ln net.Listener) {
	t.Helper()
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		var cmd command
		if err := json.Unmarshal(sc.Bytes(), &cmd); err != nil {
			t.Errorf("bad command %q: %v", sc.Text(), err)
			return
		}
		f.mu.Lock()
		f.commands = append(f.commands, cmd.Command)
		f.mu.Unlock()

		fmt.Fprintf(conn, "{\"event\":\"property-change\",\"name\":\"pause\"}\n")
		switch {
		case cmd.Command[0] == "get_property":
			fmt.Fprintf(conn, "{\"data\":61.25,\"error\":\"success\",\"request_id\":%d}\n", cmd.RequestID)
		case cmd.Command[0] == "loadfile" && cmd.Command[1] == "missing.mp4":
			fmt.Fprintf(conn, "{\"error\":\"error running command\",\"request_id\":%d}\n", cmd.RequestID)
		default:
			fmt.Fprintf(conn, "{\"data\":null,\"error\":\"success\",\"request_id\":%d}\n", cmd.RequestID)
		}
	}
}

func startFake(t *testing.T) (*fakeMPV, string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "mpv")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	sock := filepath.Join(dir, "mpv.sock")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	f := &fakeMPV{}
	go f.serve(t, ln)
	return f, sock
}

func TestClient_Commands(t *testing.T) {
	f, sock := startFake(t)
	ctx := context.Background()
	c, err := Connect(ctx, sock)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.SeekTo(ctx, 90.5); err != nil {
		t.Fatal(err)
	}
	if err := c.Play(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Pause(ctx); err != nil {
		t.Fatal(err)
	}
	pos, err := c.Position(ctx)
	if err != nil || pos != 61.25 {
		t.Fatalf("Position = %v, %v", pos, err)
	}
	if err := c.Load(ctx, "missing.mp4"); err == nil || !strings.Contains(err.Error(), "error running command") {
		t.Fatalf("expected mpv error, got %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	want := []string{
		`["seek",90.5,"absolute"]`,
		`["set_property","pause",false]`,
		`["set_property","pause",true]`,
		`["get_property","time-pos"]`,
		`["loadfile","missing.mp4","replace"]`,
	}
	if len(f.commands) != len(want) {
		t.Fatalf("got %d commands, want %d", len(f.commands), len(want))
	}
	for i, w := range want {
		b, _ := json.Marshal(f.commands[i])
		if string(b) != w {
			t.Fatalf("command %d = %s, want %s", i, b, w)
		}
	}
}

func TestConnect_NoSocket(t *testing.T) {
	if _, err := Connect(context.Background(), filepath.Join(t.TempDir(), "none.sock")); err == nil {
		t.Fatalf("expected dial error")
	}
}
