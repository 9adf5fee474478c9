package logplayer

import (
	"context"
	"fmt"
	"testing"
)

func TestPlayer(t *testing.T) {
	var lines []string
	p := &Player{Logf: func(format string, args ...any) { lines = append(lines, fmt.Sprintf(format, args...)) }}
	ctx := context.Background()

	if err := p.SeekTo(ctx, 95.4); err != nil {
		t.Fatal(err)
	}
	if err := p.Play(ctx); err != nil {
		t.Fatal(err)
	}
	pos, playing := p.State()
	if pos != 95.4 || !playing {
		t.Fatalf("State = %v, %v", pos, playing)
	}
	_ = p.SeekTo(ctx, -3)
	_ = p.Pause(ctx)
	pos, playing = p.State()
	if pos != 0 || playing {
		t.Fatalf("State = %v, %v", pos, playing)
	}
	want := []string{"seek 01:35", "play", "seek 00:00", "pause"}
	if fmt.Sprint(lines) != fmt.Sprint(want) {
		t.Fatalf("log = %q, want %q", lines, want)
	}
}
