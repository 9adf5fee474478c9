// Package logplayer is a Player that only records where playback would go.
// It is used when no media player is attached.
package logplayer

import (
	"context"
	"sync"

	"github.com/forPelevin/vidbrief/internal/domain/timecode"
)

type Player struct {
	Logf func(format string, args ...any)

	mu       sync.Mutex
	position float64
	playing  bool
}

func (p *Player) SeekTo(_ context.Context, seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	p.mu.Lock()
	p.position = seconds
	p.mu.Unlock()
	p.logf("seek %s", timecode.Encode(int64(seconds*1000)))
	return nil
}

func (p *Player) Play(context.Context) error {
	p.mu.Lock()
	p.playing = true
	p.mu.Unlock()
	p.logf("play")
	return nil
}

func (p *Player) Pause(context.Context) error {
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
	p.logf("pause")
	return nil
}

// State returns the last seek position in seconds and whether playback is on.
func (p *Player) State() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position, p.playing
}

func (p *Player) logf(format string, args ...any) {
	if p.Logf != nil {
		p.Logf(format, args...)
	}
}
