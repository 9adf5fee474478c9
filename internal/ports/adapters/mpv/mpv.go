// Package mpv drives a running mpv instance through its JSON IPC socket
// (mpv --input-ipc-server=<path>).
package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"
)

type command struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// reply is either a command response or an unsolicited event.
type reply struct {
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	RequestID int64           `json:"request_id"`
	Event     string          `json:"event"`
}

// Client sends one command at a time and waits for the matching reply.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	mu      sync.Mutex
	nextID  int64
	timeout time.Duration
}

func Connect(ctx context.Context, socketPath string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to mpv: %w", err)
	}
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Client{conn: conn, scanner: sc, timeout: 5 * time.Second}, nil
}

func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) SeekTo(ctx context.Context, seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	_, err := c.send(ctx, "seek", seconds, "absolute")
	return err
}

func (c *Client) Play(ctx context.Context) error {
	_, err := c.send(ctx, "set_property", "pause", false)
	return err
}

func (c *Client) Pause(ctx context.Context) error {
	_, err := c.send(ctx, "set_property", "pause", true)
	return err
}

// Position returns the current playback time in seconds.
func (c *Client) Position(ctx context.Context) (float64, error) {
	data, err := c.send(ctx, "get_property", "time-pos")
	if err != nil {
		return 0, err
	}
	var pos float64
	if err := json.Unmarshal(data, &pos); err != nil {
		return 0, fmt.Errorf("decode time-pos: %w", err)
	}
	return pos, nil
}

// Load opens path in the player, replacing what is playing.
func (c *Client) Load(ctx context.Context, path string) error {
	_, err := c.send(ctx, "loadfile", path, "replace")
	return err
}

func (c *Client) send(ctx context.Context, args ...any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	data, err := json.Marshal(command{Command: args, RequestID: id})
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	defer c.conn.SetDeadline(time.Time{})

	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("write command: %w", err)
	}
	for {
		if !c.scanner.Scan() {
			if err := c.scanner.Err(); err != nil {
				return nil, fmt.Errorf("read reply: %w", err)
			}
			return nil, fmt.Errorf("mpv closed the connection")
		}
		var r reply
		if err := json.Unmarshal(c.scanner.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("unmarshal reply: %w", err)
		}
		if r.Event != "" || r.RequestID != id {
			continue
		}
		if r.Error != "" && r.Error != "success" {
			return nil, fmt.Errorf("mpv %v: %s", args[0], r.Error)
		}
		return r.Data, nil
	}
}
