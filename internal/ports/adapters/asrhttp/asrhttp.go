// Package asrhttp talks to a remote speech recognition service that works on
// deferred tasks: upload audio, submit a task for its locator, poll until the
// task is terminal.
package asrhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forPelevin/vidbrief/internal/ports/adapters/endpoint"
	"github.com/forPelevin/vidbrief/internal/types"
)

const (
	DefaultPollAttempts = 60
	DefaultPollInterval = 2 * time.Second
)

// BaseURLPolicy accepts any https host and plain http on loopback.
var BaseURLPolicy = endpoint.Policy{Setting: "ASR_BASE_URL", LoopbackHTTP: true}

type Options struct {
	BaseURL      string
	APIKey       string
	Language     string
	PollAttempts int
	PollInterval time.Duration
	HTTPClient   *http.Client
	Logf         func(format string, args ...any)
}

type Client struct {
	base     string
	key      string
	language string
	attempts int
	interval time.Duration
	hc       *http.Client
	logf     func(format string, args ...any)
	sleep    func(ctx context.Context, d time.Duration) error
}

func New(o Options) *Client {
	c := &Client{
		base:     BaseURLPolicy.Normalize(o.BaseURL),
		key:      o.APIKey,
		language: o.Language,
		attempts: o.PollAttempts,
		interval: o.PollInterval,
		hc:       o.HTTPClient,
		logf:     o.Logf,
		sleep:    sleepCtx,
	}
	if c.attempts < 1 {
		c.attempts = DefaultPollAttempts
	}
	if c.interval < 0 {
		c.interval = DefaultPollInterval
	}
	if c.hc == nil {
		c.hc = &http.Client{Timeout: 10 * time.Minute}
	}
	if c.logf == nil {
		c.logf = func(string, ...any) {}
	}
	return c
}

// Upload sends the audio file as multipart form data and returns the
// locator the service will fetch it from.
func (c *Client) Upload(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/uploads", mw.FormDataContentType(), &body, &out); err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	if strings.TrimSpace(out.URL) == "" {
		return "", errors.New("upload audio: service returned no url")
	}
	return out.URL, nil
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// PollResult is one observation of a task.
type PollResult struct {
	Status     Status
	Message    string
	Utterances []types.Utterance
}

type taskBody struct {
	TaskID     string            `json:"task_id"`
	Status     string            `json:"status"`
	Message    string            `json:"message"`
	Utterances []types.Utterance `json:"utterances"`
}

func (b taskBody) result() PollResult {
	switch strings.ToLower(strings.TrimSpace(b.Status)) {
	case "succeeded", "success", "completed", "done":
		return PollResult{Status: StatusSucceeded, Utterances: b.Utterances}
	case "failed", "failure", "error":
		return PollResult{Status: StatusFailed, Message: strings.TrimSpace(b.Message)}
	default:
		return PollResult{Status: StatusPending, Message: b.Message}
	}
}

// Recognize submits a task for locator and waits for it. A failed task
// yields *types.RecognitionError; running out of attempts yields
// ErrSummarizationUnavailable.
func (c *Client) Recognize(ctx context.Context, locator string) (types.Transcript, error) {
	req := map[string]any{"audio_url": locator}
	if c.language != "" {
		req["language"] = c.language
	}
	rb, err := json.Marshal(req)
	if err != nil {
		return types.Transcript{}, err
	}
	var sub taskBody
	if err := c.do(ctx, http.MethodPost, "/v1/tasks", "application/json", bytes.NewReader(rb), &sub); err != nil {
		return types.Transcript{}, fmt.Errorf("submit recognition task: %w", err)
	}

	first := sub.result()
	if first.Status == StatusPending && sub.TaskID == "" {
		return types.Transcript{}, errors.New("submit recognition task: service returned no task_id")
	}
	res, err := c.pollUntilTerminal(ctx, first, func(ctx context.Context) (PollResult, error) {
		return c.Poll(ctx, sub.TaskID)
	})
	if err != nil {
		return types.Transcript{}, err
	}
	if res.Status == StatusFailed {
		return types.Transcript{}, &types.RecognitionError{Message: res.Message}
	}
	tr, err := types.Transcript{Utterances: res.Utterances}.Normalized()
	if err != nil {
		return types.Transcript{}, &types.RecognitionError{Message: err.Error()}
	}
	return tr, nil
}

// Poll fetches the current state of a task once.
func (c *Client) Poll(ctx context.Context, taskID string) (PollResult, error) {
	var b taskBody
	if err := c.do(ctx, http.MethodGet, "/v1/tasks/"+url.PathEscape(taskID), "", nil, &b); err != nil {
		return PollResult{}, err
	}
	return b.result(), nil
}

// pollUntilTerminal calls poll with a fixed delay until the task leaves
// pending or the attempt budget is spent. Transport errors count as a spent
// attempt.
func (c *Client) pollUntilTerminal(ctx context.Context, first PollResult, poll func(context.Context) (PollResult, error)) (PollResult, error) {
	if first.Status != StatusPending {
		return first, nil
	}
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err := c.sleep(ctx, c.interval); err != nil {
			return PollResult{}, err
		}
		res, err := poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return PollResult{}, ctx.Err()
			}
			lastErr = err
			c.logf("asr: poll %d/%d failed: %v", attempt, c.attempts, err)
			continue
		}
		if res.Status != StatusPending {
			return res, nil
		}
		c.logf("asr: poll %d/%d: pending", attempt, c.attempts)
	}
	if lastErr != nil {
		return PollResult{}, fmt.Errorf("%w: recognition did not finish after %d polls: %v", types.ErrSummarizationUnavailable, c.attempts, lastErr)
	}
	return PollResult{}, fmt.Errorf("%w: recognition did not finish after %d polls", types.ErrSummarizationUnavailable, c.attempts)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.New(endpoint.Redact(err.Error(), c.key))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return fmt.Errorf("asr status %d: %s", resp.StatusCode, endpoint.Truncate(endpoint.Redact(strings.TrimSpace(string(b)), c.key), 400))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode asr response: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
