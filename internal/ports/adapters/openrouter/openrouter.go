package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/forPelevin/vidbrief/internal/domain/summary"
	"github.com/forPelevin/vidbrief/internal/ports/adapters/endpoint"
	"github.com/forPelevin/vidbrief/internal/types"
)

const (
	DefaultModel   = "anthropic/claude-3.5-sonnet"
	requestTimeout = 90 * time.Second
)

// BaseURLPolicy restricts where the API key may be sent.
var BaseURLPolicy = endpoint.Policy{
	Setting:      "OPENROUTER_BASE_URL",
	Default:      "https://openrouter.ai",
	DefaultHosts: []string{"openrouter.ai", "api.openrouter.ai"},
}

func ValidateBaseURL(baseURL string, allowedHosts []string) error {
	return BaseURLPolicy.Validate(baseURL, allowedHosts)
}

type Adapter struct {
	key     string
	model   string
	baseURL string
	client  *http.Client
	timeout time.Duration
}

func New(apiKey, model, baseURL string) *Adapter {
	if model == "" {
		model = DefaultModel
	}
	return &Adapter{
		key:     apiKey,
		model:   model,
		baseURL: BaseURLPolicy.Normalize(baseURL),
		client:  &http.Client{Timeout: 5 * time.Minute},
		timeout: requestTimeout,
	}
}

// WithHTTPClient swaps the transport, mostly for tests.
func (a *Adapter) WithHTTPClient(c *http.Client) *Adapter {
	a.client = c
	return a
}

// Summarize asks the model for one record per prompt segment and returns
// the raw message content. Parsing is left to the caller.
func (a *Adapter) Summarize(ctx context.Context, p types.SummaryPrompt) (string, error) {
	pb, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal prompt: %w", err)
	}

	payload := map[string]any{
		"model":  a.model,
		"stream": false,
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": buildPrompt(pb, len(p.Segments))},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "vidbrief_summary",
				"strict": true,
				"schema": summarySchema(),
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	url := a.baseURL + "/api/v1/chat/completions"

	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+a.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("openrouter timeout after %s (model=%s)", a.timeout, a.model)
		}
		return "", errors.New(endpoint.Redact(err.Error(), a.key))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if readErr != nil {
			return "", fmt.Errorf("openrouter status %d and read body failed: %v", resp.StatusCode, readErr)
		}
		return "", fmt.Errorf("openrouter status %d: %s", resp.StatusCode, endpoint.Truncate(endpoint.Redact(string(rb), a.key), 400))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", &summary.ResponseError{Reason: "openrouter: decode completion: " + err.Error()}
	}
	if len(raw.Choices) == 0 {
		return "", &summary.ResponseError{Reason: "openrouter: no choices"}
	}
	return messageContentToString(raw.Choices[0].Message.Content)
}

const systemPrompt = "You summarize video transcripts into a timeline of topics. " +
	"Answer with JSON only."

func buildPrompt(promptJSON []byte, segments int) string {
	return "Summarize the video described by the JSON below. " +
		fmt.Sprintf("Return exactly %d summary entries, one per item in \"segments\", in the same order. ", segments) +
		"Each entry's timestamp must be that segment's timestamp, copied verbatim. " +
		"The title names the topic in a few words taken from what is said; never use labels such as \"Part 1\" or \"Segment 2\". " +
		"The content is one or two sentences grounded in the transcript lines first_line..last_line (1-based). " +
		"Write in the language of the transcript. " +
		"Optionally set video_type (lecture, interview, tutorial, meeting, vlog, other)." +
		"\n\nVideo JSON:\n" + string(promptJSON)
}

func summarySchema() map[string]any {
	str := map[string]any{"type": "string"}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"video_type": str,
			"summary": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"timestamp": str,
						"title":     str,
						"content":   str,
					},
					"required": []string{"timestamp", "title", "content"},
				},
			},
		},
		"required": []string{"video_type", "summary"},
	}
}

func messageContentToString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return "", &summary.ResponseError{Reason: "openrouter: empty content"}
		}
		return x, nil
	case []any:
		// Some providers return an array of {type,text} parts.
		var b strings.Builder
		for _, it := range x {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := m["text"].(string); ok {
				b.WriteString(t)
			}
		}
		s := b.String()
		if strings.TrimSpace(s) == "" {
			return "", &summary.ResponseError{Reason: "openrouter: empty content"}
		}
		return s, nil
	default:
		return "", &summary.ResponseError{Reason: fmt.Sprintf("openrouter: unexpected content type %T", v)}
	}
}
