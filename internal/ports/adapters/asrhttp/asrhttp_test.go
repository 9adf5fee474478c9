package asrhttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/forPelevin/vidbrief/internal/types"
)

// fakeASR serves uploads and tasks. The task turns terminal after
// pendingPolls GETs.
func fakeASR(t *testing.T, pendingPolls int32, final string) (*httptest.Server, *int32) {
	t.Helper()
	var polls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/uploads", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		if string(b) != "RIFF" {
			http.Error(w, "unexpected payload", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://blobs.example/" + hdr.Filename})
	})
	mux.HandleFunc("/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["audio_url"] == "" {
			http.Error(w, "audio_url required", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"task_id":"t-1","status":"pending"}`))
	})
	mux.HandleFunc("/v1/tasks/t-1", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if atomic.AddInt32(&polls, 1) <= pendingPolls {
			_, _ = w.Write([]byte(`{"task_id":"t-1","status":"running"}`))
			return
		}
		_, _ = w.Write([]byte(final))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &polls
}

func newTestClient(srv *httptest.Server, attempts int) *Client {
	return New(Options{BaseURL: srv.URL, APIKey: "k", PollAttempts: attempts, PollInterval: 0, HTTPClient: srv.Client()})
}

func TestUploadAndRecognize(t *testing.T) {
	srv, polls := fakeASR(t, 2, `{"status":"succeeded","utterances":[{"text":"hello","start_time":0,"end_time":1000}]}`)
	c := newTestClient(srv, 5)

	wav := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(wav, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	loc, err := c.Upload(context.Background(), wav)
	if err != nil {
		t.Fatal(err)
	}
	if loc != "https://blobs.example/audio.wav" {
		t.Fatalf("unexpected locator %q", loc)
	}

	tr, err := c.Recognize(context.Background(), loc)
	if err != nil {
		t.Fatal(err)
	}
	if len(tr.Utterances) != 1 || tr.Utterances[0].Text != "hello" || tr.Utterances[0].EndTimeMs != 1000 {
		t.Fatalf("unexpected transcript %+v", tr)
	}
	if got := atomic.LoadInt32(polls); got != 3 {
		t.Fatalf("expected 3 polls, got %d", got)
	}
}

func TestRecognize_TaskFailureKeepsMessage(t *testing.T) {
	srv, _ := fakeASR(t, 0, `{"status":"failed","message":"audio has no speech"}`)
	_, err := newTestClient(srv, 3).Recognize(context.Background(), "https://blobs.example/a.wav")
	var re *types.RecognitionError
	if !errors.As(err, &re) || re.Message != "audio has no speech" {
		t.Fatalf("expected RecognitionError with message, got %v", err)
	}
	if !errors.Is(err, types.ErrRecognitionFailed) {
		t.Fatalf("expected ErrRecognitionFailed, got %v", err)
	}
}

func TestRecognize_NormalizesUtterances(t *testing.T) {
	tests := []struct {
		name    string
		final   string
		want    []types.Utterance
		wantErr string
	}{
		{
			name:  "blank text dropped and trimmed",
			final: `{"status":"succeeded","utterances":[{"text":"  ","start_time":0,"end_time":500},{"text":" hi ","start_time":600,"end_time":900}]}`,
			want:  []types.Utterance{{Text: "hi", StartTimeMs: 600, EndTimeMs: 900}},
		},
		{
			name:  "only blank text",
			final: `{"status":"succeeded","utterances":[{"text":"","start_time":0,"end_time":500}]}`,
			want:  []types.Utterance{},
		},
		{
			name:    "starts go backwards",
			final:   `{"status":"succeeded","utterances":[{"text":"late","start_time":50000,"end_time":51000},{"text":"early","start_time":10000,"end_time":11000}]}`,
			wantErr: "start 10000 before previous start 50000",
		},
		{
			name:    "end before start",
			final:   `{"status":"succeeded","utterances":[{"text":"odd","start_time":5000,"end_time":4000}]}`,
			wantErr: "end 4000 before start 5000",
		},
		{
			name:    "negative start",
			final:   `{"status":"succeeded","utterances":[{"text":"odd","start_time":-5,"end_time":4000}]}`,
			wantErr: "negative start",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := fakeASR(t, 0, tt.final)
			tr, err := newTestClient(srv, 3).Recognize(context.Background(), "https://blobs.example/a.wav")
			if tt.wantErr != "" {
				if !errors.Is(err, types.ErrRecognitionFailed) || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected recognition error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(tr.Utterances) != len(tt.want) {
				t.Fatalf("got %+v, want %+v", tr.Utterances, tt.want)
			}
			for i := range tt.want {
				if tr.Utterances[i] != tt.want[i] {
					t.Fatalf("utterance %d = %+v, want %+v", i, tr.Utterances[i], tt.want[i])
				}
			}
		})
	}
}

func TestRecognize_PollBudgetExhausted(t *testing.T) {
	srv, polls := fakeASR(t, 100, `{}`)
	_, err := newTestClient(srv, 4).Recognize(context.Background(), "https://blobs.example/a.wav")
	if !errors.Is(err, types.ErrSummarizationUnavailable) {
		t.Fatalf("expected ErrSummarizationUnavailable, got %v", err)
	}
	if got := atomic.LoadInt32(polls); got != 4 {
		t.Fatalf("expected exactly 4 polls, got %d", got)
	}
}

func TestPollUntilTerminal_TransportErrorsSpendAttempts(t *testing.T) {
	c := New(Options{BaseURL: "http://127.0.0.1:1", PollAttempts: 3})
	c.sleep = func(context.Context, time.Duration) error { return nil }
	calls := 0
	_, err := c.pollUntilTerminal(context.Background(), PollResult{Status: StatusPending}, func(context.Context) (PollResult, error) {
		calls++
		if calls == 2 {
			return PollResult{Status: StatusSucceeded}, nil
		}
		return PollResult{}, errors.New("connection reset")
	})
	if err != nil {
		t.Fatalf("expected success on second poll, got %v", err)
	}

	calls = 0
	_, err = c.pollUntilTerminal(context.Background(), PollResult{Status: StatusPending}, func(context.Context) (PollResult, error) {
		calls++
		return PollResult{}, errors.New("connection reset")
	})
	if !errors.Is(err, types.ErrSummarizationUnavailable) || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("unexpected error %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestPollUntilTerminal_StopsOnCancel(t *testing.T) {
	c := New(Options{BaseURL: "http://127.0.0.1:1", PollAttempts: 10})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.pollUntilTerminal(ctx, PollResult{Status: StatusPending}, func(context.Context) (PollResult, error) {
		t.Fatalf("poll must not run after cancel")
		return PollResult{}, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRecognize_StatusErrorRedactsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key sk-123", http.StatusForbidden)
	}))
	defer srv.Close()
	c := New(Options{BaseURL: srv.URL, APIKey: "sk-123", HTTPClient: srv.Client()})
	_, err := c.Recognize(context.Background(), "x")
	if err == nil || strings.Contains(err.Error(), "sk-123") {
		t.Fatalf("expected redacted error, got %v", err)
	}
}
