package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/forPelevin/vidbrief/internal/domain/runstate"
	"github.com/forPelevin/vidbrief/internal/domain/segmenter"
	"github.com/forPelevin/vidbrief/internal/ports/adapters/sqlitestore"
	"github.com/forPelevin/vidbrief/internal/types"
	"github.com/forPelevin/vidbrief/internal/usecase"
)

func newTestServer(t *testing.T) (*httptest.Server, *sqlitestore.Store) {
	t.Helper()
	store, err := sqlitestore.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	uc := usecase.New(usecase.Deps{Policy: segmenter.DefaultPolicy()})
	srv := httptest.NewServer(New(uc, store, nil).Routes())
	t.Cleanup(srv.Close)
	return srv, store
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, out
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

const twoLines = `{"title":"Caching 101","duration_seconds":95,"transcript":[
	{"text":"Hello and welcome","start_time":0,"end_time":1000},
	{"text":"Eviction comes next","start_time":90000,"end_time":91000}]}`

func TestCreateSummary(t *testing.T) {
	srv, store := newTestServer(t)

	resp, out := postJSON(t, srv.URL+"/api/summaries", twoLines)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %v", resp.StatusCode, out)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}
	if out["success"] != true || out["mode"] != "local" || out["message"] != "Done (1m 35s, 2 points)" {
		t.Fatalf("unexpected body %v", out)
	}
	summary := out["summary"].([]any)
	if len(summary) != 2 || summary[1].(map[string]any)["timestamp"] != "01:30" {
		t.Fatalf("unexpected summary %v", summary)
	}

	id := out["id"].(string)
	saved, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("run not saved: %v", err)
	}
	if saved.Title != "Caching 101" || len(saved.Transcript) != 2 {
		t.Fatalf("unexpected saved run %+v", saved)
	}
}

func TestCreateSummary_Errors(t *testing.T) {
	srv, _ := newTestServer(t)
	tests := []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{"bad json", `{`, http.StatusBadRequest, "invalid request body"},
		{"negative duration", `{"duration_seconds":-1}`, http.StatusBadRequest, "duration_seconds"},
		{"backwards transcript", `{"transcript":[{"text":"b","start_time":5000,"end_time":6000},{"text":"a","start_time":1000,"end_time":2000}]}`, http.StatusBadRequest, "invalid transcript"},
		{"empty", `{"title":"x","transcript":[]}`, http.StatusUnprocessableEntity, "No speech was recognized"},
		{"blank only", `{"transcript":[{"text":"  ","start_time":0,"end_time":10}]}`, http.StatusUnprocessableEntity, "No speech was recognized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := postJSON(t, srv.URL+"/api/summaries", tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status %d, want %d (%v)", resp.StatusCode, tt.status, out)
			}
			if out["success"] != false || !strings.Contains(out["error"].(string), tt.msg) {
				t.Fatalf("unexpected body %v", out)
			}
		})
	}
}

func TestCreateSummary_Demo(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, out := postJSON(t, srv.URL+"/api/summaries", `{"title":"产品会议","duration_seconds":300,"demo":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %v", resp.StatusCode, out)
	}
	if n := len(out["transcript"].([]any)); n != 60 {
		t.Fatalf("got %d demo utterances", n)
	}
	if n := len(out["summary"].([]any)); n != 10 {
		t.Fatalf("got %d records", n)
	}
	if out["message"] != "Done (5m 0s, 10 points)" {
		t.Fatalf("message %v", out["message"])
	}
}

func TestRunExports(t *testing.T) {
	srv, _ := newTestServer(t)
	_, out := postJSON(t, srv.URL+"/api/summaries", twoLines)
	id := out["id"].(string)

	resp, body := get(t, srv.URL+"/api/runs/"+id+"/transcript.txt")
	if resp.StatusCode != http.StatusOK || body != "[00:00] Hello and welcome\n[01:30] Eviction comes next\n" {
		t.Fatalf("transcript %d %q", resp.StatusCode, body)
	}
	resp, body = get(t, srv.URL+"/api/runs/latest/summary.md")
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(body, "# Caching 101\n") || !strings.Contains(body, "### 2. [01:30] ") {
		t.Fatalf("markdown %d %q", resp.StatusCode, body)
	}
	resp, body = get(t, srv.URL+"/api/runs/"+id+"/captions.vtt")
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(body, "WEBVTT\n") {
		t.Fatalf("captions %d %q", resp.StatusCode, body)
	}
	resp, body = get(t, srv.URL+"/api/runs/"+id)
	var m types.Manifest
	if err := json.Unmarshal([]byte(body), &m); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("run %d %q: %v", resp.StatusCode, body, err)
	}
	if m.Duration != "01:35" || len(m.Summary) != 2 {
		t.Fatalf("unexpected manifest %+v", m)
	}
	resp, body = get(t, srv.URL+"/api/runs")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"records":2`) {
		t.Fatalf("list %d %q", resp.StatusCode, body)
	}
	resp, _ = get(t, srv.URL+"/api/runs/nope/summary.md")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing run status %d", resp.StatusCode)
	}
}

func TestSeek(t *testing.T) {
	srv, _ := newTestServer(t)
	_, out := postJSON(t, srv.URL+"/api/summaries", twoLines)
	id := out["id"].(string)

	tests := []struct {
		path    string
		status  int
		seconds float64
		related float64
	}{
		{"/seek/1", http.StatusOK, 90, 1},
		{"/seek/0?kind=record", http.StatusOK, 0, 0},
		{"/seek/1?kind=utterance", http.StatusOK, 90, 1},
		{"/seek/2", http.StatusNotFound, 0, 0},
		{"/seek/x", http.StatusBadRequest, 0, 0},
		{"/seek/0?kind=chapter", http.StatusBadRequest, 0, 0},
	}
	for _, tt := range tests {
		resp, body := get(t, srv.URL+"/api/runs/"+id+tt.path)
		if resp.StatusCode != tt.status {
			t.Fatalf("%s: status %d, want %d (%s)", tt.path, resp.StatusCode, tt.status, body)
		}
		if tt.status != http.StatusOK {
			continue
		}
		var got map[string]any
		_ = json.Unmarshal([]byte(body), &got)
		if got["seconds"] != tt.seconds || got["related"] != tt.related {
			t.Fatalf("%s: got %v", tt.path, got)
		}
	}
}

func TestStateAndReset(t *testing.T) {
	srv, _ := newTestServer(t)
	_, _ = postJSON(t, srv.URL+"/api/summaries", twoLines)

	_, body := get(t, srv.URL+"/api/state")
	var st runstate.State
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		t.Fatal(err)
	}
	if st.Stage != runstate.StageReady || st.Progress != 100 || st.Result == "" {
		t.Fatalf("unexpected state %+v", st)
	}

	resp, err := http.Post(srv.URL+"/api/reset", "application/json", bytes.NewReader(nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Stage != runstate.StageIdle {
		t.Fatalf("state after reset %+v", st)
	}
}

func TestPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/summaries", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(b) != "ok" {
		t.Fatalf("preflight %d %q", resp.StatusCode, b)
	}
	if !strings.Contains(resp.Header.Get("Access-Control-Allow-Headers"), "content-type") {
		t.Fatalf("missing allow headers")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{types.ErrMalformedTimestamp, http.StatusBadRequest},
		{types.ErrEmptyTranscript, http.StatusUnprocessableEntity},
		{types.ErrSummarizationUnavailable, http.StatusBadGateway},
		{&types.RecognitionError{Message: "x"}, http.StatusBadGateway},
		{types.ErrStaleRun, http.StatusConflict},
		{types.ErrRunNotFound, http.StatusNotFound},
		{context.Canceled, http.StatusServiceUnavailable},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
