// Package server exposes summarization, saved runs and the processing state
// over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/forPelevin/vidbrief/internal/domain/export"
	"github.com/forPelevin/vidbrief/internal/domain/runstate"
	"github.com/forPelevin/vidbrief/internal/domain/sample"
	"github.com/forPelevin/vidbrief/internal/domain/timecode"
	"github.com/forPelevin/vidbrief/internal/domain/timeline"
	"github.com/forPelevin/vidbrief/internal/ports"
	"github.com/forPelevin/vidbrief/internal/ports/adapters/transcriptfile"
	"github.com/forPelevin/vidbrief/internal/types"
	"github.com/forPelevin/vidbrief/internal/usecase"
)

const maxBodyBytes = 16 << 20

type Handler struct {
	uc      usecase.Usecase
	store   ports.RunStore
	tracker *runstate.Tracker
	logf    func(format string, args ...any)
}

// New needs a usecase whose tracker reflects what /api/state reports.
func New(uc usecase.Usecase, store ports.RunStore, logf func(format string, args ...any)) *Handler {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Handler{uc: uc, store: store, tracker: uc.Tracker(), logf: logf}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(cors)
	r.Route("/api", func(r chi.Router) {
		r.Post("/summaries", h.CreateSummary)
		r.Get("/runs", h.ListRuns)
		r.Route("/runs/{id}", func(r chi.Router) {
			r.Get("/", h.GetRun)
			r.Get("/summary.md", h.GetMarkdown)
			r.Get("/transcript.txt", h.GetTranscript)
			r.Get("/captions.vtt", h.GetCaptions)
			r.Get("/seek/{index}", h.Seek)
		})
		r.Get("/state", h.State)
		r.Post("/reset", h.Reset)
	})
	return r
}

// ListenAndServe serves until ctx is done.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, logf func(format string, args ...any)) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	if logf != nil {
		logf("listening on http://%s", addr)
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type summaryRequest struct {
	Title           string            `json:"title"`
	DurationSeconds float64           `json:"duration_seconds"`
	Transcript      []types.Utterance `json:"transcript"`
	// Demo generates a transcript from the title instead.
	Demo bool `json:"demo"`
}

type summaryResponse struct {
	Success    bool                  `json:"success"`
	ID         string                `json:"id"`
	Mode       types.Source          `json:"mode"`
	Summary    []types.SummaryRecord `json:"summary"`
	Transcript []types.Utterance     `json:"transcript"`
	Message    string                `json:"message"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (h *Handler) CreateSummary(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.DurationSeconds < 0 {
		writeError(w, http.StatusBadRequest, "duration_seconds must be >= 0")
		return
	}
	duration := time.Duration(req.DurationSeconds * float64(time.Second))

	var tr types.Transcript
	if req.Demo {
		if duration == 0 {
			duration = 5 * time.Minute
		}
		tr = sample.Transcript(req.Title, duration)
	} else {
		utts, err := transcriptfile.Normalize(req.Transcript)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid transcript: %v", err))
			return
		}
		tr = types.Transcript{Utterances: utts}
	}

	res, err := h.uc.Run(r.Context(), usecase.Input{Title: req.Title, Transcript: &tr, Duration: duration})
	if err != nil {
		h.logf("summary failed: %v", err)
		writeRunError(w, err)
		return
	}
	run := res.Run
	if h.store != nil {
		if err := h.store.Save(r.Context(), run); err != nil {
			h.logf("save run %s: %v", run.ID, err)
			writeError(w, http.StatusInternalServerError, "could not save the summary")
			return
		}
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Success:    true,
		ID:         run.ID,
		Mode:       run.Source,
		Summary:    run.Summary,
		Transcript: run.Transcript,
		Message:    export.DoneMessage(run.Duration, len(run.Summary)),
	})
}

type runHeader struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Duration  string       `json:"duration"`
	Mode      types.Source `json:"mode"`
	Records   int          `json:"records"`
	CreatedAt time.Time    `json:"created_at"`
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusOK, []runHeader{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.store.List(r.Context(), limit)
	if err != nil {
		writeRunError(w, err)
		return
	}
	out := make([]runHeader, 0, len(runs))
	for _, run := range runs {
		out = append(out, runHeader{
			ID:        run.ID,
			Title:     run.Title,
			Duration:  timecode.EncodeDuration(run.Duration),
			Mode:      run.Source,
			Records:   len(run.Summary),
			CreatedAt: run.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, export.Manifest(run, types.ManifestFiles{
		Markdown:   "summary.md",
		Transcript: "transcript.txt",
		Captions:   "captions.vtt",
	}))
}

func (h *Handler) GetMarkdown(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeText(w, "text/markdown; charset=utf-8", export.Markdown(export.Document{
		Title:       run.Title,
		Duration:    run.Duration,
		Source:      run.Source,
		Records:     run.Summary,
		GeneratedAt: run.CreatedAt,
	}))
}

func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeText(w, "text/plain; charset=utf-8", export.PlainTranscript(run.Transcript)+"\n")
}

func (h *Handler) GetCaptions(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeText(w, "text/vtt; charset=utf-8", export.WebVTT(run.Transcript))
}

type seekResponse struct {
	Kind      string  `json:"kind"`
	Index     int     `json:"index"`
	Seconds   float64 `json:"seconds"`
	Timestamp string  `json:"timestamp"`
	// Related is the first utterance of a record, or the record holding an
	// utterance; -1 when unknown.
	Related int `json:"related"`
}

// Seek resolves where the player should jump for a summary record
// (default) or, with ?kind=utterance, a transcript line.
func (h *Handler) Seek(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}
	idx, err := timeline.NewIndex(run.Transcript, run.Segments, run.Summary)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := seekResponse{Kind: r.URL.Query().Get("kind"), Index: i}
	switch resp.Kind {
	case "", "record":
		resp.Kind = "record"
		resp.Seconds, err = idx.RecordTarget(i)
		if err == nil {
			resp.Related = idx.FirstUtteranceOf(i)
		}
	case "utterance":
		resp.Seconds, err = idx.UtteranceTarget(i)
		if err == nil {
			resp.Related = idx.RecordOf(i)
		}
	default:
		writeError(w, http.StatusBadRequest, "kind must be record or utterance")
		return
	}
	if err != nil {
		if errors.Is(err, types.ErrMalformedTimestamp) {
			writeRunError(w, err)
			return
		}
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	resp.Timestamp = timecode.Encode(int64(resp.Seconds * 1000))
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) State(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Snapshot())
}

func (h *Handler) Reset(w http.ResponseWriter, _ *http.Request) {
	h.tracker.Reset()
	writeJSON(w, http.StatusOK, h.tracker.Snapshot())
}

// loadRun resolves {id}; "latest" means the newest saved run.
func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (types.Run, bool) {
	if h.store == nil {
		writeRunError(w, types.ErrRunNotFound)
		return types.Run{}, false
	}
	id := chi.URLParam(r, "id")
	var (
		run types.Run
		err error
	)
	if id == "latest" {
		run, err = h.store.Latest(r.Context())
	} else {
		run, err = h.store.Get(r.Context(), id)
	}
	if err != nil {
		writeRunError(w, err)
		return types.Run{}, false
	}
	return run, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrMalformedTimestamp):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrEmptyTranscript):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrRecognitionFailed), errors.Is(err, types.ErrSummarizationUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, types.ErrStaleRun):
		return http.StatusConflict
	case errors.Is(err, types.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeRunError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), types.Describe(err))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, contentType, body string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
