// Package mcpserver exposes summarization and timestamp helpers as MCP tools
// over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/forPelevin/vidbrief/internal/domain/export"
	"github.com/forPelevin/vidbrief/internal/domain/sample"
	"github.com/forPelevin/vidbrief/internal/domain/timecode"
	"github.com/forPelevin/vidbrief/internal/ports"
	"github.com/forPelevin/vidbrief/internal/ports/adapters/transcriptfile"
	"github.com/forPelevin/vidbrief/internal/types"
	"github.com/forPelevin/vidbrief/internal/usecase"
)

type Tools struct {
	uc    usecase.Usecase
	store ports.RunStore
	logf  func(format string, args ...any)
}

func NewTools(uc usecase.Usecase, store ports.RunStore, logf func(format string, args ...any)) *Tools {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Tools{uc: uc, store: store, logf: logf}
}

// NewServer registers every tool on a fresh MCP server.
func NewServer(t *Tools, version string) *server.MCPServer {
	s := server.NewMCPServer("vidbrief", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("summarize_transcript",
		mcp.WithDescription("Split a timed transcript into segments and summarize each one with a MM:SS or HH:MM:SS timestamp."),
		mcp.WithString("transcript", mcp.Description(`JSON array of {"text","start_time","end_time"} in milliseconds, or {"transcript":[...]}`)),
		mcp.WithString("title", mcp.Description("Video title")),
		mcp.WithNumber("duration_seconds", mcp.Description("Media duration; defaults to the end of the last utterance")),
		mcp.WithBoolean("demo", mcp.Description("Generate a demo transcript from the title instead")),
	), t.SummarizeTranscript)

	s.AddTool(mcp.NewTool("encode_timestamp",
		mcp.WithDescription("Format a millisecond offset as MM:SS, or HH:MM:SS from one hour on."),
		mcp.WithNumber("ms", mcp.Required(), mcp.Description("Offset in milliseconds")),
	), t.EncodeTimestamp)

	s.AddTool(mcp.NewTool("seek_target",
		mcp.WithDescription("Convert a MM:SS or HH:MM:SS timestamp to the seek position in seconds."),
		mcp.WithString("timestamp", mcp.Required()),
	), t.SeekTarget)

	if t.store != nil {
		s.AddTool(mcp.NewTool("get_summary",
			mcp.WithDescription("Return a saved summary as Markdown."),
			mcp.WithString("id", mcp.Required(), mcp.Description(`Run ID, or "latest"`)),
		), t.GetSummary)
	}
	return s
}

// ServeStdio blocks until stdin closes.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

type summaryResult struct {
	ID      string                `json:"id"`
	Mode    types.Source          `json:"mode"`
	Summary []types.SummaryRecord `json:"summary"`
	Message string                `json:"message"`
}

func (t *Tools) SummarizeTranscript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	secs := req.GetFloat("duration_seconds", 0)
	if secs < 0 {
		return mcp.NewToolResultError("duration_seconds must be >= 0"), nil
	}
	duration := time.Duration(secs * float64(time.Second))

	var utts []types.Utterance
	if req.GetBool("demo", false) {
		if duration == 0 {
			duration = 5 * time.Minute
		}
		utts = sample.Transcript(title, duration).Utterances
	} else {
		raw := req.GetString("transcript", "")
		parsed, err := transcriptfile.ParseJSON([]byte(raw))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid transcript: %v", err)), nil
		}
		if utts, err = transcriptfile.Normalize(parsed); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid transcript: %v", err)), nil
		}
	}

	res, err := t.uc.Summarize(ctx, title, duration, utts)
	if err != nil {
		return mcp.NewToolResultError(types.Describe(err)), nil
	}
	run := res.Run
	if t.store != nil {
		if err := t.store.Save(ctx, run); err != nil {
			t.logf("save run %s: %v", run.ID, err)
			return mcp.NewToolResultError(fmt.Sprintf("save run: %v", err)), nil
		}
	}
	b, err := json.Marshal(summaryResult{
		ID:      run.ID,
		Mode:    run.Source,
		Summary: run.Summary,
		Message: export.DoneMessage(run.Duration, len(run.Summary)),
	})
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (t *Tools) EncodeTimestamp(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ms, err := req.RequireFloat("ms")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if ms < 0 {
		return mcp.NewToolResultError("ms must be >= 0"), nil
	}
	return mcp.NewToolResultText(timecode.Encode(int64(ms))), nil
}

func (t *Tools) SeekTarget(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ts, err := req.RequireString("timestamp")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sec, err := timecode.DecodeSeconds(ts)
	if err != nil {
		return mcp.NewToolResultError(types.Describe(err)), nil
	}
	return mcp.NewToolResultText(strconv.FormatFloat(sec, 'f', -1, 64)), nil
}

func (t *Tools) GetSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var run types.Run
	if id == "latest" {
		run, err = t.store.Latest(ctx)
	} else {
		run, err = t.store.Get(ctx, id)
	}
	if err != nil {
		return mcp.NewToolResultError(types.Describe(err)), nil
	}
	return mcp.NewToolResultText(export.Markdown(export.Document{
		Title:       run.Title,
		Duration:    run.Duration,
		Source:      run.Source,
		Records:     run.Summary,
		GeneratedAt: run.CreatedAt,
	})), nil
}
