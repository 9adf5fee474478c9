// Package summary turns segmented transcripts into ordered summary records,
// either through an external summarizer or derived from the text itself.
package summary

import (
	"context"
	"errors"
	"fmt"

	"github.com/forPelevin/vidbrief/internal/types"
)

// Strategy produces one record per segment.
type Strategy interface {
	Source() types.Source
	Summarize(ctx context.Context, in Input) ([]types.SummaryRecord, error)
}

// Summarizer is the external collaborator; it returns the raw model answer.
type Summarizer interface {
	Summarize(ctx context.Context, prompt types.SummaryPrompt) (string, error)
}

type LocalStrategy struct {
	Options LocalOptions
}

func (LocalStrategy) Source() types.Source { return types.SourceLocal }

func (s LocalStrategy) Summarize(_ context.Context, in Input) ([]types.SummaryRecord, error) {
	return Local(in.Segments, in.Utterances, s.Options)
}

// ExternalStrategy sends the prompt out and validates what comes back.
// Transport failures are returned wrapped in ErrSummarizationUnavailable;
// unusable answers come back as *ResponseError.
type ExternalStrategy struct {
	Client Summarizer
}

func (ExternalStrategy) Source() types.Source { return types.SourceExternal }

func (s ExternalStrategy) Summarize(ctx context.Context, in Input) ([]types.SummaryRecord, error) {
	if s.Client == nil {
		return nil, fmt.Errorf("%w: no summarizer configured", types.ErrSummarizationUnavailable)
	}
	raw, err := s.Client.Summarize(ctx, BuildPrompt(in))
	if err != nil {
		if IsResponseError(err) || errors.Is(err, types.ErrSummarizationUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", types.ErrSummarizationUnavailable, err)
	}
	resp, err := ParseResponse(raw, len(in.Segments))
	if err != nil {
		return nil, err
	}
	return resp.Summary, nil
}

// Outcome is an assembled summary plus the path that produced it.
type Outcome struct {
	Records []types.SummaryRecord
	Source  types.Source
	// FallbackReason is set when the external answer was rejected.
	FallbackReason error
}

// Assembler tries External when set and falls back to Local on a bad answer.
type Assembler struct {
	External Strategy
	Local    LocalStrategy
	Logf     func(format string, args ...any)
}

func (a Assembler) logf(format string, args ...any) {
	if a.Logf != nil {
		a.Logf(format, args...)
	}
}

func (a Assembler) Assemble(ctx context.Context, in Input) (Outcome, error) {
	if len(in.Utterances) == 0 {
		return Outcome{}, types.ErrEmptyTranscript
	}
	if err := checkSegments(in.Segments, len(in.Utterances)); err != nil {
		return Outcome{}, err
	}

	if a.External == nil {
		recs, err := a.Local.Summarize(ctx, in)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Records: recs, Source: types.SourceLocal}, nil
	}

	recs, err := a.External.Summarize(ctx, in)
	switch {
	case err == nil:
		return Outcome{Records: recs, Source: a.External.Source()}, nil
	case IsResponseError(err):
		a.logf("summary: external answer rejected (%v), deriving locally", err)
		recs, lerr := a.Local.Summarize(ctx, in)
		if lerr != nil {
			return Outcome{}, lerr
		}
		return Outcome{Records: recs, Source: types.SourceLocalFallback, FallbackReason: err}, nil
	case ctx.Err() != nil:
		return Outcome{}, ctx.Err()
	case errors.Is(err, types.ErrSummarizationUnavailable):
		return Outcome{}, err
	default:
		return Outcome{}, fmt.Errorf("%w: %v", types.ErrSummarizationUnavailable, err)
	}
}
