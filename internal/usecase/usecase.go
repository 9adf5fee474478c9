package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/forPelevin/vidbrief/internal/domain/runstate"
	"github.com/forPelevin/vidbrief/internal/domain/segmenter"
	"github.com/forPelevin/vidbrief/internal/domain/summary"
	"github.com/forPelevin/vidbrief/internal/ports"
	"github.com/forPelevin/vidbrief/internal/types"
)

type Deps struct {
	Video ports.VideoTool
	// Uploader is optional; without it the local audio path is the locator.
	Uploader   ports.AudioUploader
	Recognizer ports.Recognizer
	Assembler  summary.Assembler
	Policy     segmenter.Policy
	// Tracker is optional; a private one is used when nil.
	Tracker *runstate.Tracker
	NewID   func() string
	Now     func() time.Time
	Logf    func(format string, args ...any)
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Tracker == nil {
		d.Tracker = runstate.NewTracker()
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logf == nil {
		d.Logf = func(string, ...any) {}
	}
	return Usecase{d: d}
}

func (u Usecase) Tracker() *runstate.Tracker { return u.d.Tracker }

type Input struct {
	Title string
	// Video is the media file. It may be empty when Transcript is set.
	Video string
	// Transcript skips extraction, upload and recognition.
	Transcript *types.Transcript
	// Duration overrides probing. Zero means probe, or the transcript span.
	Duration time.Duration
	CacheDir string
}

type Result struct {
	Run types.Run
	// FallbackReason is set when the external summary was rejected.
	FallbackReason error
}

// Run processes one asset from media to summary, advancing the tracker at
// each stage. Starting another run or resetting the tracker while this one is
// in flight makes its result stale; it is then discarded with ErrStaleRun.
func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	asset := in.Video
	if asset == "" {
		asset = in.Title
	}
	id := u.d.Tracker.Begin(asset)

	res, err := u.run(ctx, id, in)
	if err != nil {
		if errors.Is(err, types.ErrStaleRun) {
			u.d.Logf("discarding result of replaced run %d", id)
			return Result{}, err
		}
		if ferr := u.d.Tracker.Fail(id, err); errors.Is(ferr, types.ErrStaleRun) {
			return Result{}, ferr
		}
		return Result{}, err
	}
	if err := u.d.Tracker.Complete(id, res.Run.ID); err != nil {
		return Result{}, err
	}
	return res, nil
}

func (u Usecase) run(ctx context.Context, id runstate.RunID, in Input) (Result, error) {
	duration := in.Duration
	var tr types.Transcript

	if in.Transcript != nil {
		tr = *in.Transcript
	} else {
		if in.Video == "" {
			return Result{}, errors.New("no video or transcript given")
		}
		if u.d.Video == nil || u.d.Recognizer == nil {
			return Result{}, errors.New("video processing is not configured")
		}

		if duration <= 0 {
			d, err := u.d.Video.ProbeDuration(ctx, in.Video)
			if err != nil {
				return Result{}, fmt.Errorf("probe duration: %w", err)
			}
			duration = d
		}
		u.d.Logf("duration: %s", duration.Round(time.Second))

		cacheDir := in.CacheDir
		if cacheDir == "" {
			cacheDir = os.TempDir()
		}
		wav := filepath.Join(cacheDir, "audio.wav")
		if err := u.d.Video.ExtractAudioMono16k(ctx, in.Video, wav); err != nil {
			return Result{}, fmt.Errorf("extract audio: %w", err)
		}
		if err := u.d.Tracker.Progress(id, 20); err != nil {
			return Result{}, err
		}

		if err := u.d.Tracker.Advance(id, runstate.StageUploading); err != nil {
			return Result{}, err
		}
		locator := wav
		if u.d.Uploader != nil {
			loc, err := u.d.Uploader.Upload(ctx, wav)
			if err != nil {
				return Result{}, fmt.Errorf("upload audio: %w", err)
			}
			locator = loc
		}
		if err := u.d.Tracker.Progress(id, 40); err != nil {
			return Result{}, err
		}

		if err := u.d.Tracker.Advance(id, runstate.StageAnalyzing); err != nil {
			return Result{}, err
		}
		got, err := u.d.Recognizer.Recognize(ctx, locator)
		if err != nil {
			return Result{}, err
		}
		if tr, err = got.Normalized(); err != nil {
			return Result{}, &types.RecognitionError{Message: err.Error()}
		}
		if err := u.d.Tracker.Progress(id, 70); err != nil {
			return Result{}, err
		}
	}

	if in.Transcript != nil {
		if err := u.d.Tracker.Advance(id, runstate.StageAnalyzing); err != nil {
			return Result{}, err
		}
	}
	if duration <= 0 {
		duration = tr.Span()
	}

	res, err := u.Summarize(ctx, in.Title, duration, tr.Utterances)
	if err != nil {
		return Result{}, err
	}
	if !u.d.Tracker.Current(id) {
		return Result{}, fmt.Errorf("%w: run %d", types.ErrStaleRun, id)
	}
	res.Run.Input = in.Video
	return res, nil
}

// Summarize segments the transcript and assembles one record per segment.
// It does not touch the tracker.
func (u Usecase) Summarize(ctx context.Context, title string, duration time.Duration, utterances []types.Utterance) (Result, error) {
	if len(utterances) == 0 {
		return Result{}, types.ErrEmptyTranscript
	}
	if duration <= 0 {
		duration = types.Transcript{Utterances: utterances}.Span()
	}
	segs, err := u.d.Policy.Split(utterances, duration.Seconds())
	if err != nil {
		return Result{}, err
	}
	u.d.Logf("segments: %d for %d utterances", len(segs), len(utterances))

	out, err := u.d.Assembler.Assemble(ctx, summary.Input{
		Title:      title,
		Duration:   duration,
		Utterances: utterances,
		Segments:   segs,
	})
	if err != nil {
		return Result{}, err
	}
	u.d.Logf("summary: %d records (%s)", len(out.Records), out.Source)

	return Result{
		Run: types.Run{
			ID:         u.d.NewID(),
			Title:      title,
			Duration:   duration,
			Source:     out.Source,
			Summary:    out.Records,
			Transcript: utterances,
			Segments:   segs,
			CreatedAt:  u.d.Now().UTC(),
		},
		FallbackReason: out.FallbackReason,
	}, nil
}
