package ports

import (
	"context"
	"time"

	"github.com/forPelevin/vidbrief/internal/domain/summary"
	"github.com/forPelevin/vidbrief/internal/domain/timeline"
	"github.com/forPelevin/vidbrief/internal/types"
)

type VideoTool interface {
	ExtractAudioMono16k(ctx context.Context, inVideo, outWav string) error
	ProbeDuration(ctx context.Context, inVideo string) (time.Duration, error)
}

// AudioUploader makes a local audio file fetchable by a remote recognizer
// and returns its locator.
type AudioUploader interface {
	Upload(ctx context.Context, audioPath string) (string, error)
}

type Recognizer interface {
	Recognize(ctx context.Context, locator string) (types.Transcript, error)
}

type Summarizer = summary.Summarizer

type Player = timeline.Player

type RunStore interface {
	Save(ctx context.Context, run types.Run) error
	Get(ctx context.Context, id string) (types.Run, error)
	Latest(ctx context.Context) (types.Run, error)
	List(ctx context.Context, limit int) ([]types.Run, error)
}

type Clipboard interface {
	WriteAll(text string) error
}
