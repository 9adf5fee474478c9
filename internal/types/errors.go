package types

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyTranscript          = errors.New("empty transcript")
	ErrMalformedTimestamp       = errors.New("malformed timestamp")
	ErrSummarizationUnavailable = errors.New("summarization unavailable")
	ErrRecognitionFailed        = errors.New("recognition failed")

	// ErrStaleRun is returned when a result arrives for a run that was reset
	// or replaced in the meantime.
	ErrStaleRun = errors.New("stale run")

	ErrRunNotFound = errors.New("run not found")
)

// RecognitionError carries the recognizer's own message.
type RecognitionError struct {
	Message string
}

func (e *RecognitionError) Error() string {
	if e.Message == "" {
		return ErrRecognitionFailed.Error()
	}
	return fmt.Sprintf("%s: %s", ErrRecognitionFailed, e.Message)
}

func (e *RecognitionError) Is(target error) bool { return target == ErrRecognitionFailed }

// Describe turns a run error into a sentence for the end user.
func Describe(err error) string {
	var re *RecognitionError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &re):
		if re.Message == "" {
			return "Speech recognition failed."
		}
		return "Speech recognition failed: " + re.Message
	case errors.Is(err, ErrEmptyTranscript):
		return "No speech was recognized, so there is nothing to summarize."
	case errors.Is(err, ErrMalformedTimestamp):
		return "A timestamp could not be read; expected MM:SS or HH:MM:SS."
	case errors.Is(err, ErrSummarizationUnavailable):
		return "The summary service did not return a usable result. Please run the whole process again."
	case errors.Is(err, ErrRecognitionFailed):
		return "Speech recognition failed."
	case errors.Is(err, ErrStaleRun):
		return "The video was replaced or reset before processing finished."
	case errors.Is(err, ErrRunNotFound):
		return "No saved summary with that ID."
	default:
		return err.Error()
	}
}
