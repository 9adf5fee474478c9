// Package timecode converts between millisecond offsets and the MM:SS /
// HH:MM:SS strings shown next to summary and transcript entries.
package timecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/vidbrief/internal/types"
)

// Encode formats ms as MM:SS, or HH:MM:SS once it reaches one hour.
// The sub-second remainder is dropped.
func Encode(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// EncodeDuration is Encode for a time.Duration.
func EncodeDuration(d time.Duration) string {
	return Encode(d.Milliseconds())
}

// Decode parses MM:SS or HH:MM:SS into whole seconds.
func Decode(s string) (int64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q has %d fields", types.ErrMalformedTimestamp, s, len(parts))
	}
	var total int64
	for _, p := range parts {
		if !isDigits(p) {
			return 0, fmt.Errorf("%w: %q", types.ErrMalformedTimestamp, s)
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", types.ErrMalformedTimestamp, s, err)
		}
		if total > (math.MaxInt64-n)/60 {
			return 0, fmt.Errorf("%w: %q is out of range", types.ErrMalformedTimestamp, s)
		}
		total = total*60 + n
	}
	return total, nil
}

// DecodeSeconds is Decode as a float for the playback collaborator.
func DecodeSeconds(s string) (float64, error) {
	sec, err := Decode(s)
	if err != nil {
		return 0, err
	}
	return float64(sec), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
