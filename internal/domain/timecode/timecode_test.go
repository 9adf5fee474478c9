package timecode

import (
	"errors"
	"testing"

	"github.com/forPelevin/vidbrief/internal/types"
)

func TestEncode(t *testing.T) {
	tests := map[int64]string{
		0:         "00:00",
		999:       "00:00",
		1000:      "00:01",
		59999:     "00:59",
		61000:     "01:01",
		3599999:   "59:59",
		3600000:   "01:00:00",
		3661000:   "01:01:01",
		360000000: "100:00:00",
		-5:        "00:00",
	}
	for in, want := range tests {
		if got := Encode(in); got != want {
			t.Fatalf("Encode(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "01:01:01", want: 3661},
		{in: "12:34", want: 754},
		{in: "1:2:3", want: 3723},
		{in: "100:00:00", want: 360000},
		{in: " 00:05 ", want: 5},
		{in: "1:2:3:4", wantErr: true},
		{in: "42", wantErr: true},
		{in: "", wantErr: true},
		{in: "aa:bb", wantErr: true},
		{in: "01:-1", wantErr: true},
		{in: "01:+1", wantErr: true},
		{in: "01::02", wantErr: true},
		{in: "1.5:00", wantErr: true},
		{in: "153722867280912931:00", wantErr: true},
		{in: "9223372036854775807:00", wantErr: true},
		{in: "2562047788015215:59:59", wantErr: true},
		{in: "99999999999999999999:00", wantErr: true},
		{in: "153722867280912930:07", want: 9223372036854775807},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Decode(tt.in)
			if tt.wantErr {
				if !errors.Is(err, types.ErrMalformedTimestamp) {
					t.Fatalf("expected ErrMalformedTimestamp, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Decode(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestRoundTrip_FloorsToWholeSeconds(t *testing.T) {
	samples := []int64{0, 1, 999, 1000, 1001, 59_999, 60_000, 3_599_999, 3_600_000, 3_661_500, 86_399_999, 400_000_123}
	for ms := int64(0); ms < 7_300_000; ms += 7_919 {
		samples = append(samples, ms)
	}
	for _, ms := range samples {
		got, err := Decode(Encode(ms))
		if err != nil {
			t.Fatalf("Decode(Encode(%d)): %v", ms, err)
		}
		if got != ms/1000 {
			t.Fatalf("round trip of %d = %d, want %d", ms, got, ms/1000)
		}
	}
}
