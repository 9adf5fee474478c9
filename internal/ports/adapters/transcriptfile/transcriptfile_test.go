package transcriptfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forPelevin/vidbrief/internal/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_JSONShapes(t *testing.T) {
	bare := `[{"text":"hello","start_time":0,"end_time":1000},{"text":"  ","start_time":1000,"end_time":1200},{"text":"world","start_time":1500,"end_time":2000}]`
	wrapped := `{"transcript":` + bare + `}`
	for name, content := range map[string]string{"bare.json": bare, "wrapped.json": wrapped, "noext": wrapped} {
		tr, err := Load(writeFile(t, name, content))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(tr.Utterances) != 2 || tr.Utterances[1].Text != "world" || tr.Utterances[1].StartTimeMs != 1500 {
			t.Fatalf("%s: unexpected utterances %+v", name, tr.Utterances)
		}
	}
}

func TestLoad_VTT(t *testing.T) {
	vtt := `WEBVTT
Kind: captions

1
00:00:00.160 --> 00:00:02.350
<c.colorE5E5E5>Hello</c> there

2
00:00:02.350 --> 00:00:04.000
Hello there

00:01.500 --> 01:02.25
second
line
`
	tr, err := Load(writeFile(t, "talk.vtt", vtt))
	if err != nil {
		t.Fatal(err)
	}
	want := []types.Utterance{
		{Text: "Hello there", StartTimeMs: 160, EndTimeMs: 4000},
		{Text: "second line", StartTimeMs: 1500, EndTimeMs: 62250},
	}
	if len(tr.Utterances) != len(want) {
		t.Fatalf("unexpected utterances %+v", tr.Utterances)
	}
	for i := range want {
		if tr.Utterances[i] != want[i] {
			t.Fatalf("utterance %d = %+v, want %+v", i, tr.Utterances[i], want[i])
		}
	}
}

func TestLoad_SRT(t *testing.T) {
	srt := "1\n00:00:01,000 --> 00:00:02,500\nFirst\n\n2\n01:00:00,000 --> 01:00:01,000\nLate\n"
	tr, err := Load(writeFile(t, "talk.srt", srt))
	if err != nil {
		t.Fatal(err)
	}
	if len(tr.Utterances) != 2 || tr.Utterances[1].StartTimeMs != 3_600_000 {
		t.Fatalf("unexpected utterances %+v", tr.Utterances)
	}
}

func TestLoad_RejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"empty.json":     "",
		"broken.json":    "{",
		"backwards.json": `[{"text":"a","start_time":5000,"end_time":6000},{"text":"b","start_time":1000,"end_time":2000}]`,
		"inverted.json":  `[{"text":"a","start_time":5000,"end_time":4000}]`,
		"negative.json":  `[{"text":"a","start_time":-1,"end_time":4000}]`,
	}
	for name, content := range cases {
		if _, err := Load(writeFile(t, name, content)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestParseCueTime(t *testing.T) {
	tests := map[string]int64{
		"00:00:02.350": 2350,
		"00:02.35":     2350,
		"01:00:00,001": 3_600_001,
		"1:02.5":       62_500,
		"00:00:03":     3000,
	}
	for in, want := range tests {
		got, err := ParseCueTime(in)
		if err != nil || got != want {
			t.Fatalf("ParseCueTime(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	for _, in := range []string{"abc", "1:2:3:4.000", "00:-1.000"} {
		if _, err := ParseCueTime(in); !errors.Is(err, types.ErrMalformedTimestamp) {
			t.Fatalf("ParseCueTime(%q): expected ErrMalformedTimestamp, got %v", in, err)
		}
	}
}

func TestParseCues_IgnoresNonCueLines(t *testing.T) {
	utts, err := ParseCues(strings.NewReader("WEBVTT\n\nNOTE nothing here\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(utts) != 0 {
		t.Fatalf("expected no cues, got %+v", utts)
	}
}
