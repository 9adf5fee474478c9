package whispercpp

import "testing"

func TestDecode(t *testing.T) {
	raw := []byte(`{
  "systeminfo": "AVX = 1",
  "transcription": [
    {"timestamps": {"from": "00:00:00,000", "to": "00:00:02,500"}, "offsets": {"from": 0, "to": 2500}, "text": " Hello there."},
    {"timestamps": {"from": "00:00:02,500", "to": "00:00:04,000"}, "offsets": {"from": 2500, "to": 4000}, "text": " [BLANK_AUDIO]"},
    {"timestamps": {"from": "00:00:04,000", "to": "00:00:03,000"}, "offsets": {"from": 4000, "to": 3000}, "text": " Broken end"},
    {"offsets": {"from": 5000, "to": 6000}, "text": "   "}
  ]
}`)
	tr, err := decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(tr.Utterances) != 2 {
		t.Fatalf("expected 2 utterances, got %+v", tr.Utterances)
	}
	if tr.Utterances[0].Text != "Hello there." || tr.Utterances[0].EndTimeMs != 2500 {
		t.Fatalf("unexpected first utterance %+v", tr.Utterances[0])
	}
	if u := tr.Utterances[1]; u.StartTimeMs != 4000 || u.EndTimeMs != 4000 {
		t.Fatalf("end before start must be clamped: %+v", u)
	}
}

func TestDecode_Invalid(t *testing.T) {
	if _, err := decode([]byte("not json")); err == nil {
		t.Fatalf("expected error")
	}
}
