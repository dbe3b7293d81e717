package transcript

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func TestParseDiarizationArray(t *testing.T) {
	raw := `[{"start":0,"end":4.5,"speaker":"Speaker_1","text":"hello there"},
	        {"start":4.5,"end":9,"speaker":"Speaker_2","text":"hi"}]`
	p := Parse(raw)
	s, ok := p.(Structured)
	if !ok {
		t.Fatalf("expected Structured, got %T", p)
	}
	if len(s.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(s.Segments))
	}

	lines := Format(p, 12)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "Speaker_1 [00:00–00:04]: hello there" {
		t.Fatalf("unexpected first line: %q", lines[0])
	}
}

func TestParseDiarizationWrappedObject(t *testing.T) {
	raw := `{"segments":[{"start":61,"end":65,"speaker":"A","text":"ok"}]}`
	p := Parse(raw)
	if _, ok := p.(Structured); !ok {
		t.Fatalf("expected Structured, got %T", p)
	}
	lines := Format(p, 0)
	if lines[0] != "A [01:01–01:05]: ok" {
		t.Fatalf("unexpected line: %q", lines[0])
	}
}

func TestFormatCapsStructuredLines(t *testing.T) {
	segs := make([]Segment, 20)
	for i := range segs {
		segs[i] = Segment{
			Start:   float64(i * 5),
			End:     float64(i*5 + 5),
			Speaker: "Speaker_1",
			Text:    fmt.Sprintf("turn %d", i),
		}
	}
	data, err := json.Marshal(segs)
	if err != nil {
		t.Fatal(err)
	}

	lines := Format(Parse(string(data)), 12)
	if len(lines) != 12 {
		t.Fatalf("expected exactly 12 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "turn 0") {
		t.Fatalf("cap should keep the earliest lines, got %q", lines[0])
	}
}

func TestParseHeuristicMarkers(t *testing.T) {
	raw := "Speaker_1 (Jo) [00:00-00:10]: it   started after dinner " +
		"Speaker_2 (Sam) [00:10-00:15]: and then what happened"
	p := Parse(raw)
	h, ok := p.(Heuristic)
	if !ok {
		t.Fatalf("expected Heuristic, got %T", p)
	}
	if len(h.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(h.Lines), h.Lines)
	}
	if !strings.HasPrefix(h.Lines[1], "Speaker_2 (Sam)") {
		t.Fatalf("unexpected second line: %q", h.Lines[1])
	}
	if strings.Contains(h.Lines[0], "  ") {
		t.Fatalf("whitespace should be normalized: %q", h.Lines[0])
	}
}

func TestParseHeuristicKeepsLeadingText(t *testing.T) {
	raw := "recorded on the kitchen counter " +
		"Speaker_1 (Jo) [00:00-00:10]: it started after dinner"
	p := Parse(raw)
	h, ok := p.(Heuristic)
	if !ok {
		t.Fatalf("expected Heuristic, got %T", p)
	}
	if len(h.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(h.Lines), h.Lines)
	}
	if h.Lines[0] != "recorded on the kitchen counter" {
		t.Fatalf("text before the first marker was lost: %q", h.Lines[0])
	}
	if !strings.HasPrefix(h.Lines[1], "Speaker_1 (Jo)") {
		t.Fatalf("unexpected second line: %q", h.Lines[1])
	}
}

func TestParseRawFallback(t *testing.T) {
	p := Parse("just   some\n\n plain   notes")
	r, ok := p.(Raw)
	if !ok {
		t.Fatalf("expected Raw, got %T", p)
	}
	if r.Text != "just some plain notes" {
		t.Fatalf("unexpected normalization: %q", r.Text)
	}
	lines := Format(p, 12)
	if len(lines) != 1 || lines[0] != "just some plain notes" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestParseInvalidJSONFallsThrough(t *testing.T) {
	if _, ok := Parse(`{"segments": "nope"}`).(Raw); !ok {
		t.Fatalf("malformed diarization should fall through to Raw")
	}
	if _, ok := Parse(`[1,2,3]`).(Raw); !ok {
		t.Fatalf("non-segment array should fall through to Raw")
	}
}

func TestParseEmpty(t *testing.T) {
	if lines := Format(Parse("   \n  "), 12); len(lines) != 0 {
		t.Fatalf("empty input should produce no lines, got %v", lines)
	}
}
