// Package transcript turns raw transcript payloads into readable
// speaker-turn display lines. Input arrives in one of three shapes, tried
// in order: diarization JSON, free text with inline speaker markers, or
// plain text. Parse never fails; the worst case is the input with only
// whitespace normalization applied.
package transcript

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Parsed is the result of Parse: Structured, Heuristic or Raw.
type Parsed interface {
	parsed()
}

// Structured is a diarization payload: timed, speaker-attributed segments.
type Structured struct {
	Segments []Segment
}

// Heuristic is free text split on inline speaker markers.
type Heuristic struct {
	Lines []string
}

// Raw is text with no recoverable structure, whitespace-normalized.
type Raw struct {
	Text string
}

func (Structured) parsed() {}
func (Heuristic) parsed()  {}
func (Raw) parsed()        {}

// Segment is one diarized speaker turn. Start and End are seconds.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
}

// Inline markers look like `Speaker_1 (Jo) [00:12-00:19]:`.
var markerPattern = regexp.MustCompile(`Speaker_\d+\s*\([^)]*\)\s*\[[^\]]*\]\s*:`)

// Parse classifies a raw transcript payload. Diarization JSON is accepted
// either as a bare segment array or wrapped in {"segments": [...]}.
func Parse(raw string) Parsed {
	trimmed := strings.TrimSpace(raw)
	if segs, ok := parseDiarization(trimmed); ok {
		return Structured{Segments: segs}
	}

	clean := normalizeSpace(raw)
	if clean == "" {
		return Raw{Text: ""}
	}
	if lines, ok := splitOnMarkers(clean); ok {
		return Heuristic{Lines: lines}
	}
	return Raw{Text: clean}
}

// Format renders a parsed transcript as display lines, keeping at most
// limit lines (limit <= 0 means unlimited). Structured segments render as
// "{speaker} [{mm:ss}–{mm:ss}]: {text}".
func Format(p Parsed, limit int) []string {
	var lines []string
	switch t := p.(type) {
	case Structured:
		for _, seg := range t.Segments {
			speaker := strings.TrimSpace(seg.Speaker)
			if speaker == "" {
				speaker = "Speaker"
			}
			text := normalizeSpace(seg.Text)
			lines = append(lines, fmt.Sprintf("%s [%s–%s]: %s", speaker, clock(seg.Start), clock(seg.End), text))
		}
	case Heuristic:
		lines = append(lines, t.Lines...)
	case Raw:
		if t.Text != "" {
			lines = []string{t.Text}
		}
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[:limit]
	}
	return lines
}

func parseDiarization(trimmed string) ([]Segment, bool) {
	if trimmed == "" {
		return nil, false
	}
	switch trimmed[0] {
	case '[':
		var segs []Segment
		if err := json.Unmarshal([]byte(trimmed), &segs); err != nil {
			return nil, false
		}
		return validSegments(segs)
	case '{':
		var wrapper struct {
			Segments []Segment `json:"segments"`
		}
		if err := json.Unmarshal([]byte(trimmed), &wrapper); err != nil {
			return nil, false
		}
		return validSegments(wrapper.Segments)
	}
	return nil, false
}

// validSegments rejects payloads that parsed as JSON but carry no usable
// speaker turns, so they fall through to the heuristic path.
func validSegments(segs []Segment) ([]Segment, bool) {
	out := segs[:0]
	for _, s := range segs {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func splitOnMarkers(clean string) ([]string, bool) {
	locs := markerPattern.FindAllStringIndex(clean, -1)
	if len(locs) == 0 {
		return nil, false
	}
	var lines []string
	// Text before the first marker is still content; keep it as a
	// leading line.
	if lead := strings.TrimSpace(clean[:locs[0][0]]); lead != "" {
		lines = append(lines, lead)
	}
	for i, loc := range locs {
		end := len(clean)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if line := strings.TrimSpace(clean[loc[0]:end]); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, false
	}
	return lines, true
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
