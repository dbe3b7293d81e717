package layout

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/havenlog/havenlog/doc"
)

// stubTypesetter measures every rune at half the font size. It greedily
// wraps on spaces, honors explicit newlines, and keeps oversized tokens
// whole, which is all the engine assumes of a real typesetter.
type stubTypesetter struct{}

func (s *stubTypesetter) runeWidth(size float64) float64 { return size * 0.5 }

func (s *stubTypesetter) measure(content string, size float64) float64 {
	return float64(utf8.RuneCountInString(content)) * s.runeWidth(size)
}

func (s *stubTypesetter) TextWidth(content string, font Font, size float64) (float64, error) {
	return s.measure(content, size), nil
}

func (s *stubTypesetter) LayoutLines(content string, width float64, font Font, size, lineHeight float64) ([]TextLine, error) {
	leading := lineHeight - size
	if leading < 0 {
		leading = 0
	}
	var lines []TextLine
	emit := func(line string) {
		tl := TextLine{Content: line, Width: s.measure(line, size), Height: size}
		if len(lines) > 0 {
			tl.GapBefore = leading
		}
		lines = append(lines, tl)
	}
	for _, hard := range strings.Split(content, "\n") {
		words := strings.Fields(hard)
		if len(words) == 0 {
			emit("")
			continue
		}
		cur := ""
		for _, w := range words {
			cand := w
			if cur != "" {
				cand = cur + " " + w
			}
			if cur != "" && s.measure(cand, size) > width {
				emit(cur)
				cur = w
				continue
			}
			cur = cand
		}
		emit(cur)
	}
	return lines, nil
}

func testEngine() *Engine {
	return New(&stubTypesetter{}, Options{
		Brand: "havenlog",
		Now:   func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) },
	})
}

func mustLayout(t *testing.T, blocks []doc.Block) *Result {
	t.Helper()
	res, err := testEngine().Layout(blocks, doc.Meta{Title: "Test entry"})
	if err != nil {
		t.Fatalf("layout failed: %v", err)
	}
	if len(res.Pages) == 0 {
		t.Fatalf("no pages produced")
	}
	return res
}

const eps = 1e-6

func TestWrappedLinesRespectContentWidth(t *testing.T) {
	long := strings.Repeat("incident detail word ", 80)
	res := mustLayout(t, []doc.Block{doc.Paragraph{Text: long}})

	width := res.Pages[0].Width - res.Pages[0].Margin.Left - res.Pages[0].Margin.Right
	for _, p := range res.Pages {
		for _, tb := range p.Texts {
			for _, ln := range tb.Lines {
				if strings.Contains(ln.Content, " ") && ln.Width-width > eps {
					t.Fatalf("line %q width %g exceeds content width %g", ln.Content, ln.Width, width)
				}
			}
		}
	}
}

func TestOversizedTokenPlacedWhole(t *testing.T) {
	token := strings.Repeat("x", 400)
	res := mustLayout(t, []doc.Block{doc.Paragraph{Text: token}})

	found := false
	for _, tb := range res.Pages[0].Texts {
		for _, ln := range tb.Lines {
			if ln.Content == token {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("unbreakable token should be placed as a single line")
	}
}

func TestLongParagraphSpansPages(t *testing.T) {
	long := strings.Repeat("word ", 4000)
	res := mustLayout(t, []doc.Block{doc.Paragraph{Text: long}})

	if len(res.Pages) < 2 {
		t.Fatalf("expected multiple pages, got %d", len(res.Pages))
	}
	for i, p := range res.Pages {
		top := p.Header.Height
		if p.Margin.Top > top {
			top = p.Margin.Top
		}
		bottom := p.Height - p.Margin.Bottom
		for _, tb := range p.Texts {
			if tb.Y < top-eps {
				t.Fatalf("page %d: text box at %g overlaps the header region (top %g)", i, tb.Y, top)
			}
			if tb.Y+tb.Height > bottom+eps {
				t.Fatalf("page %d: text box bottom %g crosses the bottom margin %g", i, tb.Y+tb.Height, bottom)
			}
		}
	}
}

func TestImageScaledPreservingAspect(t *testing.T) {
	res := mustLayout(t, []doc.Block{doc.Image{
		Data:   []byte("img"),
		Format: "png",
		Width:  3000,
		Height: 1500,
	}})

	var boxes []ImageBox
	for _, p := range res.Pages {
		boxes = append(boxes, p.Images...)
	}
	if len(boxes) != 1 {
		t.Fatalf("expected 1 placed image, got %d", len(boxes))
	}
	img := boxes[0]
	width := res.Pages[0].Width - res.Pages[0].Margin.Left - res.Pages[0].Margin.Right
	if img.Width-width > eps {
		t.Fatalf("image width %g exceeds content width %g", img.Width, width)
	}
	wantRatio := 3000.0 / 1500.0
	gotRatio := img.Width / img.Height
	if diff := gotRatio - wantRatio; diff > eps || diff < -eps {
		t.Fatalf("aspect ratio changed: got %g want %g", gotRatio, wantRatio)
	}
}

func TestTallImageScaledToContentHeight(t *testing.T) {
	// A long chat screenshot: narrow but far taller than a page.
	res := mustLayout(t, []doc.Block{doc.Image{
		Data:   []byte("img"),
		Format: "png",
		Width:  400,
		Height: 12000,
	}})

	var boxes []ImageBox
	for _, p := range res.Pages {
		boxes = append(boxes, p.Images...)
	}
	if len(boxes) != 1 {
		t.Fatalf("expected 1 placed image, got %d", len(boxes))
	}
	img := boxes[0]
	page := res.Pages[0]
	bottom := page.Height - page.Margin.Bottom
	if img.Y+img.Height > bottom+eps {
		t.Fatalf("image bottom %g crosses the bottom margin %g", img.Y+img.Height, bottom)
	}
	wantRatio := 400.0 / 12000.0
	gotRatio := img.Width / img.Height
	if diff := gotRatio - wantRatio; diff > eps || diff < -eps {
		t.Fatalf("aspect ratio changed: got %g want %g", gotRatio, wantRatio)
	}
}

func TestImageNeverSplitAcrossPages(t *testing.T) {
	filler := strings.Repeat("word ", 3500)
	res := mustLayout(t, []doc.Block{
		doc.Paragraph{Text: filler},
		doc.Image{Data: []byte("img"), Format: "png", Width: 1000, Height: 1200},
	})

	for i, p := range res.Pages {
		bottom := p.Height - p.Margin.Bottom
		for _, img := range p.Images {
			if img.Y+img.Height > bottom+eps {
				t.Fatalf("page %d: image bottom %g crosses the bottom margin %g", i, img.Y+img.Height, bottom)
			}
		}
	}
}

func TestBubbleBackgroundCoversContents(t *testing.T) {
	lines := make([]string, 12)
	for i := range lines {
		lines[i] = fmt.Sprintf("Speaker_1 [%02d:00–%02d:05]: %s", i, i, strings.Repeat("said a lot here ", 10))
	}
	res := mustLayout(t, []doc.Block{doc.AudioEvidence{
		Name:       "recording.m4a",
		Caption:    "kitchen argument",
		Transcript: lines,
		LinkURL:    "https://example.test/signed",
	}})

	var rect *Rect
	var pageIdx int
	for i, p := range res.Pages {
		if len(p.Rects) > 0 {
			rect = &p.Rects[0]
			pageIdx = i
			break
		}
	}
	if rect == nil {
		t.Fatalf("no bubble background rect placed")
	}

	// Every bubble text box sits fully inside the background rect.
	page := res.Pages[pageIdx]
	inside := 0
	sum := 0.0
	for _, tb := range page.Texts {
		if tb.Y >= rect.Y-eps && tb.Y+tb.Height <= rect.Y+rect.Height+eps && tb.X >= rect.X-eps {
			inside++
			sum += tb.Height
		}
	}
	if inside < 3 { // title, caption, link, transcript
		t.Fatalf("expected bubble contents inside the rect, found %d boxes", inside)
	}
	if rect.Height < sum {
		t.Fatalf("bubble rect height %g smaller than content sum %g", rect.Height, sum)
	}
}

func TestBubbleTranscriptLineCap(t *testing.T) {
	lines := make([]string, 12)
	for i := range lines {
		lines[i] = strings.Repeat("wrapped transcript content ", 8)
	}
	res := mustLayout(t, []doc.Block{doc.AudioEvidence{
		Name:       "recording.m4a",
		Transcript: lines,
	}})

	maxLines := 0
	for _, p := range res.Pages {
		for _, tb := range p.Texts {
			if len(tb.Lines) > maxLines {
				maxLines = len(tb.Lines)
			}
		}
	}
	if maxLines > DefaultBubbleLineLimit {
		t.Fatalf("bubble transcript wrapped to %d lines, cap is %d", maxLines, DefaultBubbleLineLimit)
	}
}

func TestBubbleLongCaptionStaysOnPage(t *testing.T) {
	caption := strings.Repeat("she kept a photo of every message he sent ", 300)
	res := mustLayout(t, []doc.Block{doc.AudioEvidence{
		Name:       "recording.m4a",
		Caption:    caption,
		Transcript: []string{"a short line"},
		LinkURL:    "https://example.test/signed",
	}})

	found := false
	for i, p := range res.Pages {
		bottom := p.Height - p.Margin.Bottom
		for _, rc := range p.Rects {
			found = true
			if rc.Y+rc.Height > bottom+eps {
				t.Fatalf("page %d: bubble rect bottom %g crosses the bottom margin %g", i, rc.Y+rc.Height, bottom)
			}
		}
		for _, tb := range p.Texts {
			if tb.Y+tb.Height > bottom+eps {
				t.Fatalf("page %d: bubble text bottom %g crosses the bottom margin %g", i, tb.Y+tb.Height, bottom)
			}
		}
	}
	if !found {
		t.Fatalf("no bubble background rect placed")
	}
}

func TestAnnotationMatchesLabelMeasurement(t *testing.T) {
	res := mustLayout(t, []doc.Block{doc.AudioEvidence{
		Name:    "recording.m4a",
		LinkURL: "https://example.test/signed",
	}})

	var anns []Annotation
	for _, p := range res.Pages {
		anns = append(anns, p.Annotations...)
	}
	if len(anns) != 1 {
		t.Fatalf("expected 1 annotation, got %d", len(anns))
	}
	ts := &stubTypesetter{}
	want, _ := ts.TextWidth(listenLabel, fontBody, smallSize)
	if diff := anns[0].Width - want; diff > eps || diff < -eps {
		t.Fatalf("annotation width %g does not equal measured label width %g", anns[0].Width, want)
	}
	if anns[0].URL != "https://example.test/signed" {
		t.Fatalf("unexpected annotation URL %q", anns[0].URL)
	}
}

func TestNoLinkNoAnnotation(t *testing.T) {
	res := mustLayout(t, []doc.Block{doc.AudioEvidence{
		Name:       "recording.m4a",
		Transcript: []string{"a short line"},
	}})

	for _, p := range res.Pages {
		if len(p.Annotations) != 0 {
			t.Fatalf("expected no annotations without a link URL")
		}
		for _, tb := range p.Texts {
			if tb.Content == listenLabel {
				t.Fatalf("listen label drawn without a link URL")
			}
		}
	}
	// The bubble itself still renders.
	if len(res.Pages[0].Rects) != 1 {
		t.Fatalf("bubble background missing")
	}
}

func TestFooterPageNumbers(t *testing.T) {
	long := strings.Repeat("word ", 4000)
	res := mustLayout(t, []doc.Block{doc.Paragraph{Text: long}})

	n := len(res.Pages)
	if n < 2 {
		t.Fatalf("need multiple pages for this test, got %d", n)
	}
	for i, p := range res.Pages {
		want := fmt.Sprintf("Page %d of %d", i+1, n)
		found := false
		for _, tb := range p.Footer.Texts {
			if tb.Content == want {
				found = true
				if tb.Align != "right" {
					t.Fatalf("page number should be right-aligned")
				}
				if tb.Y <= p.Height-p.Margin.Bottom {
					t.Fatalf("footer text should sit below the bottom margin line")
				}
			}
		}
		if !found {
			t.Fatalf("page %d: footer %q missing", i, want)
		}
	}
}

func TestHeaderRepeatedAndReserved(t *testing.T) {
	long := strings.Repeat("word ", 4000)
	res := mustLayout(t, []doc.Block{doc.Paragraph{Text: long}})

	for i, p := range res.Pages {
		if p.Header.Height <= 0 || len(p.Header.Texts) == 0 {
			t.Fatalf("page %d: header missing", i)
		}
		top := p.Header.Height
		if p.Margin.Top > top {
			top = p.Margin.Top
		}
		for _, tb := range p.Texts {
			if tb.Y < top-eps {
				t.Fatalf("page %d: body text at %g collides with header (reserved to %g)", i, tb.Y, top)
			}
		}
	}
	// Header carries the entry title.
	found := false
	for _, tb := range res.Pages[0].Header.Texts {
		if strings.Contains(tb.Content, "Test entry") {
			found = true
		}
	}
	if !found {
		t.Fatalf("header should include the entry title")
	}
}

func TestMissingTypesetter(t *testing.T) {
	eng := New(nil, Options{})
	if _, err := eng.Layout([]doc.Block{doc.Paragraph{Text: "x"}}, doc.Meta{}); err == nil {
		t.Fatalf("expected an error without a typesetter")
	}
}
