// Package pdfrenderer renders layout results to PDF with fpdf. It also
// implements layout.Typesetter, so the engine wraps and paginates with the
// exact same font metrics the final document is drawn with.
package pdfrenderer

import (
	"bytes"
	"fmt"
	"image"
	"strings"
	"sync"

	"codeberg.org/go-pdf/fpdf"

	"github.com/havenlog/havenlog/layout"

	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type Renderer struct {
	// metrics is a throwaway document used only for measurement. fpdf
	// instances are not safe for concurrent use.
	mu      sync.Mutex
	metrics *fpdf.Fpdf
	tr      func(string) string
}

func New() *Renderer {
	m := newDoc(layout.PageWidthA4, layout.PageHeightA4)
	return &Renderer{
		metrics: m,
		tr:      m.UnicodeTranslatorFromDescriptor(""),
	}
}

func newDoc(w, h float64) *fpdf.Fpdf {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: w, Ht: h},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetCellMargin(0)
	return pdf
}

// TextWidth measures a string in millimeters for the given font and size.
func (r *Renderer) TextWidth(content string, font layout.Font, size float64) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width(content, font, size)
}

func (r *Renderer) width(content string, font layout.Font, size float64) (float64, error) {
	r.metrics.SetFont(font.Family, font.Style, size*layout.MmToPt)
	w := r.metrics.GetStringWidth(r.tr(content))
	if err := r.metrics.Error(); err != nil {
		return 0, fmt.Errorf("measure %q: %w", content, err)
	}
	return w, nil
}

// LayoutLines wraps content to the given width. Wrapping is greedy on
// spaces; explicit newlines always break; a single token wider than the
// line is placed whole rather than cut.
func (r *Renderer) LayoutLines(content string, width float64, font layout.Font, size, lineHeight float64) ([]layout.TextLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	textH := r.textHeight(font, size)
	leading := lineHeight - textH
	if leading < 0 {
		leading = 0
	}

	var lines []layout.TextLine
	emit := func(s string) error {
		w, err := r.width(s, font, size)
		if err != nil {
			return err
		}
		tl := layout.TextLine{Content: s, Width: w, Height: textH}
		if len(lines) > 0 {
			tl.GapBefore = leading
		}
		lines = append(lines, tl)
		return nil
	}

	for _, hard := range strings.Split(content, "\n") {
		words := strings.Fields(hard)
		if len(words) == 0 {
			if err := emit(""); err != nil {
				return nil, err
			}
			continue
		}
		cur := ""
		for _, word := range words {
			cand := word
			if cur != "" {
				cand = cur + " " + word
			}
			w, err := r.width(cand, font, size)
			if err != nil {
				return nil, err
			}
			if cur != "" && w > width {
				if err := emit(cur); err != nil {
					return nil, err
				}
				cur = word
				continue
			}
			cur = cand
		}
		if err := emit(cur); err != nil {
			return nil, err
		}
	}
	return lines, nil
}

// textHeight derives the rendered glyph-box height in mm from the font
// descriptor. Caller holds r.mu.
func (r *Renderer) textHeight(font layout.Font, size float64) float64 {
	r.metrics.SetFont(font.Family, font.Style, size*layout.MmToPt)
	desc := r.metrics.GetFontDesc(font.Family, font.Style)
	if desc.Ascent > 0 && desc.Ascent > desc.Descent {
		return float64(desc.Ascent-desc.Descent) / 1000 * size
	}
	return size
}

func (r *Renderer) ascent(pdf *fpdf.Fpdf, font layout.Font, size float64) float64 {
	desc := pdf.GetFontDesc(font.Family, font.Style)
	if desc.Ascent > 0 {
		return float64(desc.Ascent) / 1000 * size
	}
	return 0.8 * size
}

// Render draws the laid-out pages into a PDF document.
func (r *Renderer) Render(result *layout.Result) ([]byte, error) {
	if result == nil || len(result.Pages) == 0 {
		return nil, fmt.Errorf("render: empty result")
	}

	first := result.Pages[0]
	pdf := newDoc(first.Width, first.Height)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if result.Meta.Title != "" {
		pdf.SetTitle(result.Meta.Title, true)
	}
	if result.Meta.Author != "" {
		pdf.SetAuthor(result.Meta.Author, true)
	}
	if result.Meta.Creator != "" {
		pdf.SetCreator(result.Meta.Creator, true)
	}
	if result.Meta.Subject != "" {
		pdf.SetSubject(result.Meta.Subject, true)
	}
	if len(result.Meta.Keywords) > 0 {
		pdf.SetKeywords(strings.Join(result.Meta.Keywords, ", "), true)
	}

	for name, blob := range result.Images {
		if err := registerImage(pdf, name, blob); err != nil {
			return nil, fmt.Errorf("image %s: %w", name, err)
		}
	}

	for i, page := range result.Pages {
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: page.Width, Ht: page.Height})
		r.drawRegion(pdf, tr, page.Header.Lines, page.Header.Texts, page.Header.Images)
		r.drawRects(pdf, page.Rects)
		r.drawRegion(pdf, tr, page.Lines, page.Texts, page.Images)
		for _, a := range page.Annotations {
			pdf.LinkString(a.X, a.Y, a.Width, a.Height, a.URL)
		}
		r.drawRegion(pdf, tr, page.Footer.Lines, page.Footer.Texts, page.Footer.Images)
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawRegion(pdf *fpdf.Fpdf, tr func(string) string, lines []layout.Line, texts []layout.TextBox, images []layout.ImageBox) {
	for _, ln := range lines {
		pdf.SetDrawColor(ln.Color.R, ln.Color.G, ln.Color.B)
		pdf.SetLineWidth(ln.Width)
		pdf.Line(ln.X1, ln.Y1, ln.X2, ln.Y2)
	}
	for _, tb := range texts {
		r.drawText(pdf, tr, tb)
	}
	for _, img := range images {
		pdf.ImageOptions(img.Name, img.X, img.Y, img.Width, img.Height, false, fpdf.ImageOptions{}, 0, "")
	}
}

func (r *Renderer) drawText(pdf *fpdf.Fpdf, tr func(string) string, tb layout.TextBox) {
	pdf.SetFont(tb.Font.Family, tb.Font.Style, tb.FontSize*layout.MmToPt)
	pdf.SetTextColor(tb.Color.R, tb.Color.G, tb.Color.B)
	asc := r.ascent(pdf, tb.Font, tb.FontSize)
	y := tb.Y
	for _, line := range tb.Lines {
		y += line.GapBefore
		x := tb.X
		switch tb.Align {
		case "right":
			x = tb.X + tb.Width - line.Width
		case "center":
			x = tb.X + (tb.Width-line.Width)/2
		}
		if line.Content != "" {
			pdf.Text(x, y+asc, tr(line.Content))
		}
		y += line.Height
	}
}

func (r *Renderer) drawRects(pdf *fpdf.Fpdf, rects []layout.Rect) {
	for _, rc := range rects {
		style := ""
		if rc.FillColor != nil {
			pdf.SetFillColor(rc.FillColor.R, rc.FillColor.G, rc.FillColor.B)
			style += "F"
		}
		if rc.StrokeWidth > 0 {
			pdf.SetDrawColor(rc.StrokeColor.R, rc.StrokeColor.G, rc.StrokeColor.B)
			pdf.SetLineWidth(rc.StrokeWidth)
			style += "D"
		}
		if style == "" {
			continue
		}
		pdf.Rect(rc.X, rc.Y, rc.Width, rc.Height, style)
	}
}

// registerImage hands an image resource to fpdf. Formats fpdf reads
// natively pass through; everything else is decoded and re-encoded as PNG.
func registerImage(pdf *fpdf.Fpdf, name string, blob layout.ImageBlob) error {
	switch strings.ToLower(blob.Format) {
	case "png", "jpeg", "jpg", "gif":
		opt := fpdf.ImageOptions{ImageType: imageType(blob.Format)}
		pdf.RegisterImageOptionsReader(name, opt, bytes.NewReader(blob.Data))
		return pdf.Error()
	}
	img, _, err := image.Decode(bytes.NewReader(blob.Data))
	if err != nil {
		return fmt.Errorf("decode %s: %w", blob.Format, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("re-encode: %w", err)
	}
	pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, &buf)
	return pdf.Error()
}

func imageType(format string) string {
	switch strings.ToLower(format) {
	case "jpg", "jpeg":
		return "JPEG"
	case "gif":
		return "GIF"
	default:
		return "PNG"
	}
}
