package layout

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/havenlog/havenlog/doc"
)

// Fixed typography for the paged document. Sizes are millimeters.
var (
	fontBody   = Font{Family: "Helvetica"}
	fontBold   = Font{Family: "Helvetica", Style: "B"}
	fontItalic = Font{Family: "Helvetica", Style: "I"}
)

const (
	headingSize     = 15 * PtToMm
	headerTitleSize = 12.5 * PtToMm
	bodySize        = 10.5 * PtToMm
	smallSize       = 8.5 * PtToMm

	lineSpread   = 1.4
	blockSpacing = 3.0
	captionGap   = 1.5

	bubblePadding = 3.0 // top/bottom padding inside a bubble
	bubbleInset   = 4.0 // horizontal inset for bubble content
	linkPad       = 0.8 // vertical padding of the clickable region

	headerTop    = 6.0
	headerGap    = 4.0
	footerOffset = 5.0 // footer top, measured below the bottom margin line
)

var (
	colorText       = Color{R: 30, G: 30, B: 30}
	colorMuted      = Color{R: 110, G: 110, B: 110}
	colorLink       = Color{R: 20, G: 90, B: 160}
	colorRule       = Color{R: 200, G: 200, B: 200}
	colorBubbleFill = Color{R: 243, G: 243, B: 246}
	colorBubbleEdge = Color{R: 212, G: 212, B: 220}
)

// listenLabel is the clickable text on audio evidence bubbles.
const listenLabel = "Listen to recording"

// Engine places content blocks onto fixed-size pages. It performs no I/O;
// all bytes (images, transcripts) arrive inside the blocks.
type Engine struct {
	opts Options
	ts   Typesetter
}

// New creates an engine. Zero fields in opts fall back to DefaultOptions
// values.
func New(ts Typesetter, opts Options) *Engine {
	def := DefaultOptions()
	if opts.PageWidth <= 0 {
		opts.PageWidth = def.PageWidth
	}
	if opts.PageHeight <= 0 {
		opts.PageHeight = def.PageHeight
	}
	if opts.Margin == (Margin{}) {
		opts.Margin = def.Margin
	}
	if opts.Brand == "" {
		opts.Brand = def.Brand
	}
	if opts.BubbleLineLimit <= 0 {
		opts.BubbleLineLimit = def.BubbleLineLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{opts: opts, ts: ts}
}

// renderState is the explicit cursor threaded through every placement:
// current page (via the collector) and the vertical position on it.
type renderState struct {
	col     *pageCollector
	cursorY float64
	x       float64 // left edge of the content column
	width   float64 // content column width
}

func (st *renderState) page() *pageAccumulator { return st.col.curr() }

// ensureSpace starts a new page when height does not fit below the cursor.
func (st *renderState) ensureSpace(height float64) {
	if st.cursorY+height <= st.col.contentBottom() {
		return
	}
	st.pageBreak()
}

func (st *renderState) pageBreak() {
	st.col.newPage()
	st.cursorY = st.col.contentTop()
}

// Layout places blocks in order and returns the finalized pages. Heights
// are always computed before placement: a block (or, for paragraphs, a
// line) that does not fit triggers a new page first.
func (e *Engine) Layout(blocks []doc.Block, meta doc.Meta) (*Result, error) {
	if e.ts == nil {
		return nil, fmt.Errorf("layout: missing typesetter")
	}

	res := &Result{Images: map[string]ImageBlob{}, Meta: meta}
	header, err := e.buildHeader(res, meta.Title)
	if err != nil {
		return nil, err
	}

	col := newPageCollector(e.opts.PageWidth, e.opts.PageHeight, e.opts.Margin, header)
	st := &renderState{
		col:   col,
		x:     e.opts.Margin.Left,
		width: e.contentWidth(),
	}
	st.cursorY = col.contentTop()

	imgSeq := 0
	for _, b := range blocks {
		switch b := b.(type) {
		case doc.Heading:
			err = e.placeText(st, b.Text, fontBold, headingSize, colorText)
		case doc.Paragraph:
			err = e.placeText(st, b.Text, fontBody, bodySize, colorText)
		case doc.ListItem:
			err = e.placeText(st, "• "+b.Text, fontBody, bodySize, colorText)
		case doc.Image:
			imgSeq++
			err = e.placeImage(st, res, b, imgSeq)
		case doc.AudioEvidence:
			err = e.placeBubble(st, b)
		}
		if err != nil {
			return nil, err
		}
	}

	pages := col.pages()
	e.finalize(pages)
	res.Pages = pages
	return res, nil
}

func (e *Engine) contentWidth() float64 {
	return e.opts.PageWidth - e.opts.Margin.Left - e.opts.Margin.Right
}

// compose wraps content into a TextBox at (x, y). Line heights and gaps
// missing from the typesetter are backfilled from the font size.
func (e *Engine) compose(content string, font Font, size float64, x, y, width float64) (TextBox, error) {
	lineHeight := size * lineSpread
	lines, err := e.ts.LayoutLines(content, width, font, size, lineHeight)
	if err != nil {
		return TextBox{}, fmt.Errorf("layout: wrap text: %w", err)
	}
	if len(lines) == 0 {
		lines = []TextLine{{Content: "", Height: size}}
	}
	leading := math.Max(lineHeight-size, 0)
	total := 0.0
	for i := range lines {
		if lines[i].Height <= 0 {
			lines[i].Height = size
		}
		if i == 0 {
			lines[i].GapBefore = 0
		} else if lines[i].GapBefore <= 0 {
			lines[i].GapBefore = leading
		}
		total += lines[i].GapBefore + lines[i].Height
	}
	return TextBox{
		Content:    content,
		X:          x,
		Y:          y,
		Width:      width,
		LineHeight: lineHeight,
		Font:       font,
		FontSize:   size,
		Color:      colorText,
		Lines:      lines,
		Height:     total,
	}, nil
}

func (e *Engine) placeText(st *renderState, content string, font Font, size float64, col Color) error {
	tb, err := e.compose(content, font, size, st.x, st.cursorY, st.width)
	if err != nil {
		return err
	}
	tb.Color = col
	e.placeComposed(st, tb)
	st.cursorY += blockSpacing
	return nil
}

// placeComposed places a wrapped TextBox line by line, splitting it across
// pages wherever the next line would cross the bottom margin. The first
// line of each page segment carries no leading gap.
func (e *Engine) placeComposed(st *renderState, tb TextBox) {
	var seg []TextLine
	segTop := st.cursorY
	flush := func() {
		if len(seg) == 0 {
			return
		}
		out := tb
		out.Y = segTop
		out.Lines = seg
		out.Height = st.cursorY - segTop
		st.page().texts = append(st.page().texts, out)
		seg = nil
	}
	for _, ln := range tb.Lines {
		gap := ln.GapBefore
		if len(seg) == 0 {
			gap = 0
		}
		// A line taller than a whole fresh page is still placed there;
		// otherwise nothing would ever fit.
		overflow := st.cursorY+gap+ln.Height > st.col.contentBottom()
		freshPage := len(seg) == 0 && st.cursorY <= st.col.contentTop()
		if overflow && !freshPage {
			flush()
			st.pageBreak()
			segTop = st.cursorY
			gap = 0
		}
		ln.GapBefore = gap
		seg = append(seg, ln)
		st.cursorY += gap + ln.Height
	}
	flush()
}

// placeImage scales to fit the content width and the content height of a
// fresh page, preserving aspect ratio. Images are never split across
// pages; the caption travels with the image.
func (e *Engine) placeImage(st *renderState, res *Result, img doc.Image, seq int) error {
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("layout: image %d has no intrinsic size", seq)
	}

	var caption TextBox
	capH := 0.0
	if img.Caption != "" {
		var err error
		caption, err = e.compose(img.Caption, fontItalic, smallSize, st.x, 0, st.width)
		if err != nil {
			return err
		}
		caption.Color = colorMuted
		caption = capLines(caption, e.opts.BubbleLineLimit)
		capH = captionGap + caption.Height
	}

	wMM := float64(img.Width) * PxToMm
	hMM := float64(img.Height) * PxToMm
	scale := 1.0
	if wMM > st.width {
		scale = st.width / wMM
	}
	// A tall image (a long chat screenshot) must still land on one page.
	maxH := st.col.contentBottom() - st.col.contentTop() - capH
	if maxH > 0 && hMM*scale > maxH {
		scale = maxH / hMM
	}
	drawW := wMM * scale
	drawH := hMM * scale

	st.ensureSpace(drawH + capH)

	name := fmt.Sprintf("image-%d", seq)
	res.Images[name] = ImageBlob{Data: img.Data, Format: img.Format}
	st.page().images = append(st.page().images, ImageBox{
		Name:   name,
		X:      st.x,
		Y:      st.cursorY,
		Width:  drawW,
		Height: drawH,
	})
	st.cursorY += drawH
	if capH > 0 {
		st.cursorY += captionGap
		caption.Y = st.cursorY
		st.page().texts = append(st.page().texts, caption)
		st.cursorY += caption.Height
	}
	st.cursorY += blockSpacing
	return nil
}

// bubbleMetrics is the measured plan for one audio evidence bubble. The
// measure/draw split exists because the bubble's background height depends
// on its wrapped contents.
type bubbleMetrics struct {
	height     float64
	title      TextBox
	caption    TextBox
	hasCaption bool
	link       TextBox
	linkWidth  float64
	hasLink    bool
	body       TextBox
	hasBody    bool
}

// measureBubble wraps every part of the bubble and sums its height without
// drawing anything. Each wrapped section is capped at the bubble line
// limit so the never-split bubble cannot outgrow a page. linkWidth comes
// from the one TextWidth call that also sizes the annotation rectangle.
func (e *Engine) measureBubble(a doc.AudioEvidence, x, width float64) (bubbleMetrics, error) {
	inner := width - 2*bubbleInset
	var m bubbleMetrics
	h := bubblePadding

	title, err := e.compose(a.Name, fontBold, bodySize, x+bubbleInset, 0, inner)
	if err != nil {
		return m, err
	}
	m.title = capLines(title, e.opts.BubbleLineLimit)
	h += m.title.Height

	if a.Caption != "" {
		caption, err := e.compose(a.Caption, fontItalic, smallSize, x+bubbleInset, 0, inner)
		if err != nil {
			return m, err
		}
		caption.Color = colorMuted
		m.caption = capLines(caption, e.opts.BubbleLineLimit)
		m.hasCaption = true
		h += captionGap + m.caption.Height
	}

	if a.LinkURL != "" {
		lw, err := e.ts.TextWidth(listenLabel, fontBody, smallSize)
		if err != nil {
			return m, fmt.Errorf("layout: measure link label: %w", err)
		}
		m.linkWidth = lw
		m.link = TextBox{
			Content:    listenLabel,
			Width:      inner,
			LineHeight: smallSize * lineSpread,
			Font:       fontBody,
			FontSize:   smallSize,
			Color:      colorLink,
			Lines:      []TextLine{{Content: listenLabel, Width: lw, Height: smallSize}},
			Height:     smallSize,
		}
		m.hasLink = true
		h += captionGap + m.link.Height
	}

	if len(a.Transcript) > 0 {
		body, err := e.compose(strings.Join(a.Transcript, "\n"), fontBody, smallSize, x+bubbleInset, 0, inner)
		if err != nil {
			return m, err
		}
		m.body = capLines(body, e.opts.BubbleLineLimit)
		m.hasBody = true
		h += captionGap + m.body.Height
	}

	h += bubblePadding
	m.height = h
	return m, nil
}

// placeBubble draws a pre-measured bubble: background rectangle first,
// then title, caption, clickable label and transcript lines inside it.
func (e *Engine) placeBubble(st *renderState, a doc.AudioEvidence) error {
	m, err := e.measureBubble(a, st.x, st.width)
	if err != nil {
		return err
	}
	st.ensureSpace(m.height)

	top := st.cursorY
	fill := colorBubbleFill
	st.page().rects = append(st.page().rects, Rect{
		X:           st.x,
		Y:           top,
		Width:       st.width,
		Height:      m.height,
		StrokeColor: colorBubbleEdge,
		StrokeWidth: 0.2,
		FillColor:   &fill,
	})

	y := top + bubblePadding
	title := m.title
	title.Y = y
	st.page().texts = append(st.page().texts, title)
	y += title.Height

	if m.hasCaption {
		y += captionGap
		caption := m.caption
		caption.Y = y
		st.page().texts = append(st.page().texts, caption)
		y += caption.Height
	}

	if m.hasLink {
		y += captionGap
		link := m.link
		link.X = st.x + bubbleInset
		link.Y = y
		st.page().texts = append(st.page().texts, link)
		st.page().annots = append(st.page().annots, Annotation{
			X:      link.X,
			Y:      y - linkPad,
			Width:  m.linkWidth,
			Height: smallSize + 2*linkPad,
			URL:    a.LinkURL,
		})
		y += link.Height
	}

	if m.hasBody {
		y += captionGap
		body := m.body
		body.Y = y
		st.page().texts = append(st.page().texts, body)
	}

	st.cursorY = top + m.height + blockSpacing
	return nil
}

// buildHeader lays out the repeated page header: brand line, entry title,
// export timestamp, optional logo on the right, and a rule underneath.
// Coordinates are absolute page coordinates; the returned height is
// reserved before body content on every page.
func (e *Engine) buildHeader(res *Result, title string) (HeaderFooter, error) {
	var hf HeaderFooter
	contentW := e.contentWidth()
	textW := contentW
	logoBottom := 0.0

	if len(e.opts.Logo) > 0 && e.opts.LogoWidth > 0 && e.opts.LogoHeight > 0 {
		logoH := 12.0
		logoW := logoH * float64(e.opts.LogoWidth) / float64(e.opts.LogoHeight)
		if logoW > 40 {
			logoW = 40
			logoH = logoW * float64(e.opts.LogoHeight) / float64(e.opts.LogoWidth)
		}
		res.Images["logo"] = ImageBlob{Data: e.opts.Logo, Format: e.opts.LogoFormat}
		hf.Images = append(hf.Images, ImageBox{
			Name:   "logo",
			X:      e.opts.PageWidth - e.opts.Margin.Right - logoW,
			Y:      headerTop,
			Width:  logoW,
			Height: logoH,
		})
		textW = contentW - logoW - 4
		logoBottom = headerTop + logoH
	}

	y := headerTop
	brand, err := e.compose(e.opts.Brand, fontBold, smallSize, e.opts.Margin.Left, y, textW)
	if err != nil {
		return hf, err
	}
	hf.Texts = append(hf.Texts, brand)
	y += brand.Height + 1.5

	if title != "" {
		tb, err := e.compose(title, fontBold, headerTitleSize, e.opts.Margin.Left, y, textW)
		if err != nil {
			return hf, err
		}
		hf.Texts = append(hf.Texts, tb)
		y += tb.Height + 1.0
	}

	stamp, err := e.compose("Exported "+e.opts.Now().Format("2 Jan 2006 15:04"), fontBody, smallSize, e.opts.Margin.Left, y, textW)
	if err != nil {
		return hf, err
	}
	stamp.Color = colorMuted
	hf.Texts = append(hf.Texts, stamp)
	y += stamp.Height

	if logoBottom > y {
		y = logoBottom
	}
	y += 2
	hf.Lines = append(hf.Lines, Line{
		X1:    e.opts.Margin.Left,
		Y1:    y,
		X2:    e.opts.PageWidth - e.opts.Margin.Right,
		Y2:    y,
		Color: colorRule,
		Width: 0.3,
	})
	hf.Height = y + headerGap
	return hf, nil
}

// finalize stamps the per-page footer once the total page count is known:
// brand on the left, "Page i of N" on the right, inside the bottom margin.
func (e *Engine) finalize(pages []Page) {
	n := len(pages)
	for i := range pages {
		p := &pages[i]
		top := p.Height - p.Margin.Bottom + footerOffset
		width := p.Width - p.Margin.Left - p.Margin.Right
		brand := footerText(e.opts.Brand, p.Margin.Left, top, width, "")
		num := footerText(fmt.Sprintf("Page %d of %d", i+1, n), p.Margin.Left, top, width, "right")
		p.Footer = HeaderFooter{
			Height: p.Margin.Bottom,
			Texts:  []TextBox{brand, num},
		}
	}
}

func footerText(content string, x, y, width float64, align string) TextBox {
	return TextBox{
		Content:    content,
		X:          x,
		Y:          y,
		Width:      width,
		LineHeight: smallSize * lineSpread,
		Font:       fontBody,
		FontSize:   smallSize,
		Color:      colorMuted,
		Lines:      []TextLine{{Content: content, Height: smallSize}},
		Height:     smallSize,
		Align:      align,
	}
}

// capLines truncates a wrapped TextBox to at most limit lines and
// recomputes its height.
func capLines(tb TextBox, limit int) TextBox {
	if limit > 0 && len(tb.Lines) > limit {
		tb.Lines = tb.Lines[:limit]
		tb.Height = sumLines(tb.Lines)
	}
	return tb
}

func sumLines(lines []TextLine) float64 {
	total := 0.0
	for _, ln := range lines {
		total += ln.GapBefore + ln.Height
	}
	return total
}

// pageAccumulator collects the elements of one page during layout.
type pageAccumulator struct {
	texts  []TextBox
	images []ImageBox
	rects  []Rect
	annots []Annotation
}

// pageCollector owns page allocation. The header is laid out once and
// stamped onto every page; its height shrinks the content area from the
// top, mirroring how the bottom margin bounds it from below.
type pageCollector struct {
	width   float64
	height  float64
	margin  Margin
	header  HeaderFooter
	accs    []*pageAccumulator
	current int
}

func newPageCollector(width, height float64, margin Margin, header HeaderFooter) *pageCollector {
	pc := &pageCollector{width: width, height: height, margin: margin, header: header}
	pc.newPage()
	return pc
}

func (pc *pageCollector) newPage() *pageAccumulator {
	acc := &pageAccumulator{}
	pc.accs = append(pc.accs, acc)
	pc.current = len(pc.accs) - 1
	return acc
}

func (pc *pageCollector) curr() *pageAccumulator {
	return pc.accs[pc.current]
}

// contentTop is max(top margin, header height).
func (pc *pageCollector) contentTop() float64 {
	if pc.header.Height > pc.margin.Top {
		return pc.header.Height
	}
	return pc.margin.Top
}

func (pc *pageCollector) contentBottom() float64 {
	return pc.height - pc.margin.Bottom
}

func (pc *pageCollector) pages() []Page {
	out := make([]Page, len(pc.accs))
	for i, acc := range pc.accs {
		out[i] = Page{
			Width:       pc.width,
			Height:      pc.height,
			Margin:      pc.margin,
			Texts:       acc.texts,
			Images:      acc.images,
			Rects:       acc.rects,
			Annotations: acc.annots,
			Header:      pc.header,
		}
	}
	return out
}
