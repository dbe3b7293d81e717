package layout

// This file defines the placed-page model shared by the layout engine, the
// renderers and the debug JSON dump. All coordinates and sizes are in
// millimeters with the origin at the top-left of the page.

import "github.com/havenlog/havenlog/doc"

// Result holds the laid-out pages plus the resources a renderer needs.
type Result struct {
	Pages  []Page               `json:"pages"`
	Images map[string]ImageBlob `json:"-"`
	Meta   doc.Meta             `json:"meta"`
}

// ImageBlob is a registered image resource, referenced by ImageBox.Name.
type ImageBlob struct {
	Data   []byte
	Format string // "png", "jpeg", "gif", or anything image.Decode accepts
}

// Page records page geometry and the elements placed on it. Rects are
// drawn before Texts and Images so they act as backgrounds.
type Page struct {
	Width       float64      `json:"width"`
	Height      float64      `json:"height"`
	Margin      Margin       `json:"margin"`
	Texts       []TextBox    `json:"texts"`
	Images      []ImageBox   `json:"images"`
	Rects       []Rect       `json:"rects,omitempty"`
	Lines       []Line       `json:"lines,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
	Header      HeaderFooter `json:"header"`
	Footer      HeaderFooter `json:"footer"`
}

// HeaderFooter is a repeated page region. Header height is reserved before
// body layout; footer elements sit inside the bottom margin.
type HeaderFooter struct {
	Height float64    `json:"height"`
	Texts  []TextBox  `json:"texts"`
	Images []ImageBox `json:"images"`
	Lines  []Line     `json:"lines,omitempty"`
}

// Margin in millimeters.
type Margin struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Font names a renderer font face. Style follows the usual PDF core-font
// convention: "" regular, "B" bold, "I" italic.
type Font struct {
	Family string `json:"family"`
	Style  string `json:"style"`
}

// TextBox is a block of text with resolved coordinates and wrapped lines.
type TextBox struct {
	Content    string     `json:"content"`
	X          float64    `json:"x"`
	Y          float64    `json:"y"`
	Width      float64    `json:"width"`
	LineHeight float64    `json:"lineHeight"`
	Font       Font       `json:"font"`
	FontSize   float64    `json:"fontSize"`
	Color      Color      `json:"color"`
	Lines      []TextLine `json:"lines"`
	Height     float64    `json:"height"`
	Align      string     `json:"align,omitempty"` // left (default), center, right
}

// TextLine is one wrapped line with its measured width and height.
type TextLine struct {
	Content   string  `json:"content"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	GapBefore float64 `json:"gapBefore,omitempty"`
}

// ImageBox places a registered image resource.
type ImageBox struct {
	Name   string  `json:"name"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is a rectangle, optionally filled.
type Rect struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	StrokeColor Color   `json:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth"`
	FillColor   *Color  `json:"fillColor,omitempty"`
}

// Line is a straight segment, used for header rules.
type Line struct {
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
	Color Color   `json:"color"`
	Width float64 `json:"width"`
}

// Annotation is a clickable rectangle tied to a target URL. Its rect is
// computed from the same measurement as the label text it covers.
type Annotation struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	URL    string  `json:"url"`
}

// Color uses 0-255 RGB values.
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}
