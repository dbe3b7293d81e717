package layout

import "time"

// Options configures the layout engine: page geometry, branding, and the
// caps that bound document growth.
type Options struct {
	PageWidth  float64
	PageHeight float64
	Margin     Margin

	// Brand is the site/brand string repeated in the header and footer.
	Brand string

	// Logo, when set, is drawn in the page header. Width/Height are
	// intrinsic pixels of Data.
	Logo       []byte
	LogoFormat string
	LogoWidth  int
	LogoHeight int

	// BubbleLineLimit caps the wrapped transcript lines inside one audio
	// evidence bubble. A pragmatic bound, not semantics; zero means the
	// default.
	BubbleLineLimit int

	// Now supplies the header timestamp; defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns A4 portrait with 20mm margins.
func DefaultOptions() Options {
	return Options{
		PageWidth:       PageWidthA4,
		PageHeight:      PageHeightA4,
		Margin:          Margin{Top: 20, Right: 20, Bottom: 20, Left: 20},
		Brand:           "havenlog",
		BubbleLineLimit: DefaultBubbleLineLimit,
	}
}

// DefaultBubbleLineLimit bounds wrapped transcript lines per bubble.
const DefaultBubbleLineLimit = 8

// Typesetter measures and wraps text for the engine. Both methods must be
// backed by the same font metrics the renderer draws with, or clickable
// regions drift from their labels.
type Typesetter interface {
	// LayoutLines greedily wraps content into lines no wider than width,
	// except that a single token wider than width is kept whole on its
	// own line. fontSize and lineHeight are millimeters.
	LayoutLines(content string, width float64, font Font, fontSize, lineHeight float64) ([]TextLine, error)

	// TextWidth measures a single unwrapped string.
	TextWidth(content string, font Font, fontSize float64) (float64, error)
}
