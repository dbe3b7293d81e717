// Package doc defines the content blocks that the assembler produces and
// every downstream consumer (flat-text serializer, layout engine) reads.
// Nothing past the assembler touches the journal entry or its evidence
// records directly; blocks are the only currency.
package doc

// Block is one unit of document content. The concrete types below form a
// closed set; consumers switch on them.
type Block interface {
	block()
}

// Heading is a section or document title.
type Heading struct {
	Text string
}

// Paragraph is a run of body text, wrapped by the consumer.
type Paragraph struct {
	Text string
}

// ListItem is a single bulleted line.
type ListItem struct {
	Text string
}

// Image carries decoded-size metadata alongside the raw bytes so the layout
// stage stays free of I/O and decoding. Width/Height are intrinsic pixels.
type Image struct {
	Data    []byte
	Format  string // "png", "jpeg", "gif", "webp", ...
	Width   int
	Height  int
	Caption string
}

// AudioEvidence renders as a bubble: title line, optional caption, optional
// clickable listen label, and transcript display lines (already capped by
// the transcript formatter).
type AudioEvidence struct {
	Name       string
	Caption    string
	Transcript []string
	LinkURL    string // empty when links are disabled or signing failed
}

func (Heading) block()       {}
func (Paragraph) block()     {}
func (ListItem) block()      {}
func (Image) block()         {}
func (AudioEvidence) block() {}

// Meta carries document metadata for the paged output.
type Meta struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Subject  string   `json:"subject"`
	Creator  string   `json:"creator"`
	Keywords []string `json:"keywords"`
}
