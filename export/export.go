// Package export turns a stored journal entry and its evidence into a
// finished artifact: a flat Markdown text export or a paginated PDF.
package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/havenlog/havenlog/doc"
	"github.com/havenlog/havenlog/layout"
	"github.com/havenlog/havenlog/renderer"
)

var (
	ErrNotFound  = errors.New("export: entry not found")
	ErrForbidden = errors.New("export: forbidden")
)

// Format selects the export artifact type.
const (
	FormatText  = "text"
	FormatPaged = "paged"
)

// Request describes one export run. AllowPaged reflects the caller's
// tier; a paged request without it fails with ErrForbidden before any
// data is loaded.
type Request struct {
	EntryID      string
	Format       string // FormatText (default) or FormatPaged
	Redact       bool
	IncludeLinks bool
	AllowPaged   bool
}

// EntryView is the read model the assembler consumes.
type EntryView struct {
	ID           string
	Title        string
	Description  string
	OccurredAt   time.Time
	Location     string
	SafetyRating int
	MoodRating   int
	Tags         []string
	StateBefore  string
	StateAfter   string
}

// Evidence is one attached file with its stored annotations.
type Evidence struct {
	ID         string
	FileName   string
	MIMEType   string
	Caption    string
	Transcript string
	Ref        string
	UploadedAt time.Time
}

// EntryStore loads entries scoped to their owner.
type EntryStore interface {
	Entry(ctx context.Context, ownerID, entryID string) (EntryView, error)
	EvidenceByEntry(ctx context.Context, entryID string) ([]Evidence, error)
}

// BlobStore resolves evidence refs to bytes and shareable URLs.
type BlobStore interface {
	Download(ctx context.Context, ref string) ([]byte, error)
	SignedURL(ctx context.Context, ref string, ttl time.Duration) (string, error)
}

// Artifact is a finished export, ready to serve or write to disk.
type Artifact struct {
	ContentType string
	Filename    string
	Data        []byte
}

// Exporter wires the stores and the output backend together.
type Exporter struct {
	Entries  EntryStore
	Blobs    BlobStore
	Renderer renderer.Renderer

	Brand               string
	TranscriptLineLimit int
	BubbleLineLimit     int
	LinkTTL             time.Duration

	// DebugDir, when set, receives a JSON dump of each paged layout.
	DebugDir string
}

func (e *Exporter) transcriptLimit() int {
	if e.TranscriptLineLimit > 0 {
		return e.TranscriptLineLimit
	}
	return 12
}

func (e *Exporter) linkTTL() time.Duration {
	if e.LinkTTL > 0 {
		return e.LinkTTL
	}
	return 15 * time.Minute
}

// Export loads the entry, assembles its blocks and produces the requested
// artifact. The entry must belong to ownerID.
func (e *Exporter) Export(ctx context.Context, ownerID string, req Request) (*Artifact, error) {
	if req.Format == FormatPaged && !req.AllowPaged {
		return nil, ErrForbidden
	}
	view, err := e.Entries.Entry(ctx, ownerID, req.EntryID)
	if err != nil {
		return nil, err
	}
	evs, err := e.Entries.EvidenceByEntry(ctx, req.EntryID)
	if err != nil {
		return nil, fmt.Errorf("load evidence: %w", err)
	}

	blocks := e.assemble(ctx, view, evs, req)

	switch req.Format {
	case "", FormatText:
		return &Artifact{
			ContentType: "text/markdown; charset=utf-8",
			Filename:    fmt.Sprintf("journal-%s.md", view.ID),
			Data:        Text(blocks),
		}, nil
	case FormatPaged:
		return e.renderPaged(view, blocks)
	default:
		return nil, fmt.Errorf("unknown export format %q", req.Format)
	}
}

func (e *Exporter) renderPaged(view EntryView, blocks []doc.Block) (*Artifact, error) {
	if e.Renderer == nil {
		return nil, fmt.Errorf("paged export: no renderer configured")
	}
	ts, ok := e.Renderer.(layout.Typesetter)
	if !ok {
		return nil, fmt.Errorf("paged export: renderer cannot measure text")
	}

	opts := layout.DefaultOptions()
	if e.Brand != "" {
		opts.Brand = e.Brand
	}
	if e.BubbleLineLimit > 0 {
		opts.BubbleLineLimit = e.BubbleLineLimit
	}
	eng := layout.New(ts, opts)
	res, err := eng.Layout(blocks, doc.Meta{
		Title:    view.Title,
		Author:   opts.Brand,
		Creator:  opts.Brand,
		Subject:  "Journal entry export",
		Keywords: view.Tags,
	})
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}

	if e.DebugDir != "" {
		path := filepath.Join(e.DebugDir, fmt.Sprintf("layout-%s.json", view.ID))
		if err := layout.WriteDebugJSON(res, path); err != nil {
			return nil, fmt.Errorf("debug dump: %w", err)
		}
	}

	data, err := e.Renderer.Render(res)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return &Artifact{
		ContentType: "application/pdf",
		Filename:    fmt.Sprintf("journal-%s.pdf", view.ID),
		Data:        data,
	}, nil
}
