package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log"
	"strings"

	"github.com/havenlog/havenlog/doc"
	"github.com/havenlog/havenlog/transcript"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// assemble flattens an entry into an ordered block sequence. Redaction
// happens here and only here, so both output formats stay in agreement
// about what a redacted export contains.
func (e *Exporter) assemble(ctx context.Context, view EntryView, evs []Evidence, req Request) []doc.Block {
	var blocks []doc.Block
	blocks = append(blocks, doc.Heading{Text: view.Title})

	var meta []string
	if !view.OccurredAt.IsZero() {
		meta = append(meta, view.OccurredAt.Format("2 Jan 2006 15:04"))
	}
	if !req.Redact && view.Location != "" {
		meta = append(meta, view.Location)
	}
	if view.SafetyRating > 0 {
		meta = append(meta, fmt.Sprintf("Safety %d/5", view.SafetyRating))
	}
	if view.MoodRating > 0 {
		meta = append(meta, fmt.Sprintf("Mood %d/10", view.MoodRating))
	}
	if len(meta) > 0 {
		blocks = append(blocks, doc.Paragraph{Text: strings.Join(meta, " | ")})
	}

	if view.Description != "" {
		blocks = append(blocks, doc.Paragraph{Text: view.Description})
	}
	for _, tag := range view.Tags {
		blocks = append(blocks, doc.ListItem{Text: tag})
	}
	if !req.Redact {
		if s := stateLine(view.StateBefore, view.StateAfter); s != "" {
			blocks = append(blocks, doc.Paragraph{Text: s})
		}
	}

	if len(evs) > 0 {
		blocks = append(blocks, doc.Heading{Text: "Evidence"})
	}
	for _, ev := range evs {
		switch {
		case strings.HasPrefix(ev.MIMEType, "image/"):
			if b, ok := e.imageBlock(ctx, ev, req.Redact); ok {
				blocks = append(blocks, b)
			}
		case strings.HasPrefix(ev.MIMEType, "audio/"):
			blocks = append(blocks, e.audioBlock(ctx, ev, req))
		default:
			blocks = append(blocks, doc.ListItem{
				Text: fmt.Sprintf("Attachment: %s (%s)", ev.FileName, ev.MIMEType),
			})
		}
	}
	return blocks
}

func stateLine(before, after string) string {
	var parts []string
	if before != "" {
		parts = append(parts, "Before: "+before)
	}
	if after != "" {
		parts = append(parts, "After: "+after)
	}
	return strings.Join(parts, " ")
}

// imageBlock downloads and probes one image. A failed download or an
// undecodable payload degrades to dropping the block, never to failing
// the whole export.
func (e *Exporter) imageBlock(ctx context.Context, ev Evidence, redact bool) (doc.Image, bool) {
	data, err := e.Blobs.Download(ctx, ev.Ref)
	if err != nil {
		log.Printf("export: evidence %s: download failed: %v", ev.ID, err)
		return doc.Image{}, false
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		log.Printf("export: evidence %s: undecodable image: %v", ev.ID, err)
		return doc.Image{}, false
	}
	img := doc.Image{
		Data:   data,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}
	if !redact {
		img.Caption = ev.Caption
	}
	return img, true
}

func (e *Exporter) audioBlock(ctx context.Context, ev Evidence, req Request) doc.AudioEvidence {
	b := doc.AudioEvidence{Name: ev.FileName}
	if !req.Redact {
		b.Caption = ev.Caption
		if ev.Transcript != "" {
			b.Transcript = transcript.Format(transcript.Parse(ev.Transcript), e.transcriptLimit())
		}
	}
	if req.IncludeLinks {
		url, err := e.Blobs.SignedURL(ctx, ev.Ref, e.linkTTL())
		if err != nil {
			log.Printf("export: evidence %s: signed url: %v", ev.ID, err)
		} else {
			b.LinkURL = url
		}
	}
	return b
}
