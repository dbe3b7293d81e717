package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/havenlog/havenlog/export"
	"github.com/havenlog/havenlog/internal/api"
	"github.com/havenlog/havenlog/internal/auth"
	"github.com/havenlog/havenlog/internal/blob"
	"github.com/havenlog/havenlog/internal/config"
	"github.com/havenlog/havenlog/internal/store"
	pdfrenderer "github.com/havenlog/havenlog/renderer/pdf"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "havenlog",
		Short: "Private incident journal with evidence exports",
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "havenlog.yaml", "config file path")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg   config.Config
	store *store.Store
	blobs *blob.Store
}

func openApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	st, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	blobs, err := blob.New(cfg.BlobDir, cfg.Secret, cfg.BaseURL)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &app{cfg: cfg, store: st, blobs: blobs}, nil
}

func (a *app) Close() error { return a.store.Close() }

func (a *app) exporter(debugDir string) *export.Exporter {
	return &export.Exporter{
		Entries:             a.store,
		Blobs:               a.blobs,
		Renderer:            pdfrenderer.New(),
		Brand:               a.cfg.Brand,
		TranscriptLineLimit: a.cfg.Export.TranscriptLineLimit,
		BubbleLineLimit:     a.cfg.Export.BubbleLineLimit,
		LinkTTL:             time.Duration(a.cfg.Export.LinkTTLMinutes) * time.Minute,
		DebugDir:            debugDir,
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			srv := api.New(a.store, a.blobs,
				&auth.TokenAuthorizer{Source: a.store},
				a.exporter(""), a.cfg.Addr)
			return srv.Run()
		},
	}
}

func exportCmd() *cobra.Command {
	var (
		entryID  string
		ownerID  string
		format   string
		redact   bool
		noLinks  bool
		outPath  string
		debugDir string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export one entry to Markdown or PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			// The local operator is not tier-gated.
			art, err := a.exporter(debugDir).Export(context.Background(), ownerID, export.Request{
				EntryID:      entryID,
				Format:       format,
				Redact:       redact,
				IncludeLinks: !noLinks,
				AllowPaged:   true,
			})
			if err != nil {
				return err
			}

			path := outPath
			if path == "" {
				path = art.Filename
			}
			if err := os.WriteFile(path, art.Data, 0o644); err != nil {
				return fmt.Errorf("write artifact: %w", err)
			}
			fmt.Printf("Wrote %s (%d bytes, %s)\n", path, len(art.Data), art.ContentType)
			return nil
		},
	}

	cmd.Flags().StringVar(&entryID, "entry", "", "entry id")
	cmd.Flags().StringVar(&ownerID, "owner", "", "owner user id")
	cmd.Flags().StringVar(&format, "format", export.FormatText, "text or paged")
	cmd.Flags().BoolVar(&redact, "redact", false, "strip location, captions and transcripts")
	cmd.Flags().BoolVar(&noLinks, "no-links", false, "skip signed evidence links")
	cmd.Flags().StringVar(&outPath, "out", "", "output path (defaults to the artifact filename)")
	cmd.Flags().StringVar(&debugDir, "debug", "", "directory for layout JSON dumps")
	cmd.MarkFlagRequired("entry")
	cmd.MarkFlagRequired("owner")
	return cmd
}

func seedCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a demo user with one entry and attached evidence",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := context.Background()

			userID, err := a.store.CreateUser(ctx, "demo", token, "plus")
			if err != nil {
				return err
			}

			entryID, err := a.store.CreateEntry(ctx, userID, export.EntryView{
				Title:        "Argument over the phone bill",
				Description:  "He grabbed my phone, read my messages out loud and threw it across the room.",
				OccurredAt:   time.Now().Add(-48 * time.Hour),
				Location:     "Living room",
				SafetyRating: 2,
				MoodRating:   1,
				Tags:         []string{"monitoring", "property damage"},
				StateBefore:  "relaxed, watching TV",
				StateAfter:   "frightened, locked myself in the bathroom",
			})
			if err != nil {
				return err
			}

			imgRef, err := a.blobs.Save(seedImage(), ".png")
			if err != nil {
				return err
			}
			if _, err := a.store.AddEvidence(ctx, entryID, export.Evidence{
				FileName: "broken-phone.png",
				MIMEType: "image/png",
				Caption:  "cracked screen after it hit the wall",
				Ref:      imgRef,
			}); err != nil {
				return err
			}

			audRef, err := a.blobs.Save([]byte("seed-audio-placeholder"), ".m4a")
			if err != nil {
				return err
			}
			transcript := `[{"start":0,"end":6.2,"speaker":"Speaker_1","text":"who were you texting just now"},` +
				`{"start":6.2,"end":9.8,"speaker":"Speaker_2","text":"it was my sister, please calm down"},` +
				`{"start":9.8,"end":14.0,"speaker":"Speaker_1","text":"give me the phone"}]`
			if _, err := a.store.AddEvidence(ctx, entryID, export.Evidence{
				FileName:   "argument.m4a",
				MIMEType:   "audio/mp4",
				Caption:    "recorded on my watch",
				Transcript: transcript,
				Ref:        audRef,
			}); err != nil {
				return err
			}

			fmt.Printf("user:  %s (token %s)\n", userID, token)
			fmt.Printf("entry: %s\n", entryID)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "demo-token", "bearer token for the demo user")
	return cmd
}

// seedImage draws a small two-tone PNG so exports have a real decodable
// image to embed.
func seedImage() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 320, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 320; x++ {
			c := color.RGBA{R: 235, G: 235, B: 240, A: 255}
			if (x/40+y/40)%2 == 0 {
				c = color.RGBA{R: 90, G: 90, B: 110, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}
