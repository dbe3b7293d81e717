// Package config loads server configuration from a YAML file, falling
// back to defaults when the file or individual keys are absent.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr    string `yaml:"addr"`
	DBPath  string `yaml:"db_path"`
	BlobDir string `yaml:"blob_dir"`
	BaseURL string `yaml:"base_url"`
	Secret  string `yaml:"secret"`
	Brand   string `yaml:"brand"`
	Export  Export `yaml:"export"`
}

type Export struct {
	// TranscriptLineLimit caps formatted transcript lines per recording.
	TranscriptLineLimit int `yaml:"transcript_line_limit"`
	// BubbleLineLimit caps wrapped transcript lines inside a PDF bubble.
	BubbleLineLimit int `yaml:"bubble_line_limit"`
	// LinkTTLMinutes is the lifetime of signed evidence URLs.
	LinkTTLMinutes int `yaml:"link_ttl_minutes"`
}

func Default() Config {
	return Config{
		Addr:    ":8080",
		DBPath:  "havenlog.db",
		BlobDir: "blobs",
		BaseURL: "http://localhost:8080",
		Secret:  "dev-secret-change-me",
		Brand:   "havenlog",
		Export: Export{
			TranscriptLineLimit: 12,
			BubbleLineLimit:     8,
			LinkTTLMinutes:      15,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error;
// a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
