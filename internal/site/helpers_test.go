package site

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"sitewright/internal/config"
	"sitewright/internal/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeFile creates path with content, making parent directories as needed.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// writePNG creates a small solid-color PNG for the media fixtures.
func writePNG(t *testing.T, path string, w, h int, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// testConfig returns a dev-profile configuration rooted at root, bypassing
// the loader.
func testConfig(root string, sites ...config.Site) *config.Config {
	return &config.Config{
		DataRoot: root,
		Protocol: "https://",
		Author:   "Jane Roe",
		Sites:    sites,
		Profile:  config.DefaultProfile,
	}
}

// newTestState builds a run state and executes the configure stage, so tests
// can exercise the later stages in isolation. The data root needs at least a
// templates directory.
func newTestState(t *testing.T, cfg *config.Config) *State {
	t.Helper()
	st := newState(cfg, metrics.NoopRecorder{}, testLogger())
	if err := configureStage(context.Background(), st); err != nil {
		t.Fatalf("configure stage: %v", err)
	}
	return st
}

func builtPath(cfg *config.Config, site, rel string) string {
	return filepath.Join(cfg.BuildRoot(), site, filepath.FromSlash(rel))
}

func readBuilt(t *testing.T, cfg *config.Config, site, rel string) string {
	t.Helper()
	data, err := os.ReadFile(builtPath(cfg, site, rel))
	if err != nil {
		t.Fatalf("read built %s/%s: %v", site, rel, err)
	}
	return string(data)
}
