package processor

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// testConfig has no usable native converter so the bitmap library is picked.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Native.Binary = "recipemedia-missing-converter"
	return cfg
}

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	return newPipelineWithConfig(t, testConfig(), opts...)
}

func newPipelineWithConfig(t *testing.T, cfg Config, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(cfg, opts...)
	require.NoError(t, err)
	return p
}

// gradient draws a deterministic image so encoders have real content.
func gradient(w, h int, opaque bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(255)
			if !opaque && x < w/4 {
				a = 0
			}
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: uint8((x + y) % 256), A: a})
		}
	}
	return img
}

func writeJPEG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, gradient(w, h, true), &jpeg.Options{Quality: 90}))
	return path
}

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, gradient(w, h, false)))
	return path
}

func dimensions(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func hasDiagnostic(diags []string, substr string) bool {
	for _, d := range diags {
		if strings.Contains(d, substr) {
			return true
		}
	}
	return false
}

// writeStubConverter installs a shell script standing in for ImageMagick.
// body runs for every invocation except -version.
func writeStubConverter(t *testing.T, version bool, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs need a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "convert")
	versionExit := 0
	if !version {
		versionExit = 1
	}
	script := fmt.Sprintf(`#!/bin/sh
if [ "$1" = "-version" ]; then
  echo "Version: ImageMagick 7.1.1-21 Q16-HDRI x86_64"
  echo "-version" >> "%s/probes"
  exit %d
fi
%s
`, dir, versionExit, body)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// fakeBackend writes sizeFor(quality) bytes per encode and records every
// call.
type fakeBackend struct {
	mu        sync.Mutex
	sizeFor   func(preset string, quality int) int
	failFor   map[string]bool
	panicOn   string
	qualities map[string][]int
	released  int
}

func newFakeBackend(sizeFor func(preset string, quality int) int) *fakeBackend {
	return &fakeBackend{
		sizeFor:   sizeFor,
		failFor:   map[string]bool{},
		qualities: map[string][]int{},
	}
}

func (b *fakeBackend) Kind() BackendKind { return BackendBitmap }

func (b *fakeBackend) Prepare(ctx context.Context, src SourceImage, geo Geometry) (Canvas, error) {
	return &fakeCanvas{backend: b}, nil
}

func (b *fakeBackend) record(preset string, q int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.qualities[preset] = append(b.qualities[preset], q)
}

type fakeCanvas struct {
	backend *fakeBackend
}

func (c *fakeCanvas) Format() string { return "webp" }

func (c *fakeCanvas) Tunable() bool { return true }

func (c *fakeCanvas) Encode(ctx context.Context, stem string, quality int) (EncodeResult, error) {
	preset := presetFromStem(stem)
	c.backend.record(preset, quality)
	if preset == c.backend.panicOn {
		panic("decoder ran out of memory")
	}
	if c.backend.failFor[preset] {
		return EncodeResult{}, fmt.Errorf("corrupt scanline")
	}
	size := c.backend.sizeFor(preset, quality)
	path := stem + ".webp"
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		return EncodeResult{}, err
	}
	return EncodeResult{Path: path, Format: "webp", Size: int64(size), Tunable: true}, nil
}

func (c *fakeCanvas) Release() {
	c.backend.mu.Lock()
	c.backend.released++
	c.backend.mu.Unlock()
}

func presetFromStem(stem string) string {
	switch {
	case strings.HasSuffix(stem, "_thumb"):
		return PresetThumbnail
	case strings.HasSuffix(stem, "_optimized"):
		return PresetOptimized
	case strings.HasSuffix(stem, "_banner"):
		return PresetBanner
	}
	return ""
}

type fakeMirror struct {
	mu        sync.Mutex
	published []string
	removed   []string
	failOn    string
}

func (m *fakeMirror) Name() string { return "fake" }

func (m *fakeMirror) Publish(ctx context.Context, localPath string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := filepath.Base(localPath)
	if m.failOn != "" && strings.Contains(name, m.failOn) {
		return "", fmt.Errorf("connection reset")
	}
	m.published = append(m.published, name)
	return "https://cdn.test/" + name, nil
}

func (m *fakeMirror) Remove(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, name)
	return nil
}
