package processor

import (
	"context"
	"fmt"

	"github.com/leeforge/recipemedia/utils"
)

// Backend produces derivatives. Prepare does the per-preset work that does
// not depend on quality; the returned Canvas is encoded one or more times
// and must be released before the next preset starts.
type Backend interface {
	Kind() BackendKind
	Prepare(ctx context.Context, src SourceImage, geo Geometry) (Canvas, error)
}

// Canvas is a prepared derivative waiting to be written.
type Canvas interface {
	// Format is the format Encode will write (webp, jpeg or the source
	// format for identity copies).
	Format() string
	// Tunable reports whether the quality passed to Encode changes the
	// output.
	Tunable() bool
	// Encode writes the derivative for stem (path without extension) and
	// replaces any previous file atomically.
	Encode(ctx context.Context, stem string, quality int) (EncodeResult, error)
	Release()
}

// EncodeResult describes one written file.
type EncodeResult struct {
	Path   string
	Format string
	Size   int64
	// Tunable is false when quality has no effect on the output.
	Tunable  bool
	Degraded bool
}

// derivativeExtensions lists every extension a derivative can be written
// with.
var derivativeExtensions = []string{".webp", ".jpg"}

// extensionFor maps an output format to the file extension used on disk.
func extensionFor(format string) string {
	if format == "jpeg" {
		return ".jpg"
	}
	return ".webp"
}

// copyBackend writes the untouched source to each derivative path.
type copyBackend struct{}

func (copyBackend) Kind() BackendKind { return BackendCopy }

func (copyBackend) Prepare(ctx context.Context, src SourceImage, geo Geometry) (Canvas, error) {
	return &copyCanvas{src: src}, nil
}

type copyCanvas struct {
	src SourceImage
}

func (c *copyCanvas) Format() string { return c.src.Format }

func (c *copyCanvas) Tunable() bool { return false }

// Encode ignores quality. The copy keeps the canonical .webp name so callers
// can always resolve derivatives by base name.
func (c *copyCanvas) Encode(ctx context.Context, stem string, _ int) (EncodeResult, error) {
	if err := ctx.Err(); err != nil {
		return EncodeResult{}, err
	}
	target := stem + ".webp"
	n, err := utils.CopyFile(c.src.Path, target)
	if err != nil {
		return EncodeResult{}, fmt.Errorf("copy source: %w", err)
	}
	return EncodeResult{Path: target, Format: c.src.Format, Size: n, Degraded: true}, nil
}

func (c *copyCanvas) Release() {}
