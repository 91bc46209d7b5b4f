package processor

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/leeforge/recipemedia/errors"
)

// nativeBackend drives the ImageMagick command line converter.
type nativeBackend struct {
	binary  string
	timeout time.Duration
}

func newNativeBackend(cfg NativeConfig) *nativeBackend {
	return &nativeBackend{binary: cfg.Binary, timeout: cfg.Timeout}
}

func (b *nativeBackend) Kind() BackendKind { return BackendNative }

func (b *nativeBackend) Prepare(ctx context.Context, src SourceImage, geo Geometry) (Canvas, error) {
	if geo.Width <= 0 || geo.Height <= 0 {
		return nil, fmt.Errorf("empty geometry")
	}
	return &nativeCanvas{backend: b, src: src, geo: geo}, nil
}

type nativeCanvas struct {
	backend *nativeBackend
	src     SourceImage
	geo     Geometry
}

func (c *nativeCanvas) Format() string { return "webp" }

func (c *nativeCanvas) Tunable() bool { return true }

func (c *nativeCanvas) Release() {}

// args builds the converter command line. Only the first frame of animated
// sources is used.
func (c *nativeCanvas) args(out string, quality int) []string {
	g := c.geo
	args := []string{
		c.src.Path + "[0]",
		"-resize", fmt.Sprintf("%dx%d!", g.ScaledWidth, g.ScaledHeight),
	}
	if g.Cropped() {
		args = append(args, "-crop", fmt.Sprintf("%dx%d+%d+%d", g.Width, g.Height, g.CropX, g.CropY), "+repage")
	}
	return append(args,
		"-strip",
		"-quality", strconv.Itoa(quality),
		"-define", "webp:lossless=false",
		"-define", "webp:method=4",
		"webp:"+out,
	)
}

func (c *nativeCanvas) Encode(ctx context.Context, stem string, quality int) (EncodeResult, error) {
	target := stem + ".webp"
	part := target + ".part"

	runCtx := ctx
	if c.backend.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.backend.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, c.backend.binary, c.args(part, quality)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// Grandchildren holding stderr open must not keep Wait blocked after
	// the kill.
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		_ = os.Remove(part)
		if stderrors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return EncodeResult{}, errors.Wrap(err, errors.ErrorTypeTimeout,
				fmt.Sprintf("converter timed out after %s", c.backend.timeout))
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return EncodeResult{}, fmt.Errorf("converter failed: %w", err)
		}
		return EncodeResult{}, fmt.Errorf("converter failed: %w: %s", err, firstLine(msg))
	}

	info, err := os.Stat(part)
	if err != nil {
		return EncodeResult{}, fmt.Errorf("converter produced no output: %w", err)
	}
	if err := os.Rename(part, target); err != nil {
		_ = os.Remove(part)
		return EncodeResult{}, err
	}
	return EncodeResult{Path: target, Format: "webp", Size: info.Size(), Tunable: true}, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
