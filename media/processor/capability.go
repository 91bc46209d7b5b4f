package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os/exec"
	"strings"

	"github.com/nfnt/resize"
)

// Capabilities probes the backends once per pipeline and returns a copy of
// the result.
func (p *Pipeline) Capabilities(ctx context.Context) Capabilities {
	p.capsOnce.Do(func() {
		p.caps = p.probe(context.WithoutCancel(ctx))
		p.logger.Infof("image backends probed: native=%t bitmap=%t webp=%t",
			p.caps.Native, p.caps.Bitmap, p.caps.BitmapWebP)
	})
	return p.caps.clone()
}

func (p *Pipeline) probe(ctx context.Context) Capabilities {
	var caps Capabilities

	version, err := probeNative(ctx, p.cfg.Native)
	if err != nil {
		caps.Notes = append(caps.Notes, err.Error())
	} else {
		caps.Native = true
		caps.NativeVersion = version
	}

	if err := probeBitmap(p.cfg.Bitmap); err != nil {
		caps.Notes = append(caps.Notes, err.Error())
	} else {
		caps.Bitmap = true
		caps.BitmapWebP = webpEncoder != nil
		if !caps.BitmapWebP {
			caps.Notes = append(caps.Notes, "bitmap library has no WebP encoder, derivatives fall back to JPEG")
		}
	}
	return caps
}

// probeNative resolves the converter and runs it with -version. The first
// output line is returned as the version.
func probeNative(ctx context.Context, cfg NativeConfig) (string, error) {
	if !cfg.Enabled {
		return "", fmt.Errorf("native converter disabled by configuration")
	}
	path, err := exec.LookPath(cfg.Binary)
	if err != nil {
		return "", fmt.Errorf("native converter %q not found", cfg.Binary)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("native converter %q unusable: %v", cfg.Binary, err)
	}
	return firstLine(strings.TrimSpace(string(out))), nil
}

// probeBitmap round-trips a tiny image through the JPEG and PNG codecs and
// the resampler.
func probeBitmap(cfg BitmapConfig) error {
	if !cfg.Enabled {
		return fmt.Errorf("bitmap library disabled by configuration")
	}

	canvas := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if canvas == nil || len(canvas.Pix) != 4*4*4 {
		return fmt.Errorf("bitmap library cannot allocate true-colour canvas")
	}
	for i := range 4 {
		canvas.Set(i, i, color.RGBA{R: 200, G: 80, B: 40, A: 255})
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("bitmap library lacks JPEG support: %v", err)
	}
	if _, format, err := image.Decode(&buf); err != nil || format != "jpeg" {
		return fmt.Errorf("bitmap library lacks a JPEG decoder")
	}

	buf.Reset()
	if err := png.Encode(&buf, canvas); err != nil {
		return fmt.Errorf("bitmap library lacks PNG support: %v", err)
	}
	decoded, format, err := image.Decode(&buf)
	if err != nil || format != "png" {
		return fmt.Errorf("bitmap library lacks a PNG decoder")
	}

	if scaled := resize.Resize(2, 2, decoded, resize.Lanczos3); scaled.Bounds().Dx() != 2 {
		return fmt.Errorf("bitmap library resampler unavailable")
	}
	return nil
}
