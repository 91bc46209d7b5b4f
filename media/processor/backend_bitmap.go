package processor

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// bitmapBackend decodes, resamples and crops in process.
type bitmapBackend struct{}

func (bitmapBackend) Kind() BackendKind { return BackendBitmap }

// Prepare decodes the source and produces the cropped canvas. The decoded
// source and the scaled intermediate are dropped before it returns.
func (bitmapBackend) Prepare(ctx context.Context, src SourceImage, geo Geometry) (Canvas, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, err
	}
	decoded, _, err := image.Decode(f)
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("decode source: %w", err)
	}

	scaled := resize.Resize(uint(geo.ScaledWidth), uint(geo.ScaledHeight), decoded, resize.Lanczos3)
	decoded = nil

	out := image.NewRGBA(image.Rect(0, 0, geo.Width, geo.Height))
	window := image.Rect(geo.CropX, geo.CropY, geo.CropX+geo.Width, geo.CropY+geo.Height).
		Add(scaled.Bounds().Min)
	draw.Copy(out, image.Point{}, scaled, window, draw.Src, nil)
	scaled = nil

	return &bitmapCanvas{img: out}, nil
}

type bitmapCanvas struct {
	img *image.RGBA
}

func (c *bitmapCanvas) Format() string {
	if webpEncoder != nil {
		return "webp"
	}
	return "jpeg"
}

func (c *bitmapCanvas) Tunable() bool { return true }

func (c *bitmapCanvas) Release() {
	c.img = nil
}

func (c *bitmapCanvas) Encode(ctx context.Context, stem string, quality int) (EncodeResult, error) {
	if c.img == nil {
		return EncodeResult{}, fmt.Errorf("canvas already released")
	}
	if err := ctx.Err(); err != nil {
		return EncodeResult{}, err
	}
	format := c.Format()
	target := stem + extensionFor(format)

	tmp, err := os.CreateTemp(filepath.Dir(target), ".encode-*")
	if err != nil {
		return EncodeResult{}, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if format == "webp" {
		err = webpEncoder(tmp, c.img, quality)
	} else {
		err = jpeg.Encode(tmp, flatten(c.img), &jpeg.Options{Quality: quality})
	}
	if err != nil {
		_ = tmp.Close()
		return EncodeResult{}, fmt.Errorf("encode %s: %w", format, err)
	}
	if err := tmp.Close(); err != nil {
		return EncodeResult{}, err
	}
	info, err := os.Stat(tmpName)
	if err != nil {
		return EncodeResult{}, err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return EncodeResult{}, err
	}
	if err := os.Rename(tmpName, target); err != nil {
		return EncodeResult{}, err
	}
	return EncodeResult{
		Path:     target,
		Format:   format,
		Size:     info.Size(),
		Tunable:  true,
		Degraded: format != "webp",
	}, nil
}

// flatten composes transparent pixels onto white for formats without alpha.
func flatten(img *image.RGBA) image.Image {
	if img.Opaque() {
		return img
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Over)
	return out
}
