//go:build cgo

package processor

import (
	"image"
	"io"

	"github.com/chai2010/webp"
)

func init() {
	webpEncoder = func(w io.Writer, img image.Image, quality int) error {
		return webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	}
}
