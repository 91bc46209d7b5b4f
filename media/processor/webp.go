package processor

import (
	"image"
	"io"
)

// webpEncoder is registered by builds that carry a WebP encoder. When nil
// the bitmap backend writes JPEG instead.
var webpEncoder func(w io.Writer, img image.Image, quality int) error
