package processor

import (
	"fmt"
	"math"
)

// Geometry is the resize and crop plan for one preset. The source is scaled
// to ScaledWidth x ScaledHeight, then the Width x Height window at
// (CropX, CropY) is kept. Both backends apply the same numbers.
type Geometry struct {
	ScaledWidth  int
	ScaledHeight int
	CropX        int
	CropY        int
	Width        int
	Height       int
}

// Cropped reports whether a crop window smaller than the scaled image is
// applied.
func (g Geometry) Cropped() bool {
	return g.Width != g.ScaledWidth || g.Height != g.ScaledHeight
}

// Fit scales the source to fit entirely inside the target box, preserving
// the aspect ratio.
func Fit(sw, sh, tw, th int) Geometry {
	scale := math.Min(float64(tw)/float64(sw), float64(th)/float64(sh))
	w := clamp(int(math.Round(float64(sw)*scale)), 1, tw)
	h := clamp(int(math.Round(float64(sh)*scale)), 1, th)
	return Geometry{ScaledWidth: w, ScaledHeight: h, Width: w, Height: h}
}

// Fill scales the source to cover the target box and centres a crop window
// of exactly the target size. On an odd margin the extra pixel is cut from
// the right or bottom edge.
func Fill(sw, sh, tw, th int) Geometry {
	scale := math.Max(float64(tw)/float64(sw), float64(th)/float64(sh))
	w := max(int(math.Round(float64(sw)*scale)), tw)
	h := max(int(math.Round(float64(sh)*scale)), th)
	return Geometry{
		ScaledWidth:  w,
		ScaledHeight: h,
		CropX:        (w - tw) / 2,
		CropY:        (h - th) / 2,
		Width:        tw,
		Height:       th,
	}
}

// Plan picks Fit or Fill for preset.
func Plan(preset Preset, sw, sh int) (Geometry, error) {
	if sw <= 0 || sh <= 0 {
		return Geometry{}, fmt.Errorf("invalid source dimensions %dx%d", sw, sh)
	}
	if preset.Width <= 0 || preset.Height <= 0 {
		return Geometry{}, fmt.Errorf("invalid %s target %dx%d", preset.Name, preset.Width, preset.Height)
	}
	if preset.Crop {
		return Fill(sw, sh, preset.Width, preset.Height), nil
	}
	return Fit(sw, sh, preset.Width, preset.Height), nil
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
