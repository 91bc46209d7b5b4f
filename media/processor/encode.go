package processor

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
)

// encodeWithBudget writes one derivative and re-encodes it once at reduced
// quality when the first output is over the size budget. The second result
// is final either way.
func (p *Pipeline) encodeWithBudget(ctx context.Context, canvas Canvas, preset Preset, stem string, diag *diagnostics) (Derivative, error) {
	quality := 0
	if canvas.Tunable() {
		quality = p.cfg.Quality
		if canvas.Format() == "jpeg" {
			quality = p.cfg.FallbackQuality
		}
	}

	res, err := canvas.Encode(ctx, stem, quality)
	if err != nil {
		return Derivative{}, err
	}
	if res.Tunable && res.Format == "jpeg" {
		diag.add(fmt.Sprintf("%s: WebP encoder unavailable, written as JPEG at quality %d", preset.Name, quality))
	}

	d := Derivative{
		Preset:   preset.Name,
		Path:     res.Path,
		Format:   res.Format,
		Size:     res.Size,
		Degraded: res.Degraded,
	}
	if !res.Tunable {
		return d, nil
	}
	d.Quality = quality

	budget := p.cfg.SizeBudget
	if res.Size <= budget {
		return d, nil
	}

	retry := p.cfg.retryQuality(quality)
	diag.add(fmt.Sprintf("%s: %s exceeds budget of %s at quality %d, re-optimizing at quality %d",
		preset.Name, humanize.IBytes(uint64(res.Size)), humanize.IBytes(uint64(budget)), quality, retry))

	second, err := canvas.Encode(ctx, stem, retry)
	if err != nil {
		diag.add(fmt.Sprintf("%s: re-optimizing failed, keeping quality %d output: %v", preset.Name, quality, err))
		d.OverBudget = true
		return d, nil
	}

	d.Path = second.Path
	d.Format = second.Format
	d.Size = second.Size
	d.Quality = retry
	d.Retried = true
	if second.Size > budget {
		d.OverBudget = true
		diag.add(fmt.Sprintf("%s: still %s after re-optimizing, kept as final",
			preset.Name, humanize.IBytes(uint64(second.Size))))
	}
	return d, nil
}
