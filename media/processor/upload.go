package processor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/leeforge/recipemedia/errors"
	"github.com/leeforge/recipemedia/media/storage"
)

// HandleImageUpload validates an upload, removes the derivatives of
// oldFilename, produces a new derivative set under a fresh base name and
// deletes the uploaded file. Validation and destination failures are
// terminal and leave the filesystem untouched.
func (p *Pipeline) HandleImageUpload(ctx context.Context, upload Upload, targetDir, oldFilename string) (res Result) {
	diag := &diagnostics{}
	start := time.Now()
	base := ""
	defer func() { p.report(ctx, "upload", res, start) }()
	defer errors.RecoverWithHandler(func(e *errors.AppError) {
		res = p.recovered(base, diag, e)
	})

	src, err := p.validateUpload(upload)
	if err != nil {
		return failure("", diag, err)
	}
	dest, err := storage.NewLocalProvider(targetDir)
	if err != nil {
		return failure("", diag, err)
	}
	// Only derivatives are kept, even after a panic.
	defer func() {
		if err := os.Remove(upload.TmpPath); err != nil && !os.IsNotExist(err) {
			diag.add(fmt.Sprintf("could not delete uploaded original: %v", err))
		}
		res.Diagnostics = diag.list()
	}()
	base = NewBaseName(upload.OriginalFilename)

	if oldFilename != "" {
		if err := checkBaseName(oldFilename); err != nil {
			diag.add(fmt.Sprintf("skipping cleanup of old image: %v", err))
		} else {
			p.removeDerivatives(ctx, dest, oldFilename, diag)
		}
	}

	return p.dispatch(ctx, src, dest, base, diag)
}

// validateUpload checks transport status, declared and sniffed MIME type and
// size, in that order.
func (p *Pipeline) validateUpload(upload Upload) (SourceImage, error) {
	if upload.ErrorCode != 0 {
		return SourceImage{}, errors.NewInvalidUpload(fmt.Sprintf("transport error code %d", upload.ErrorCode)).
			WithDetail("error_code", upload.ErrorCode)
	}
	if upload.TmpPath == "" {
		return SourceImage{}, errors.NewInvalidUpload("no file received")
	}
	if !p.cfg.allowed(upload.DeclaredMIME) {
		return SourceImage{}, errors.NewInvalidUploadType(upload.DeclaredMIME)
	}
	if upload.Size > p.cfg.MaxUploadSize {
		return SourceImage{}, errors.NewUploadTooLarge(upload.Size, p.cfg.MaxUploadSize)
	}

	info, err := os.Stat(upload.TmpPath)
	if err != nil || info.IsDir() {
		return SourceImage{}, errors.NewSourceNotFound(upload.TmpPath)
	}
	if info.Size() > p.cfg.MaxUploadSize {
		return SourceImage{}, errors.NewUploadTooLarge(info.Size(), p.cfg.MaxUploadSize)
	}

	detected, err := mimetype.DetectFile(upload.TmpPath)
	if err != nil {
		return SourceImage{}, errors.NewSourceNotFound(upload.TmpPath)
	}
	if !p.cfg.allowed(detected.String()) {
		return SourceImage{}, errors.NewInvalidUploadType(detected.String()).
			WithDetail("declared", upload.DeclaredMIME)
	}

	return inspectSource(upload.TmpPath)
}

// RemoveDerivatives deletes every derivative of base in dir, including JPEG
// fallbacks, and the mirrored copies when a mirror is configured. Missing
// files are skipped; other failures become diagnostics.
func (p *Pipeline) RemoveDerivatives(ctx context.Context, dir, base string) (removed, diags []string) {
	diag := &diagnostics{}
	if err := checkBaseName(base); err != nil {
		diag.add(err.Error())
		return nil, diag.list()
	}
	dest, err := storage.NewLocalProvider(dir)
	if err != nil {
		diag.add(err.Error())
		return nil, diag.list()
	}
	return p.removeDerivatives(ctx, dest, base, diag), diag.list()
}

func (p *Pipeline) removeDerivatives(ctx context.Context, dest *storage.LocalProvider, base string, diag *diagnostics) []string {
	var removed []string
	for _, preset := range p.presets {
		for _, ext := range derivativeExtensions {
			name := base + preset.Suffix + ext
			ok, err := dest.Delete(ctx, name)
			if err != nil {
				diag.add(fmt.Sprintf("could not delete %s: %v", name, err))
				continue
			}
			if !ok {
				continue
			}
			removed = append(removed, dest.Path(name))
			if p.mirror != nil {
				if err := p.mirror.Remove(ctx, name); err != nil {
					diag.add(fmt.Sprintf("could not delete %s from %s mirror: %v", name, p.mirror.Name(), err))
				}
			}
		}
	}
	return removed
}
