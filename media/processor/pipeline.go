package processor

import (
	"context"
	"fmt"
	"image"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leeforge/recipemedia/errors"
	"github.com/leeforge/recipemedia/logging"
	"github.com/leeforge/recipemedia/media/storage"
)

// Pipeline turns a recipe photo into its derivative set. It is safe for
// concurrent use; the only shared state is the memoized backend probe.
type Pipeline struct {
	cfg     Config
	presets []Preset
	logger  logging.Logger
	mirror  storage.Mirror
	metrics Recorder

	native   Backend
	bitmap   Backend
	identity Backend
	forced   Backend

	capsOnce sync.Once
	caps     Capabilities
}

type Option func(*Pipeline)

// Recorder receives pipeline metrics.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
}

func WithLogger(logger logging.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMirror publishes every produced derivative to m.
func WithMirror(m storage.Mirror) Option {
	return func(p *Pipeline) {
		p.mirror = m
	}
}

func WithMetrics(r Recorder) Option {
	return func(p *Pipeline) {
		p.metrics = r
	}
}

// WithBackend bypasses backend selection and always uses b.
func WithBackend(b Backend) Option {
	return func(p *Pipeline) {
		p.forced = b
	}
}

// New validates cfg and builds a pipeline. Backends are probed lazily on
// first use.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid image pipeline config")
	}
	p := &Pipeline{
		cfg:      cfg,
		presets:  cfg.Presets(),
		logger:   logging.NewNop(),
		native:   newNativeBackend(cfg.Native),
		bitmap:   bitmapBackend{},
		identity: copyBackend{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Presets returns a copy of the preset set in dispatch order.
func (p *Pipeline) Presets() []Preset {
	return append([]Preset(nil), p.presets...)
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// ProcessRecipeImage writes the derivative set of sourcePath into destDir
// as {base}{suffix}.webp. A missing source, an unreadable image or an
// unwritable destination fail before any file is written.
func (p *Pipeline) ProcessRecipeImage(ctx context.Context, sourcePath, destDir, base string) (res Result) {
	diag := &diagnostics{}
	start := time.Now()
	defer func() { p.report(ctx, "process", res, start) }()
	defer errors.RecoverWithHandler(func(e *errors.AppError) {
		res = p.recovered(base, diag, e)
	})

	if err := checkBaseName(base); err != nil {
		return failure(base, diag, errors.NewValidation(err.Error()))
	}
	src, err := inspectSource(sourcePath)
	if err != nil {
		return failure(base, diag, err)
	}
	dest, err := storage.NewLocalProvider(destDir)
	if err != nil {
		return failure(base, diag, err)
	}
	return p.dispatch(ctx, src, dest, base, diag)
}

// inspectSource stats the file and reads its header for dimensions.
func inspectSource(path string) (SourceImage, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return SourceImage{}, errors.NewSourceNotFound(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return SourceImage{}, errors.NewSourceNotFound(path)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return SourceImage{}, errors.NewUnreadableSource(path, err)
	}
	return SourceImage{
		Path:   path,
		Size:   info.Size(),
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: format,
	}, nil
}

// selectBackend applies native > bitmap > copy. Probe notes are copied into
// the call's diagnostics whenever the native converter is skipped.
func (p *Pipeline) selectBackend(ctx context.Context, diag *diagnostics) Backend {
	if p.forced != nil {
		return p.forced
	}
	caps := p.Capabilities(ctx)
	if caps.Native {
		return p.native
	}
	for _, note := range caps.Notes {
		diag.add(note)
	}
	if caps.Bitmap {
		diag.add("native converter unavailable, using bitmap library")
		return p.bitmap
	}
	diag.add(errors.NewNoBackendAvailable().Error() + ", copying source unprocessed")
	return p.identity
}

// dispatch runs every preset, smallest first. A failing preset is recorded
// and the remaining ones are still attempted; the call fails only when no
// derivative was produced.
func (p *Pipeline) dispatch(ctx context.Context, src SourceImage, dest *storage.LocalProvider, base string, diag *diagnostics) Result {
	backend := p.selectBackend(ctx, diag)

	var (
		derivatives []Derivative
		firstErr    error
	)
	for _, preset := range p.presets {
		d, err := p.runPreset(ctx, backend, src, dest, base, preset, diag)
		if err != nil {
			diag.add(err.Error())
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		derivatives = append(derivatives, d)
	}

	if p.mirror != nil {
		p.publish(ctx, derivatives, diag)
	}

	res := Result{
		Success:     len(derivatives) > 0,
		Filename:    base,
		Diagnostics: diag.list(),
		Derivatives: derivatives,
		Backend:     backend.Kind(),
	}
	if !res.Success {
		res.Err = firstErr
	}
	return res
}

// runPreset prepares, encodes and releases one derivative. The canvas is
// released and a collection forced before the next preset decodes again.
func (p *Pipeline) runPreset(ctx context.Context, backend Backend, src SourceImage, dest *storage.LocalProvider, base string, preset Preset, diag *diagnostics) (Derivative, error) {
	geo, err := Plan(preset, src.Width, src.Height)
	if err != nil {
		return Derivative{}, encodeFailed(preset.Name, err)
	}
	canvas, err := backend.Prepare(ctx, src, geo)
	if err != nil {
		return Derivative{}, encodeFailed(preset.Name, err)
	}
	defer runtime.GC()
	defer canvas.Release()

	d, err := p.encodeWithBudget(ctx, canvas, preset, dest.Path(base+preset.Suffix), diag)
	if err != nil {
		return Derivative{}, encodeFailed(preset.Name, err)
	}
	removeStaleSiblings(ctx, dest, base+preset.Suffix, d.Path, diag)
	return d, nil
}

// removeStaleSiblings deletes the other-format file of a derivative left by
// an earlier run on a different backend.
func removeStaleSiblings(ctx context.Context, dest *storage.LocalProvider, stem, kept string, diag *diagnostics) {
	for _, ext := range derivativeExtensions {
		name := stem + ext
		if dest.Path(name) == kept {
			continue
		}
		if _, err := dest.Delete(ctx, name); err != nil {
			diag.add(fmt.Sprintf("could not delete stale %s: %v", name, err))
		}
	}
}

func encodeFailed(preset string, err error) *errors.AppError {
	return errors.NewEncodeFailed(preset, err).
		WithMessage(fmt.Sprintf("%s: encoding failed: %v", preset, err))
}

// publish mirrors produced derivatives. Failures are diagnostics only.
func (p *Pipeline) publish(ctx context.Context, derivatives []Derivative, diag *diagnostics) {
	for i := range derivatives {
		d := &derivatives[i]
		url, err := p.mirror.Publish(ctx, d.Path)
		if err != nil {
			diag.add(fmt.Sprintf("%s: %s mirror upload failed: %v", d.Preset, p.mirror.Name(), err))
			continue
		}
		d.URL = url
	}
}

func failure(base string, diag *diagnostics, err error) Result {
	diag.add(err.Error())
	return Result{Filename: base, Diagnostics: diag.list(), Err: err}
}

func (p *Pipeline) recovered(base string, diag *diagnostics, e *errors.AppError) Result {
	p.logger.Error("image pipeline panic", zap.String("base", base), zap.Strings("stack", e.Stack))
	return failure(base, diag, e)
}

// report logs one line per top-level call and records its metrics.
func (p *Pipeline) report(ctx context.Context, op string, res Result, start time.Time) {
	took := time.Since(start)
	if p.metrics != nil {
		p.record(op, res, took)
	}

	fields := []zap.Field{
		zap.String("op", op),
		zap.String("base", res.Filename),
		zap.String("backend", string(res.Backend)),
		zap.Bool("success", res.Success),
		zap.Int("derivatives", len(res.Derivatives)),
		zap.Int("diagnostics", len(res.Diagnostics)),
		zap.Duration("took", took),
	}
	if id := logging.GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if !res.Success {
		p.logger.Warn("image pipeline failed", append(fields, zap.Error(res.Err))...)
		return
	}
	p.logger.Info("image pipeline finished", fields...)
}

func (p *Pipeline) record(op string, res Result, took time.Duration) {
	backend := string(res.Backend)
	if backend == "" {
		backend = "none"
	}
	p.metrics.IncCounter("media_pipeline_calls_total", map[string]string{
		"op":      op,
		"backend": backend,
		"success": strconv.FormatBool(res.Success),
	})
	p.metrics.ObserveHistogram("media_pipeline_duration_seconds", took.Seconds(), map[string]string{"op": op})
	if res.Err != nil {
		p.metrics.IncCounter("media_pipeline_errors_total", map[string]string{"type": string(errors.TypeOf(res.Err))})
	}
	for _, d := range res.Derivatives {
		p.metrics.ObserveHistogram("media_derivative_bytes", float64(d.Size), map[string]string{"preset": d.Preset, "format": d.Format})
		if d.Retried {
			p.metrics.IncCounter("media_encode_retries_total", map[string]string{"preset": d.Preset})
		}
		if d.OverBudget {
			p.metrics.IncCounter("media_over_budget_total", map[string]string{"preset": d.Preset})
		}
	}
}
