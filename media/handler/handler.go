package handler

import (
	"context"
	stderrors "errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/leeforge/recipemedia/concurrency"
	"github.com/leeforge/recipemedia/errors"
	"github.com/leeforge/recipemedia/http/responder"
	"github.com/leeforge/recipemedia/logging"
	"github.com/leeforge/recipemedia/media/processor"
)

// Multipart transport failures, numbered like the usual upload error codes.
const (
	uploadErrPartial   = 3
	uploadErrNoFile    = 4
	uploadErrCantWrite = 7
)

// ImagePipeline is the part of the processor the HTTP layer needs.
type ImagePipeline interface {
	HandleImageUpload(ctx context.Context, upload processor.Upload, targetDir, oldFilename string) processor.Result
	RemoveDerivatives(ctx context.Context, dir, base string) (removed, diags []string)
	Capabilities(ctx context.Context) processor.Capabilities
}

// Handler serves recipe image intake.
type Handler struct {
	pipeline ImagePipeline
	cfg      Config
	logger   logging.Logger
	validate *validator.Validate
	slots    *concurrency.Limiter
}

func New(pipeline ImagePipeline, cfg Config, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger,
		validate: newValidator(),
		slots:    concurrency.NewLimiter(cfg.MaxConcurrent),
	}
}

// RegisterRoutes mounts the image endpoints under /images.
func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/images", func(r chi.Router) {
		r.Post("/", h.upload)
		r.Get("/capabilities", h.capabilities)
		r.Delete("/{filename}", h.remove)
	})
}

// Routes returns a standalone router with request logging and panic
// recovery.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(logging.RecoveryMiddleware(h.logger))
	r.Use(logging.HTTPMiddleware(h.logger))
	h.RegisterRoutes(r)
	return r
}

type derivativeView struct {
	Preset     string `json:"preset"`
	File       string `json:"file"`
	Format     string `json:"format"`
	Size       int64  `json:"size"`
	Quality    int    `json:"quality,omitempty"`
	Retried    bool   `json:"retried,omitempty"`
	OverBudget bool   `json:"overBudget,omitempty"`
	Degraded   bool   `json:"degraded,omitempty"`
	URL        string `json:"url,omitempty"`
}

type uploadResponse struct {
	Filename    string           `json:"filename"`
	Backend     string           `json:"backend"`
	Derivatives []derivativeView `json:"derivatives"`
	Diagnostics []string         `json:"diagnostics"`
}

type removeResponse struct {
	Filename    string   `json:"filename"`
	Removed     []string `json:"removed"`
	Diagnostics []string `json:"diagnostics"`
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	opts := meta(r)
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodySize)
	if err := r.ParseMultipartForm(h.cfg.MaxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) || stderrors.Is(err, multipart.ErrMessageTooLarge) {
			h.writeError(w, r, errors.NewUploadTooLarge(r.ContentLength, h.cfg.MaxBodySize), nil, opts...)
			return
		}
		responder.BadRequest(w, r, "expected a multipart/form-data body", opts...)
		return
	}
	defer r.MultipartForm.RemoveAll()

	form := uploadForm{OldFilename: r.FormValue("old_filename")}
	if err := h.validate.Struct(form); err != nil {
		responder.ValidationError(w, r, fieldErrors(err), opts...)
		return
	}

	upload, cleanup := h.spool(r)
	defer cleanup()

	if err := h.slots.Acquire(r.Context()); err != nil {
		busy := errors.Wrap(err, errors.ErrorTypeTimeout, "image pipeline busy, try again later").
			WithHTTPStatus(http.StatusServiceUnavailable)
		h.writeError(w, r, busy, nil, opts...)
		return
	}
	defer h.slots.Release()

	res := h.pipeline.HandleImageUpload(r.Context(), upload, h.cfg.UploadDir, form.OldFilename)
	if !res.Success {
		h.writeError(w, r, res.Err, res.Diagnostics, opts...)
		return
	}
	responder.Created(w, r, toUploadResponse(res), opts...)
}

// spool copies the uploaded part to a temp file the pipeline can own. A
// transport failure is reported through Upload.ErrorCode.
func (h *Handler) spool(r *http.Request) (processor.Upload, func()) {
	noop := func() {}
	file, header, err := r.FormFile(h.cfg.FormField)
	if err != nil {
		code := uploadErrPartial
		if stderrors.Is(err, http.ErrMissingFile) {
			code = uploadErrNoFile
		}
		return processor.Upload{ErrorCode: code}, noop
	}
	defer file.Close()

	up := processor.Upload{
		DeclaredMIME:     header.Header.Get("Content-Type"),
		OriginalFilename: header.Filename,
		Size:             header.Size,
	}
	tmp, err := os.CreateTemp("", "recipe-upload-*")
	if err != nil {
		h.logger.Warn("upload spool failed", zap.Error(err))
		up.ErrorCode = uploadErrCantWrite
		return up, noop
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }
	_, copyErr := io.Copy(tmp, file)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		up.ErrorCode = uploadErrPartial
		return up, cleanup
	}
	up.TmpPath = tmp.Name()
	return up, cleanup
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	opts := meta(r)
	param := filenameParam{Filename: chi.URLParam(r, "filename")}
	if err := h.validate.Struct(param); err != nil {
		responder.ValidationError(w, r, fieldErrors(err), opts...)
		return
	}

	removed, diags := h.pipeline.RemoveDerivatives(r.Context(), h.cfg.UploadDir, param.Filename)
	if len(removed) == 0 && len(diags) == 0 {
		responder.NotFound(w, r, "no derivatives for "+param.Filename, opts...)
		return
	}
	files := make([]string, 0, len(removed))
	for _, p := range removed {
		files = append(files, filepath.Base(p))
	}
	responder.OK(w, r, removeResponse{Filename: param.Filename, Removed: files, Diagnostics: nonNil(diags)}, opts...)
}

func (h *Handler) capabilities(w http.ResponseWriter, r *http.Request) {
	responder.OK(w, r, h.pipeline.Capabilities(r.Context()), meta(r)...)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, diags []string, opts ...responder.Option) {
	if err == nil {
		err = errors.NewInternal("image processing failed")
	}
	var details any
	if len(diags) > 0 {
		details = map[string]any{"diagnostics": diags}
	}
	status := errors.HTTPStatusOf(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Warn("image upload failed", zap.Error(err), zap.Strings("diagnostics", diags))
	}
	responder.CustomError(w, r, status, errorCode(err), err.Error(), details, opts...)
}

func errorCode(err error) int {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeInvalidUploadType:
		return responder.ErrCodeUnsupportedType
	case errors.ErrorTypeUploadTooLarge:
		return responder.ErrCodeUploadTooLarge
	case errors.ErrorTypeInvalidUpload, errors.ErrorTypeSourceNotFound, errors.ErrorTypeUnreadableSource:
		return responder.ErrCodeUploadRejected
	case errors.ErrorTypeValidation:
		return responder.ErrCodeValidationFailed
	case errors.ErrorTypeDestinationNotWritable:
		return responder.ErrCodeStorageService
	default:
		return responder.ErrCodeImageProcessing
	}
}

func toUploadResponse(res processor.Result) uploadResponse {
	views := make([]derivativeView, 0, len(res.Derivatives))
	for _, d := range res.Derivatives {
		views = append(views, derivativeView{
			Preset:     d.Preset,
			File:       filepath.Base(d.Path),
			Format:     d.Format,
			Size:       d.Size,
			Quality:    d.Quality,
			Retried:    d.Retried,
			OverBudget: d.OverBudget,
			Degraded:   d.Degraded,
			URL:        d.URL,
		})
	}
	return uploadResponse{
		Filename:    res.Filename,
		Backend:     string(res.Backend),
		Derivatives: views,
		Diagnostics: nonNil(res.Diagnostics),
	}
}

func meta(r *http.Request) []responder.Option {
	if id := logging.GetRequestID(r.Context()); id != "" {
		return []responder.Option{responder.WithRequestID(id)}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
