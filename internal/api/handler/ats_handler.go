// Package handler holds the HTTP handlers of the ATS API.
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"ats-scorer-go/internal/ats"
	"ats-scorer-go/internal/jobdesc"
	"ats-scorer-go/internal/processor"
	"ats-scorer-go/internal/storage"
	"ats-scorer-go/internal/storage/models"
	"ats-scorer-go/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

const defaultMaxUploadBytes = 10 << 20

var (
	errMissingFile  = errors.New("file is required")
	errFileTooLarge = errors.New("file exceeds the upload limit")
	errBadFresher   = errors.New("fresher must be a boolean")
)

// Service is the processing layer behind the handlers.
type Service interface {
	Ingest(ctx context.Context, doc ats.RawDocument) (*processor.IngestResult, error)
	Preprocess(ctx context.Context, doc ats.RawDocument) (*processor.PreprocessResult, error)
	Analyze(ctx context.Context, in processor.AnalyzeInput) (*ats.AtsResult, error)
	Similarity(ctx context.Context, in processor.AnalyzeInput) (float64, error)
	Submit(ctx context.Context, in processor.AnalyzeInput) (*processor.SubmitResult, error)
	GetAnalysis(ctx context.Context, id string) (*models.Analysis, error)
}

// JDLister lists the job descriptions available by name.
type JDLister interface {
	List() ([]string, error)
}

// HealthChecker reports whether a backend is reachable.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// ATSHandler serves the scoring endpoints.
type ATSHandler struct {
	svc       Service
	jds       JDLister
	health    HealthChecker
	maxUpload int64
	logger    zerolog.Logger
}

type HandlerOption func(*ATSHandler)

func WithJDLister(l JDLister) HandlerOption {
	return func(h *ATSHandler) {
		h.jds = l
	}
}

func WithHealthChecker(c HealthChecker) HandlerOption {
	return func(h *ATSHandler) {
		h.health = c
	}
}

// WithMaxUploadBytes caps the size of uploaded résumés.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *ATSHandler) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

func WithHandlerLogger(logger zerolog.Logger) HandlerOption {
	return func(h *ATSHandler) {
		h.logger = logger
	}
}

func NewATSHandler(svc Service, opts ...HandlerOption) *ATSHandler {
	h := &ATSHandler{
		svc:       svc,
		maxUpload: defaultMaxUploadBytes,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type preprocessResponse struct {
	Status      string                  `json:"status"`
	ID          string                  `json:"id"`
	ArtifactKey string                  `json:"artifact_key,omitempty"`
	Preview     processor.ResumePreview `json:"preview"`
}

type analyzeResponse struct {
	Status string `json:"status"`
	*ats.AtsResult
}

// Ingest handles POST /api/v1/ats/ingest.
func (h *ATSHandler) Ingest(c context.Context, ctx *app.RequestContext) {
	doc, err := h.readDocument(ctx)
	if err != nil {
		h.writeError(c, ctx, err)
		return
	}
	res, err := h.svc.Ingest(c, doc)
	if err != nil {
		h.writeError(c, ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{
		"status":            "success",
		"id":                res.ID,
		"filename":          res.Filename,
		"format":            res.Format,
		"raw_file":          res.ResumeObjectKey,
		"raw_text_file":     res.RawTextKey,
		"cleaned_text_file": res.CleanedTextKey,
		"characters":        res.Characters,
		"text_preview":      res.TextPreview,
	})
}

// Preprocess handles POST /api/v1/ats/preprocess.
func (h *ATSHandler) Preprocess(c context.Context, ctx *app.RequestContext) {
	doc, err := h.readDocument(ctx)
	if err != nil {
		h.writeError(c, ctx, err)
		return
	}
	res, err := h.svc.Preprocess(c, doc)
	if err != nil {
		h.writeError(c, ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, preprocessResponse{
		Status:      "ok",
		ID:          res.ID,
		ArtifactKey: res.ArtifactKey,
		Preview:     res.Preview,
	})
}

// Analyze handles POST /api/v1/ats/analyze.
func (h *ATSHandler) Analyze(c context.Context, ctx *app.RequestContext) {
	in, err := h.readAnalyzeInput(ctx)
	if err != nil {
		h.writeError(c, ctx, err)
		return
	}
	res, err := h.svc.Analyze(c, in)
	if err != nil {
		h.writeError(c, ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, analyzeResponse{Status: "ok", AtsResult: res})
}

// Similarity handles POST /api/v1/ats/similarity.
func (h *ATSHandler) Similarity(c context.Context, ctx *app.RequestContext) {
	in, err := h.readAnalyzeInput(ctx)
	if err != nil {
		h.writeError(c, ctx, err)
		return
	}
	score, err := h.svc.Similarity(c, in)
	if err != nil {
		h.writeError(c, ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{"status": "scored", "score": score})
}

// SubmitAnalysis handles POST /api/v1/ats/analyses. New analyses are
// answered with 202; a duplicate of an earlier submission with 200.
func (h *ATSHandler) SubmitAnalysis(c context.Context, ctx *app.RequestContext) {
	in, err := h.readAnalyzeInput(ctx)
	if err != nil {
		h.writeError(c, ctx, err)
		return
	}
	res, err := h.svc.Submit(c, in)
	if err != nil {
		h.writeError(c, ctx, err)
		return
	}
	status := consts.StatusAccepted
	if res.Duplicate {
		status = consts.StatusOK
	}
	ctx.JSON(status, res)
}

// GetAnalysis handles GET /api/v1/ats/analyses/:id.
func (h *ATSHandler) GetAnalysis(c context.Context, ctx *app.RequestContext) {
	a, err := h.svc.GetAnalysis(c, ctx.Param("id"))
	if err != nil {
		h.writeError(c, ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, a)
}

// ListJDs handles GET /api/v1/ats/jds.
func (h *ATSHandler) ListJDs(c context.Context, ctx *app.RequestContext) {
	if h.jds == nil {
		h.writeError(c, ctx, processor.ErrJDStoreNotInit)
		return
	}
	names, err := h.jds.List()
	if err != nil {
		h.writeError(c, ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{"status": "ok", "jds": names})
}

// Health handles GET /health.
func (h *ATSHandler) Health(c context.Context, ctx *app.RequestContext) {
	if h.health != nil {
		if err := h.health.Check(c); err != nil {
			h.logger.Warn().Err(err).Msg("health check failed")
			ctx.JSON(consts.StatusServiceUnavailable, utils.H{"status": "degraded", "detail": err.Error()})
			return
		}
	}
	ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
}

func (h *ATSHandler) readDocument(ctx *app.RequestContext) (ats.RawDocument, error) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return ats.RawDocument{}, errMissingFile
	}
	if fh.Size > h.maxUpload {
		return ats.RawDocument{}, errFileTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return ats.RawDocument{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		return ats.RawDocument{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > h.maxUpload {
		return ats.RawDocument{}, errFileTooLarge
	}
	return ats.RawDocument{
		Name:   fh.Filename,
		Format: ats.DetectFormat(fh.Filename, fh.Header.Get("Content-Type")),
		Data:   data,
	}, nil
}

func (h *ATSHandler) readAnalyzeInput(ctx *app.RequestContext) (processor.AnalyzeInput, error) {
	doc, err := h.readDocument(ctx)
	if err != nil {
		return processor.AnalyzeInput{}, err
	}
	in := processor.AnalyzeInput{
		Document: doc,
		JDName:   strings.TrimSpace(ctx.PostForm("jd_file")),
		JDText:   ctx.PostForm("jd_text"),
	}
	if raw := strings.TrimSpace(ctx.PostForm("fresher")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return processor.AnalyzeInput{}, errBadFresher
		}
		in.Fresher = &v
	}
	return in, nil
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errMissingFile),
		errors.Is(err, errBadFresher),
		errors.Is(err, ats.ErrUnsupportedFormat),
		errors.Is(err, processor.ErrInvalidInput),
		errors.Is(err, processor.ErrExtractFailed),
		errors.Is(err, jobdesc.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, jobdesc.ErrNotFound),
		errors.Is(err, storage.ErrAnalysisNotFound):
		return http.StatusNotFound
	case errors.Is(err, ats.ErrLexiconUnavailable),
		errors.Is(err, processor.ErrStorageNotInit),
		errors.Is(err, processor.ErrRepositoryNotInit),
		errors.Is(err, processor.ErrJDStoreNotInit),
		errors.Is(err, processor.ErrSimilarityNotInit):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *ATSHandler) writeError(c context.Context, ctx *app.RequestContext, err error) {
	status := statusFor(err)
	detail := err.Error()
	tracing.RecordHTTPError(trace.SpanFromContext(c), err, status)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		h.logger.Error().Err(err).Str("path", string(ctx.Path())).Msg("request failed")
		detail = "internal error"
	} else {
		h.logger.Debug().Err(err).Int("status", status).Str("path", string(ctx.Path())).Msg("request rejected")
	}
	ctx.JSON(status, utils.H{"status": "error", "detail": detail})
}
