package router

import (
	"context"
	"errors"
	"time"

	"ats-scorer-go/internal/api/handler"
	"ats-scorer-go/internal/config"
	"ats-scorer-go/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

const defaultMaxUploadMB = 10

var errInvalidAPIKey = errors.New("invalid api key")

// NewServer creates a traced hertz server with the ATS routes registered.
func NewServer(cfg config.ServerConfig, h *handler.ATSHandler, logger zerolog.Logger) *server.Hertz {
	tracer, tracingCfg := hertztracing.NewServerTracer()
	srv := server.New(
		tracer,
		server.WithHostPorts(cfg.Address),
		server.WithHandleMethodNotAllowed(true),
		server.WithMaxRequestBodySize(MaxBodySize(cfg.MaxUploadMB)),
	)
	srv.Use(hertztracing.ServerMiddleware(tracingCfg), AccessLog(logger))
	RegisterRoutes(srv, h, cfg.APIKeys)
	return srv
}

// MaxBodySize leaves room for the multipart form fields around the file.
func MaxBodySize(maxUploadMB int) int {
	if maxUploadMB <= 0 {
		maxUploadMB = defaultMaxUploadMB
	}
	return (maxUploadMB + 1) << 20
}

// RegisterRoutes registers the API. With apiKeys set every /api/v1 route
// requires "Authorization: Bearer <key>"; /health stays open.
func RegisterRoutes(h *server.Hertz, atsHandler *handler.ATSHandler, apiKeys []string) {
	h.GET("/health", atsHandler.Health)

	api := h.Group("/api/v1")
	if len(apiKeys) > 0 {
		api.Use(APIKeyAuth(apiKeys))
	}

	g := api.Group("/ats")
	g.GET("/jds", atsHandler.ListJDs)
	g.POST("/ingest", atsHandler.Ingest)
	g.POST("/preprocess", atsHandler.Preprocess)
	g.POST("/analyze", atsHandler.Analyze)
	g.POST("/similarity", atsHandler.Similarity)
	g.POST("/analyses", atsHandler.SubmitAnalysis)
	g.GET("/analyses/:id", atsHandler.GetAnalysis)
}

// APIKeyAuth accepts bearer tokens from keys.
func APIKeyAuth(keys []string) app.HandlerFunc {
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			allowed[k] = struct{}{}
		}
	}
	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithValidator(func(_ context.Context, _ *app.RequestContext, key string) (bool, error) {
			if _, ok := allowed[key]; ok {
				return true, nil
			}
			return false, errInvalidAPIKey
		}),
		keyauth.WithErrorHandler(func(c context.Context, ctx *app.RequestContext, err error) {
			tracing.RecordError(trace.SpanFromContext(c), err, tracing.ErrorTypePermission)
			ctx.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"status": "error", "detail": err.Error()})
		}),
	)
}

// AccessLog logs one line per request.
func AccessLog(logger zerolog.Logger) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		start := time.Now()
		ctx.Next(c)
		logger.Info().
			Str("method", string(ctx.Method())).
			Str("path", string(ctx.Path())).
			Int("status", ctx.Response.StatusCode()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}
