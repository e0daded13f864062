package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/nimburion/injurystore/pkg/observability/logger"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Logger         logger.Logger
	MetricsHandler http.Handler
	// TracerProvider enables per-request server spans when non-nil.
	TracerProvider trace.TracerProvider
	MaxRequestSize int64
	// RateLimiter enables per-client-IP throttling when non-nil.
	RateLimiter *TokenBucketLimiter
	Compression bool
	// CompressionMinSize is the smallest body that gets encoded.
	CompressionMinSize int
	// APIVersion is reported by /openapi.json.
	APIVersion string
	// TokenValidator enables bearer authentication on /injuries when non-nil.
	TokenValidator TokenValidator
}

// NewRouter builds the gin engine with the middleware chain and h's routes.
// /metrics is mounted only when a MetricsHandler is given.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	engine.Use(RequestID(), Recovery(log))
	if opts.TracerProvider != nil {
		engine.Use(Tracing(opts.TracerProvider))
	}
	engine.Use(Metrics(), AccessLog(log))
	if opts.RateLimiter != nil {
		engine.Use(RateLimit(opts.RateLimiter))
	}
	if opts.Compression {
		engine.Use(Compression(opts.CompressionMinSize))
	}
	engine.Use(BodyLimit(opts.MaxRequestSize))

	var guards []gin.HandlerFunc
	if opts.TokenValidator != nil {
		guards = append(guards, Authenticate(opts.TokenValidator), Authorize())
	}
	h.Register(engine, guards...)
	doc := OpenAPIDocument(opts.APIVersion)
	engine.GET("/openapi.json", func(c *gin.Context) { c.JSON(http.StatusOK, doc) })
	if opts.MetricsHandler != nil {
		engine.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}
	engine.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "not_found", "no route for "+c.Request.Method+" "+c.Request.URL.Path)
	})
	return engine
}
