// Package server exposes the explanation pipeline over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fakedetect/internal/explain"
	"fakedetect/internal/reasons"
	"fakedetect/pkg/logger"
)

// Options configures the HTTP layer.
type Options struct {
	MaxUploadBytes int64
	RateLimit      float64 // requests per second per client, 0 disables
	RateBurst      int
	CORSOrigins    []string
	RequestTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// HealthCheck probes downstream dependencies such as the classifier.
	HealthCheck func(ctx context.Context) error
}

// DefaultOptions returns a 10 MB upload limit and 10 req/s per client.
func DefaultOptions() Options {
	return Options{
		MaxUploadBytes: 10 << 20,
		RateLimit:      10,
		RateBurst:      20,
		CORSOrigins:    []string{"*"},
		RequestTimeout: 60 * time.Second,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
	}
}

// Server is the HTTP API.
type Server struct {
	echo      *echo.Echo
	explainer *explain.Explainer
	reasons   *reasons.Generator
	validator *validator.Validate
	opts      Options
	log       *logger.Logger
}

// New creates the server and registers its routes.
func New(exp *explain.Explainer, gen *reasons.Generator, opts Options, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	s := &Server{
		echo:      echo.New(),
		explainer: exp,
		reasons:   gen,
		validator: validator.New(),
		opts:      opts,
		log:       log.WithComponent("server"),
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = opts.ReadTimeout
	e.Server.WriteTimeout = opts.WriteTimeout

	// HTTP error handler
	e.HTTPErrorHandler = s.errorHandler

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(s.requestID())
	e.Use(s.observe())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: opts.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, headerRequestID},
	}))

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	if opts.RateLimit > 0 {
		api.Use(rateLimiter(opts.RateLimit, opts.RateBurst))
	}
	if opts.MaxUploadBytes > 0 {
		// multipart framing adds a little over the file itself
		api.Use(echomiddleware.BodyLimitWithConfig(echomiddleware.BodyLimitConfig{
			Limit: byteLimit(opts.MaxUploadBytes + 64<<10),
		}))
	}
	api.POST("/explain", s.handleExplain)
	api.POST("/reasons", s.handleReasons)
	api.POST("/compare", s.handleCompare)
	api.GET("/profiles", s.handleProfiles)
	api.GET("/schema", s.handleSchema)

	return s
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info("server starting", "address", addr)
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
