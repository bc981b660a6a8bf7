package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	fdimage "fakedetect/internal/image"
	"fakedetect/internal/metrics"
	"fakedetect/pkg/logger"
)

const (
	headerRequestID = "X-Request-ID"
	requestIDKey    = "request_id"
)

// requestID assigns every request an ID, taken from X-Request-ID when the
// client sends a valid UUID.
func (s *Server) requestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(headerRequestID)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			c.Set(requestIDKey, id)
			c.Response().Header().Set(headerRequestID, id)

			req := c.Request()
			c.SetRequest(req.WithContext(logger.ContextWithRequestID(req.Context(), id)))
			return next(c)
		}
	}
}

// observe records request latency and logs each request.
func (s *Server) observe() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// commit the response so the status below is final
				c.Error(err)
			}
			elapsed := time.Since(start)

			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.RequestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(elapsed.Seconds())

			s.log.WithContext(c.Request().Context()).Debug("request",
				"method", c.Request().Method,
				"route", route,
				"status", status,
				"duration_ms", elapsed.Milliseconds(),
			)
			return nil
		}
	}
}

// rateLimiter applies a per-client token bucket keyed by real IP.
func rateLimiter(rps float64, burst int) echo.MiddlewareFunc {
	if burst < 1 {
		burst = 1
	}
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(rps),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "unable to identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		},
	})
}

// byteLimit formats n for echo's BodyLimit, rounded up to whole kilobytes.
func byteLimit(n int64) string {
	return fmt.Sprintf("%dK", (n+1023)/1024)
}

// errorHandler writes every error as {error, request_id}.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "internal server error"

	var (
		verrs   validator.ValidationErrors
		httpErr *echo.HTTPError
	)
	switch {
	case errors.As(err, &verrs):
		code = http.StatusBadRequest
		message = verrs.Error()
	case errors.Is(err, fdimage.ErrUnsupportedFormat):
		code = http.StatusUnsupportedMediaType
		message = err.Error()
	case errors.As(err, &httpErr):
		code = httpErr.Code
		message = fmt.Sprint(httpErr.Message)
	}

	id, _ := c.Get(requestIDKey).(string)
	if code >= http.StatusInternalServerError {
		s.log.WithContext(c.Request().Context()).WithError(err).Error("request failed",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, ErrorResponse{Error: message, RequestID: id})
	}
	if err != nil {
		s.log.WithError(err).Warn("failed to write error response")
	}
}

func badRequest(format string, args ...any) error {
	return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf(format, args...))
}
