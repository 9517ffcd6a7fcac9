package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	echoapi "go.pilab.hu/deviceauth/api/echo"
	"go.pilab.hu/deviceauth/log"
)

// Options configures NewHTTPServer.
type Options struct {
	Addr     string
	Logger   log.Logger
	API      *echoapi.DeviceAuthorizationAPI
	Authn    []echo.MiddlewareFunc
	Gatherer prometheus.Gatherer
	// Ready is consulted by /readyz; nil means always ready.
	Ready func(ctx context.Context) error
}

// NewHTTPServer creates the echo router and wraps it in an http.Server.
func NewHTTPServer(opts Options) *http.Server {
	e := NewRouter(opts)

	return &http.Server{
		Addr:              opts.Addr,
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// NewRouter builds the echo instance serving the device authorization
// endpoint, health checks and metrics.
func NewRouter(opts Options) *echo.Echo {
	appLogger := opts.Logger
	if appLogger == nil {
		appLogger = log.NewNopLogger()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestLogger(appLogger))

	if opts.API == nil {
		appLogger.Error(context.Background(), "DeviceAuthorizationAPI not provided, API routes will not be registered.", nil)
	} else {
		opts.API.RegisterRoutes(e, opts.Authn...)
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	e.GET("/readyz", func(c echo.Context) error {
		if opts.Ready != nil {
			if err := opts.Ready(c.Request().Context()); err != nil {
				appLogger.Error(c.Request().Context(), "Readiness check failed", err)
				return c.String(http.StatusServiceUnavailable, "Service not ready")
			}
		}

		return c.String(http.StatusOK, "OK")
	})

	if opts.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(
			opts.Gatherer,
			promhttp.HandlerOpts{EnableOpenMetrics: true},
		)))
	}

	return e
}

// requestLogger logs each request through the application logger.
func requestLogger(appLogger log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			fields := map[string]interface{}{
				"method":     req.Method,
				"path":       req.URL.Path,
				"status":     c.Response().Status,
				"latency":    time.Since(start).String(),
				"ip":         c.RealIP(),
				"user_agent": req.UserAgent(),
			}

			if err != nil {
				appLogger.Error(req.Context(), "HTTP Request failed", err, fields)
			} else {
				appLogger.Info(req.Context(), "HTTP Request", fields)
			}

			return nil
		}
	}
}
