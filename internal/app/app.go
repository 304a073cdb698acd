// Package app contains the web front-end.
package app

import (
	"embed"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/stolasapp/notebook/internal/app/component"
	"github.com/stolasapp/notebook/internal/backend"
	"github.com/stolasapp/notebook/internal/config"
	"github.com/stolasapp/notebook/internal/gate"
	"github.com/stolasapp/notebook/internal/observability"
)

//go:embed static
var staticFiles embed.FS

// New creates a web front-end server. A nil metrics is allowed.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	notes backend.Backend,
	secret *gate.Gate,
	metrics *observability.Metrics,
) *echo.Echo {
	srv := echo.New()

	srv.HideBanner = true
	srv.HidePort = true
	srv.Logger.SetLevel(log.OFF)

	if cfg.DevMode {
		srv.Debug = true
		srv.Use(logRequests(logger))
	} else {
		srv.Use(middleware.Recover())
	}

	srv.Use(
		recordRequests(metrics),
		middleware.Decompress(),
		middleware.Gzip(),
		middleware.Secure(),
		middleware.CSRFWithConfig(middleware.CSRFConfig{
			TokenLookup:    "form:" + component.FieldCSRF,
			CookieName:     component.FieldCSRF,
			CookiePath:     "/",
			CookieHTTPOnly: true,
			CookieSecure:   !cfg.DevMode,
			CookieSameSite: http.SameSiteLaxMode,
		}),
		middleware.RequestID(),
	)

	handler{
		cfg:     cfg,
		logger:  logger,
		backend: notes,
		gate:    secret,
		metrics: metrics,
		cookies: cookieJar{secure: !cfg.DevMode},
	}.register(srv)

	staticFS := echo.MustSubFS(staticFiles, "static")
	srv.StaticFS("/static/", staticFS)
	srv.FileFS("/robots.txt", "robots.txt", staticFS)
	return srv
}

func logRequests(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("uri", req.RequestURI),
				slog.String("route", c.Path()),
				slog.Duration("latency", latency),
				slog.Int("status", res.Status),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
			logger.LogAttrs(
				req.Context(),
				slog.LevelDebug,
				"request handled",
				attrs...,
			)
			return err
		}
	}
}

// recordRequests observes request latency by route. Errors are handled here
// so the recorded status is the one sent to the client.
func recordRequests(metrics *observability.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			metrics.HTTPRequest(c.Request().Method, c.Path(), c.Response().Status, time.Since(start))
			return nil
		}
	}
}
