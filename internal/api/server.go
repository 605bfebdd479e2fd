package api

import (
	"net/http"
	"salarydash/internal/config"
	"salarydash/internal/engine"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"golang.org/x/time/rate"
)

// NewServer wires echo with the dashboard middleware stack and routes.
// store may be nil; publish it later through the returned Handler.
func NewServer(cfg config.Config, store *engine.ColumnStore, logger *log.Logger) (*echo.Echo, *Handler) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger = logger
	e.JSONSerializer = JSONSerializer{}

	h := NewHandler(store, cfg.Params())

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Output: logger.Output(),
	}))
	// Metrics wrap Recover so panics are counted as 500s.
	e.Use(h.metrics.middleware)
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
	}))
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Skipper: func(c echo.Context) bool { return c.Path() == "/healthz" || c.Path() == "/metrics" },
			Store:   middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimit)),
		}))
	}

	h.RegisterRoutes(e)
	return e, h
}
