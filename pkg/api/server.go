package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"feedhub/pkg/domain"
	"feedhub/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	msgSubscriptionsFailed = "Failed to open OPML file"
	msgArticlesFailed      = "Failed to get feeds"
)

// Aggregator is the service behind the endpoints
type Aggregator interface {
	GetSubscriptions(ctx context.Context) ([]domain.FeedDescriptor, error)
	GetArticles(ctx context.Context) ([]domain.Article, error)
}

// Config holds the HTTP layer settings
type Config struct {
	AllowedOrigins []string // Empty allows any origin
	CORSMaxAge     int      // Seconds, 0 means 3600
}

// Handler serves the aggregator over HTTP
type Handler struct {
	agg Aggregator
}

// NewServer creates an echo instance with all routes registered
func NewServer(agg Aggregator, cfg Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	RegisterRoutes(e, agg, cfg)
	return e
}

// RegisterRoutes installs middleware and routes on e
func RegisterRoutes(e *echo.Echo, agg Aggregator, cfg Config) {
	maxAge := cfg.CORSMaxAge
	if maxAge <= 0 {
		maxAge = 3600
	}

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAccept},
		MaxAge:       maxAge,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Infof("%s %s %d %s", v.Method, v.URI, v.Status, v.Latency.Round(time.Millisecond))
			return nil
		},
	}))

	h := &Handler{agg: agg}
	e.GET("/subscriptions", h.Subscriptions)
	e.GET("/opml", h.Subscriptions)
	e.GET("/articles", h.Articles)
	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// Subscriptions returns the feeds listed in the OPML file
func (h *Handler) Subscriptions(c echo.Context) error {
	feeds, err := h.agg.GetSubscriptions(c.Request().Context())
	if err != nil {
		logger.Errorf("subscriptions: %v", err)
		return c.String(http.StatusInternalServerError, msgSubscriptionsFailed)
	}
	return c.JSON(http.StatusOK, feeds)
}

// Articles returns the recent articles of every feed
func (h *Handler) Articles(c echo.Context) error {
	articles, err := h.agg.GetArticles(c.Request().Context())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debugf("articles: client went away: %v", err)
		} else {
			logger.Errorf("articles: %v", err)
		}
		return c.String(http.StatusInternalServerError, msgArticlesFailed)
	}
	return c.JSON(http.StatusOK, articles)
}

// Health reports that the process is serving
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Start runs the server until ctx is cancelled, then shuts it down gracefully
func Start(ctx context.Context, e *echo.Echo, addr string) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Infof("shutting down")
	return e.Shutdown(shutdownCtx)
}
