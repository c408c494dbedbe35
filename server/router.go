// Package server wires the HTTP surface: the authenticated /v1 management
// API, the public /share endpoints, and the operational endpoints.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shelfd/shelfd/auth"
	"github.com/shelfd/shelfd/config"
	"github.com/shelfd/shelfd/core"
	"github.com/shelfd/shelfd/events"
	"github.com/shelfd/shelfd/metrics"
	"github.com/shelfd/shelfd/server/handlers"
	"github.com/shelfd/shelfd/shares"
	"github.com/shelfd/shelfd/trash"
	"github.com/shelfd/shelfd/versions"

	authMiddleware "github.com/shelfd/shelfd/server/middleware"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(
	engine *core.Engine,
	authenticator auth.Authenticator,
	trashManager *trash.Manager,
	versionManager *versions.Manager,
	shareManager *shares.Manager,
	hub *events.Hub,
	cfg *config.AppConfig,
	logger *zap.Logger,
) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware.V1RequestIDMiddleware())
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(authMiddleware.V1SecurityHeaders())

	// Custom logging and metrics middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)

			metrics.HTTPRequestsTotal.WithLabelValues(
				r.Method,
				routePattern(r),
				http.StatusText(ww.Status()),
			).Inc()

			logger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", duration),
				zap.String("remote_addr", r.RemoteAddr))
		})
	})

	// Health check endpoint (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			logger.Error("Failed to write health check response", zap.Error(err))
		}
	})

	// Metrics endpoint (no auth required)
	r.Handle("/metrics", promhttp.Handler())

	// Management API with authentication
	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.V1AuthMiddleware(authenticator, logger))

		r.Route("/files", func(r chi.Router) {
			r.Get("/*", handlers.V1GetFile(engine, logger))
			r.Head("/*", handlers.V1HeadFile(engine, logger))
			r.Put("/*", handlers.V1PutFile(engine, logger))
			r.Delete("/*", handlers.V1DeleteFile(engine, logger))
		})

		r.Route("/directories", func(r chi.Router) {
			r.Get("/*", handlers.V1ListDirectory(engine, logger))
			r.Post("/*", handlers.V1CreateDirectory(engine, logger))
		})

		r.Post("/move", handlers.V1Move(engine, logger))

		r.Route("/tags", func(r chi.Router) {
			r.Get("/*", handlers.V1GetTags(engine, logger))
			r.Post("/*", handlers.V1AddTag(engine, logger))
			r.Delete("/*", handlers.V1RemoveTag(engine, logger))
		})

		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", handlers.V1ListFavorites(engine, logger))
			r.Put("/*", handlers.V1SetFavorite(engine, logger))
			r.Delete("/*", handlers.V1UnsetFavorite(engine, logger))
		})

		r.Route("/comments", func(r chi.Router) {
			r.Get("/*", handlers.V1GetComments(engine, logger))
			r.Post("/*", handlers.V1AddComment(engine, logger))
		})

		r.Route("/trash", func(r chi.Router) {
			r.Get("/", handlers.V1ListTrash(trashManager, logger))
			r.Delete("/", handlers.V1EmptyTrash(trashManager, logger))
			r.Post("/{id}/restore", handlers.V1RestoreTrash(trashManager, logger))
			r.Delete("/{id}", handlers.V1PurgeTrash(trashManager, logger))
		})

		r.Route("/versions", func(r chi.Router) {
			r.Post("/restore", handlers.V1RestoreVersion(engine, logger))
			r.Get("/*", handlers.V1ListVersions(versionManager, logger))
			r.Delete("/*", handlers.V1DeleteVersions(versionManager, logger))
		})

		r.Route("/shares", func(r chi.Router) {
			// Rate limit share creation so a runaway client cannot mint
			// tokens unboundedly.
			shareRateLimiter := rate.NewLimiter(rate.Limit(cfg.Shares.CreateRateLimit), 1)
			r.With(authMiddleware.V1RateLimitMiddleware(shareRateLimiter, logger)).
				Post("/", handlers.V1CreateShare(shareManager, cfg.Server.ExternalURL, logger))
			r.Get("/", handlers.V1ListShares(shareManager, cfg.Server.ExternalURL, logger))
			r.Delete("/{id}", handlers.V1DeleteShare(shareManager, logger))
		})

		r.Get("/events", handlers.V1Events(hub))
	})

	// Public share access (no auth; the link policy is the access control)
	r.Get("/share/{id}", handlers.PublicShareDownload(shareManager, engine, logger))
	r.Post("/share/{id}", handlers.PublicShareUpload(shareManager, engine, logger))

	logger.Info("HTTP router configured")

	return r
}

// routePattern returns the matched chi route pattern so the request counter
// stays low-cardinality, falling back to the raw path before routing.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
