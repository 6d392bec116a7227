// Package api exposes the tracker's boundary operations over HTTP.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/zulandar/punchlist/internal/identity"
	"github.com/zulandar/punchlist/internal/logger"
	"github.com/zulandar/punchlist/internal/metrics"
	"github.com/zulandar/punchlist/internal/tracker"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Tracker        *tracker.Tracker
	Resolver       identity.Resolver
	Log            *logger.Logger
	Port           int
	AllowedOrigins []string
	MaxUploadMB    int
	Out            io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Tracker == nil {
		return fmt.Errorf("api: tracker is required")
	}
	if opts.Resolver == nil {
		return fmt.Errorf("api: resolver is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           NewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Punchlist API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with middleware and routes registered.
func NewRouter(opts StartOpts) *gin.Engine {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "api")
	maxUpload := int64(opts.MaxUploadMB) << 20
	if maxUpload <= 0 {
		maxUpload = 8 << 20
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(requestLogger(log))
	router.Use(metrics.Middleware())
	if len(opts.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposeHeaders:    []string{"Content-Disposition", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	h := &handler{tr: opts.Tracker, log: log, maxUpload: maxUpload}
	registerRoutes(router, h, requireAuth(opts.Resolver, log))
	return router
}
