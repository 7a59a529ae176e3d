// Package api exposes the blueprint engine over HTTP with gin.
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dusk-indust/blueprint/internal/engine"
)

// RouterDeps holds what BuildRouter needs.
type RouterDeps struct {
	ServiceName string
	Version     string
	Engine      *engine.Engine
}

// BuildRouter returns the HTTP router serving /health and /api/v1/projects.
func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"service":  dep.ServiceName,
			"version":  dep.Version,
			"projects": len(dep.Engine.Projects()),
			"dirty":    dep.Engine.DirtyCount(),
		})
	})

	api := r.Group("/api/v1")
	NewHandler(dep.Engine).Register(api.Group("/projects"))
	return r
}

// Serve runs h on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Printf("api: listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
