// Package server exposes the progress of a running pass over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/Martian-dev/pst-migrate/internal/auth"
	"github.com/Martian-dev/pst-migrate/internal/sync"
)

// StatusSource provides the current progress snapshot.
type StatusSource interface {
	Snapshot() sync.Snapshot
}

// CallerVerifier authenticates a request.
type CallerVerifier interface {
	CallerFromRequest(r *http.Request) (*auth.Caller, error)
}

// NewRouter builds the gin engine serving /healthz and /status. /status
// requires a valid bearer token when verifier is non-nil.
func NewRouter(progress StatusSource, verifier CallerVerifier) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	status := r.Group("/")
	if verifier != nil {
		status.Use(authMiddleware(verifier))
	}
	status.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, progress.Snapshot())
	})

	return r
}

func authMiddleware(verifier CallerVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, err := verifier.CallerFromRequest(c.Request)
		if err != nil {
			log.WithError(err).Debug("rejected status request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set("caller", caller.Subject)
		c.Next()
	}
}

// Serve runs the status endpoint on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, progress StatusSource, verifier CallerVerifier) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(progress, verifier),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("status endpoint listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
