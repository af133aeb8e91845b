// Package server exposes the panel over HTTP for status bars and scripts.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Tiliavir/hamster-panel/internal/daemon"
	"github.com/Tiliavir/hamster-panel/internal/ledger"
	"github.com/Tiliavir/hamster-panel/internal/panel"
)

const shutdownTimeout = 5 * time.Second

// NewRouter wires the routes for p.
func NewRouter(p *panel.Panel, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(), AccessLog(log))

	h := &handlers{panel: p, log: log}
	r.GET("/status", h.getStatus)
	r.GET("/facts", h.getFacts)
	r.POST("/facts", h.postFact)
	r.POST("/stop", h.postStop)
	return r
}

// Serve runs the HTTP server on addr until ctx is done.
func Serve(ctx context.Context, addr string, p *panel.Panel, log *zap.SugaredLogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(p, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infow("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RequestIDMiddleware ensures every request has a correlation/request ID.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set("request_id", reqID)
		c.Writer.Header().Set("X-Request-ID", reqID)
		c.Next()
	}
}

// AccessLog logs one line per request at debug level.
func AccessLog(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debugw("request",
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"took", time.Since(start),
		)
	}
}

// statusCode maps a command error onto an HTTP status.
func statusCode(err error) int {
	switch {
	case errors.Is(err, ledger.ErrEmptyActivity):
		return http.StatusBadRequest
	case errors.Is(err, daemon.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
