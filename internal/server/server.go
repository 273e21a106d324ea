// Package server is a small development backend that serves the
// notification API the client consumes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nhle/marketbell/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Server wires the notification routes onto a gin engine.
type Server struct {
	engine *gin.Engine
	log    logrus.FieldLogger
}

// New builds the router. Routes live under /api to match the client's
// default base URL.
func New(st store.Store, tokens *Tokens, log logrus.FieldLogger) *Server {
	gin.SetMode(gin.ReleaseMode)
	log = log.WithField("component", "server")

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(log))

	h := &handlers{store: st, log: log}
	api := engine.Group("/api", requireAuth(tokens))
	{
		api.GET("/notifications", h.list)
		api.POST("/notifications", h.create)
		api.DELETE("/notifications", h.removeAll)
		api.GET("/notifications/unread-count", h.unreadCount)
		api.PUT("/notifications/read-all", h.markAllRead)
		api.PUT("/notifications/:id/read", h.markRead)
		api.DELETE("/notifications/:id", h.remove)
	}

	return &Server{engine: engine, log: log}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	s.log.Info("stopped")
	return nil
}
