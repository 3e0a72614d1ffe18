// Package api exposes the download manager over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/slipstream/aria2d/internal/engine"
	"github.com/slipstream/aria2d/internal/websocket"
)

// Controller is the manager surface the API drives. *engine.Manager implements it.
type Controller interface {
	AddDownload(ctx context.Context, url, dir, filename string) (string, error)
	GetStatus(ctx context.Context, gid string) (engine.DownloadProgress, error)
	Pause(ctx context.Context, gid string) error
	Resume(ctx context.Context, gid string) error
	Cancel(ctx context.Context, gid string) error
	GlobalStat(ctx context.Context) (speed, active uint64, err error)
	State() engine.SessionState
}

var _ Controller = (*engine.Manager)(nil)

// Server is the HTTP control API.
type Server struct {
	echo    *echo.Echo
	manager Controller
	hub     *websocket.Hub
	tasks   TaskRunner
	logger  zerolog.Logger
}

// NewServer creates the API server. hub may be nil to disable /ws.
func NewServer(manager Controller, hub *websocket.Hub, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		manager: manager,
		hub:     hub,
		logger:  logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")

	if err := s.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// ServeHTTP lets the server be mounted or tested directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"engine": s.manager.State().String(),
	})
}
