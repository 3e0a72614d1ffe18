package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/slipstream/aria2d/internal/engine"
	"github.com/slipstream/aria2d/internal/engine/rpc"
)

// AddDownloadRequest is the body of POST /api/v1/downloads.
type AddDownloadRequest struct {
	URL      string `json:"url"`
	Dir      string `json:"dir"`
	Filename string `json:"filename,omitempty"`
}

// GlobalStatResponse is the body of GET /api/v1/stats.
type GlobalStatResponse struct {
	DownloadSpeed uint64 `json:"downloadSpeed"`
	NumActive     uint64 `json:"numActive"`
}

func (s *Server) addDownload(c echo.Context) error {
	var input AddDownloadRequest
	if err := c.Bind(&input); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	input.URL = strings.TrimSpace(input.URL)
	if input.URL == "" || input.Dir == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "url and dir are required"})
	}

	gid, err := s.manager.AddDownload(c.Request().Context(), input.URL, input.Dir, input.Filename)
	if err != nil {
		return s.engineError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]string{"gid": gid})
}

func (s *Server) getDownload(c echo.Context) error {
	progress, err := s.manager.GetStatus(c.Request().Context(), c.Param("gid"))
	if err != nil {
		return s.engineError(c, err)
	}
	return c.JSON(http.StatusOK, progress)
}

func (s *Server) pauseDownload(c echo.Context) error {
	if err := s.manager.Pause(c.Request().Context(), c.Param("gid")); err != nil {
		return s.engineError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) resumeDownload(c echo.Context) error {
	if err := s.manager.Resume(c.Request().Context(), c.Param("gid")); err != nil {
		return s.engineError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) cancelDownload(c echo.Context) error {
	if err := s.manager.Cancel(c.Request().Context(), c.Param("gid")); err != nil {
		return s.engineError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getGlobalStat(c echo.Context) error {
	speed, active, err := s.manager.GlobalStat(c.Request().Context())
	if err != nil {
		return s.engineError(c, err)
	}
	return c.JSON(http.StatusOK, GlobalStatResponse{DownloadSpeed: speed, NumActive: active})
}

// engineError maps manager errors to HTTP statuses: no session is 503, an
// engine rejection is 502, anything else (transport) is 500.
func (s *Server) engineError(c echo.Context, err error) error {
	var rpcErr *rpc.Error
	switch {
	case errors.Is(err, engine.ErrNotConnected):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case errors.As(err, &rpcErr):
		return c.JSON(http.StatusBadGateway, map[string]string{"error": rpcErr.Message})
	default:
		s.logger.Error().Err(err).Msg("engine call failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
