// Package api serves the control panel: queue inspection, manual enqueue,
// skip/remove/clear, the playback toggle, settings and a live event stream.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/streamcore/ttsqueue/internal/playback"
	"github.com/streamcore/ttsqueue/internal/tts"
)

// Server exposes a Controller over HTTP.
type Server struct {
	controller *playback.Controller
	settings   *playback.ConfigSync
	hub        *Hub
	logger     *log.Logger
	echo       *echo.Echo
}

// NewServer builds the routes. settings may be nil, in which case settings
// changes are applied but never persisted.
func NewServer(controller *playback.Controller, settings *playback.ConfigSync, logger *log.Logger) *Server {
	s := &Server{
		controller: controller,
		settings:   settings,
		logger:     logger.With("component", "api"),
	}
	s.hub = NewHub(controller, s.logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(s.requestLog)

	e.GET("/healthz", s.Health)
	s.RegisterRoutes(e.Group("/api"))
	s.echo = e
	return s
}

// RegisterRoutes mounts the panel API on g.
func (s *Server) RegisterRoutes(g *echo.Group) {
	g.GET("/queue", s.Queue)
	g.POST("/queue", s.Enqueue)
	g.DELETE("/queue", s.Clear)
	g.POST("/queue/:id/skip", s.Skip)
	g.DELETE("/queue/:id", s.Remove)
	g.PUT("/enabled", s.SetEnabled)
	g.GET("/settings", s.Settings)
	g.PUT("/settings", s.UpdateSettings)
	g.GET("/events", s.hub.Serve)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("panel listening", "addr", addr)
		errc <- s.echo.Start(addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.Close()
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(sctx)
}

func (s *Server) requestLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.logger.Debug("request",
			"method", c.Request().Method,
			"path", c.Path(),
			"status", c.Response().Status,
			"took", time.Since(start),
		)
		return nil
	}
}

// Health reports liveness.
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "state": s.controller.State().String()})
}

// Queue returns the controller status including the queue.
func (s *Server) Queue(c echo.Context) error {
	return c.JSON(http.StatusOK, s.controller.Status())
}

// EnqueueRequest is the body of POST /api/queue. Audio is optional base64 or
// a data URL; without it the request is spoken by the remote renderer.
type EnqueueRequest struct {
	User    string `json:"user"`
	Message string `json:"message"`
	Audio   string `json:"audio,omitempty"`
}

// Enqueue adds a request by hand, mainly to test the setup.
func (s *Server) Enqueue(c echo.Context) error {
	var body EnqueueRequest
	if err := c.Bind(&body); err != nil {
		return badRequest("invalid_body", "request body must be JSON")
	}
	body.Message = strings.TrimSpace(body.Message)
	if body.Message == "" && body.Audio == "" {
		return fromDomain(tts.ErrEmptyMessage)
	}

	var payload []byte
	if body.Audio != "" {
		payload = []byte(body.Audio)
	}
	req, err := s.controller.Enqueue(body.User, body.Message, payload)
	if err != nil {
		return fromDomain(err)
	}
	return c.JSON(http.StatusCreated, req)
}

// Skip ends the given request early.
func (s *Server) Skip(c echo.Context) error {
	if err := s.controller.Skip(c.Param("id")); err != nil {
		return fromDomain(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Remove deletes the given request.
func (s *Server) Remove(c echo.Context) error {
	if err := s.controller.Remove(c.Param("id")); err != nil {
		return fromDomain(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Clear empties the queue.
func (s *Server) Clear(c echo.Context) error {
	n := s.controller.Clear()
	return c.JSON(http.StatusOK, map[string]int{"removed": n})
}

// EnabledRequest is the body of PUT /api/enabled.
type EnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// SetEnabled toggles playback.
func (s *Server) SetEnabled(c echo.Context) error {
	var body EnabledRequest
	if err := c.Bind(&body); err != nil || body.Enabled == nil {
		return badRequest("invalid_body", `body must be {"enabled": true|false}`)
	}
	if err := s.controller.SetEnabled(*body.Enabled); err != nil {
		return fromDomain(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"enabled": s.controller.Enabled()})
}

// SettingsResponse adds the user-facing speed to the raw settings.
type SettingsResponse struct {
	tts.ControlSettings
	DisplaySpeed float64 `json:"display_speed"`
}

func settingsResponse(cs tts.ControlSettings) SettingsResponse {
	return SettingsResponse{ControlSettings: cs, DisplaySpeed: cs.DisplaySpeed()}
}

// Settings returns the current control settings.
func (s *Server) Settings(c echo.Context) error {
	return c.JSON(http.StatusOK, settingsResponse(s.controller.Settings()))
}

// UpdateSettings applies and saves a partial settings change.
func (s *Server) UpdateSettings(c echo.Context) error {
	var patch tts.SettingsPatch
	if err := c.Bind(&patch); err != nil {
		return badRequest("invalid_body", "request body must be JSON")
	}

	ctx := c.Request().Context()
	if s.settings == nil {
		next, err := s.controller.UpdateSettings(patch)
		if err != nil {
			return fromDomain(err)
		}
		return c.JSON(http.StatusOK, settingsResponse(next))
	}

	next, err := s.settings.Apply(ctx, patch)
	if err != nil {
		return fromDomain(err)
	}
	if err := s.settings.Save(ctx); err != nil {
		s.logger.Error("could not save settings", "err", err)
		return httpError(http.StatusInternalServerError, "save_failed", "settings applied but could not be saved, retry")
	}
	return c.JSON(http.StatusOK, settingsResponse(next))
}
