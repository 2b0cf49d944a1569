package web

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/teslashibe/lookout/pkg/frame"
	"github.com/teslashibe/lookout/pkg/hub"
	"github.com/teslashibe/lookout/pkg/inference"
	"github.com/teslashibe/lookout/pkg/sampler"
)

// healthTimeout bounds an endpoint probe.
const healthTimeout = 5 * time.Second

// SettingsRequest is the body of PUT /api/settings. Absent fields are left
// unchanged.
type SettingsRequest = sampler.Settings

// ErrorResponse is returned with every non-2xx API status.
type ErrorResponse struct {
	Error string            `json:"error"`
	State *sampler.Snapshot `json:"state,omitempty"`
}

// HealthResponse is the body of GET /api/endpoint/health.
type HealthResponse struct {
	OK       bool   `json:"ok"`
	Endpoint string `json:"endpoint"`
	Error    string `json:"error,omitempty"`
	Hint     string `json:"hint,omitempty"`
}

func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.State())
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	if err := s.ctrl.Start(); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.ctrl.State())
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	s.ctrl.Stop()
	return c.JSON(s.ctrl.State())
}

// handleTrigger runs one cycle now. 202 if it started, 409 if a cycle was
// already in flight.
func (s *Server) handleTrigger(c *fiber.Ctx) error {
	if !s.ctrl.Trigger() {
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: "a cycle is already in flight"})
	}
	return c.Status(fiber.StatusAccepted).JSON(s.ctrl.State())
}

func (s *Server) handleSettings(c *fiber.Ctx) error {
	var req SettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid body: " + err.Error()})
	}
	if err := s.ctrl.Configure(req); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.ctrl.State())
}

func (s *Server) handleIntervals(c *fiber.Ctx) error {
	return c.JSON(sampler.AllowedIntervals)
}

// handleHealth probes ?endpoint= or, without it, the session endpoint.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	endpoint := c.Query("endpoint", s.ctrl.State().Endpoint)
	if s.health == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(HealthResponse{Endpoint: endpoint, Error: "health check not configured"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	if err := s.health.Health(ctx, endpoint); err != nil {
		s.logger.Info("endpoint unhealthy", "endpoint", endpoint, "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(HealthResponse{Endpoint: endpoint, Error: err.Error(), Hint: healthHint(err)})
	}
	return c.JSON(HealthResponse{OK: true, Endpoint: endpoint})
}

// healthHint suggests a cause for a failed probe.
func healthHint(err error) string {
	var apiErr *inference.APIError
	if !errors.As(err, &apiErr) {
		return "endpoint unreachable; check the URL and that the server is running"
	}
	switch {
	case apiErr.IsNotFound():
		return "endpoint does not serve " + inference.ModelsPath + "; is it OpenAI-compatible?"
	case apiErr.IsRateLimited():
		return "endpoint is rate limiting requests"
	case apiErr.IsServerError():
		return "endpoint reported an internal error; the model may still be loading"
	}
	return ""
}

func (s *Server) handleFrame(c *fiber.Ctx) error {
	img, ok := s.LastFrame()
	if !ok {
		return c.SendStatus(fiber.StatusNoContent)
	}
	c.Set(fiber.HeaderContentType, frame.MIMEType)
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(img.JPEG)
}

// handleStateWS streams snapshots; the current one is sent on connect.
func (s *Server) handleStateWS(c *websocket.Conn) {
	hub.NewClient(s.stateHub, c).Run()
}

// handleCameraWS streams captured frames as binary JPEG messages.
func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c).Run()
}

// fail maps controller errors to HTTP statuses.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, sampler.ErrRunning), errors.Is(err, sampler.ErrSourceUnavailable):
		status = fiber.StatusConflict
	case errors.Is(err, sampler.ErrInvalidInterval), errors.Is(err, sampler.ErrEmptyEndpoint):
		status = fiber.StatusBadRequest
	case errors.Is(err, sampler.ErrClosed):
		status = fiber.StatusServiceUnavailable
	}
	state := s.ctrl.State()
	return c.Status(status).JSON(ErrorResponse{Error: err.Error(), State: &state})
}
