// Package web exposes the sampling controller over HTTP: a small JSON API to
// start, stop and configure sampling, plus websocket feeds of the session
// state and the captured frames.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/teslashibe/lookout/internal/log"
	"github.com/teslashibe/lookout/pkg/frame"
	"github.com/teslashibe/lookout/pkg/hub"
	"github.com/teslashibe/lookout/pkg/sampler"
)

// Controller is the part of *sampler.Controller the server drives.
type Controller interface {
	State() sampler.Snapshot
	Start() error
	Stop()
	Trigger() bool
	Configure(settings sampler.Settings) error
	OnChange(fn func(sampler.Snapshot))
	OnCapture(fn func(frame.Image))
}

// HealthChecker probes an inference endpoint.
type HealthChecker interface {
	Health(ctx context.Context, endpoint string) error
}

// Config configures the server.
type Config struct {
	// Addr is the listen address used by Listen.
	Addr string

	// StaticDir, when set, is served at /.
	StaticDir string

	Logger *slog.Logger
}

// Server is the lookout control surface.
type Server struct {
	app    *fiber.App
	addr   string
	ctrl   Controller
	health HealthChecker
	logger *slog.Logger

	// Hubs for websocket broadcast.
	stateHub  *hub.Hub
	cameraHub *hub.Hub

	hubCtx    context.Context
	hubCancel context.CancelFunc
	hubOnce   sync.Once
	hubWG     sync.WaitGroup

	frameMu   sync.RWMutex
	lastFrame frame.Image

	// stateMu orders state broadcasts by Seq.
	stateMu sync.Mutex
	lastSeq uint64
}

// NewServer builds the fiber app and subscribes to the controller's state
// and capture callbacks. health may be nil, in which case the health route
// reports 501.
func NewServer(ctrl Controller, health HealthChecker, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Component("web")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:      cfg.Addr,
		ctrl:      ctrl,
		health:    health,
		logger:    logger,
		stateHub:  hub.New("state"),
		cameraHub: hub.New("camera"),
		hubCtx:    ctx,
		hubCancel: cancel,
	}

	s.stateHub.OnRegister(func() (hub.Message, bool) {
		data, err := json.Marshal(s.ctrl.State())
		if err != nil {
			return hub.Message{}, false
		}
		return hub.NewJSONMessage(data), true
	})
	ctrl.OnChange(s.publishState)
	ctrl.OnCapture(s.publishFrame)

	app := fiber.New(fiber.Config{
		AppName:               "lookout",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Post("/start", s.handleStart)
	api.Post("/stop", s.handleStop)
	api.Post("/trigger", s.handleTrigger)
	api.Put("/settings", s.handleSettings)
	api.Get("/intervals", s.handleIntervals)
	api.Get("/endpoint/health", s.handleHealth)
	api.Get("/frame", s.handleFrame)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(s.handleStateWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on the configured address until Shutdown.
func (s *Server) Listen() error {
	s.startHubs()
	s.logger.Info("dashboard listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.startHubs()
	s.logger.Info("dashboard listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown stops accepting connections, waits for active requests and
// closes every websocket client.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.hubCancel()
	s.hubWG.Wait()
	return err
}

func (s *Server) startHubs() {
	s.hubOnce.Do(func() {
		for _, h := range []*hub.Hub{s.stateHub, s.cameraHub} {
			s.hubWG.Add(1)
			go func(h *hub.Hub) {
				defer s.hubWG.Done()
				h.Run(s.hubCtx)
			}(h)
		}
	})
}

// publishState broadcasts snap unless a newer snapshot was already sent.
// Listeners may be called concurrently, so arrival order is not Seq order.
func (s *Server) publishState(snap sampler.Snapshot) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if snap.Seq <= s.lastSeq {
		return
	}
	s.lastSeq = snap.Seq
	if err := s.stateHub.BroadcastJSON(snap); err != nil {
		s.logger.Warn("state broadcast failed", "error", err)
	}
}

func (s *Server) publishFrame(img frame.Image) {
	s.frameMu.Lock()
	s.lastFrame = img
	s.frameMu.Unlock()
	s.cameraHub.BroadcastBinary(img.JPEG)
}

// LastFrame returns the most recently captured frame, if any.
func (s *Server) LastFrame() (frame.Image, bool) {
	s.frameMu.RLock()
	defer s.frameMu.RUnlock()
	return s.lastFrame, !s.lastFrame.Empty()
}
