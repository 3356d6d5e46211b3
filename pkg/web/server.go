// Package web serves the control API and the live gaze and calibration
// websocket streams.
package web

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-eyecue/internal/log"
	"github.com/teslashibe/go-eyecue/pkg/calibration"
	"github.com/teslashibe/go-eyecue/pkg/hub"
	"github.com/teslashibe/go-eyecue/pkg/metrics"
	"github.com/teslashibe/go-eyecue/pkg/pointer"
	"github.com/teslashibe/go-eyecue/pkg/tracking"
)

// Backend is the tracker surface the API drives. *tracking.Tracker
// implements it.
type Backend interface {
	Status() tracking.Status
	GetTuningParams() tracking.TuningParams
	SetTuningParams(tracking.TuningParams)

	StartCalibration(ctx context.Context, d calibration.Display) (*calibration.Signals, error)
	ConfirmCalibration() bool
	AbortCalibration(reason string) bool
	LastCalibration() (tracking.CalibrationOutcome, bool)
	Sessions() *calibration.Sessions

	Metrics() *metrics.Collector
	Pointer() *pointer.Toggle
	Reset()
}

// Config holds the server settings.
type Config struct {
	Addr      string `yaml:"addr"`       // listen address, e.g. ":8080"
	StaticDir string `yaml:"static_dir"` // optional dashboard files served at /
}

// DefaultConfig listens on :8080 without a dashboard.
func DefaultConfig() Config {
	return Config{Addr: ":8080"}
}

// Server is the HTTP API. It also publishes tracker state: it implements
// tracking.StateUpdater and calibration.Display.
type Server struct {
	app     *fiber.App
	config  Config
	backend Backend

	gazeHub        *hub.Hub
	calibrationHub *hub.Hub

	mu      sync.RWMutex
	ctx     context.Context
	display calibration.Display // forwarded to, e.g. a local window
}

// NewServer creates the server and registers the routes.
func NewServer(config Config, backend Backend) *Server {
	s := &Server{
		config:         config,
		backend:        backend,
		gazeHub:        hub.New("gaze"),
		calibrationHub: hub.NewRetaining("calibration"),
		ctx:            context.Background(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "eyecue",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	app.Get("/health", s.handleHealth)

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/metrics", s.handleMetrics)
	api.Get("/tuning", s.handleGetTuning)
	api.Post("/tuning", s.handleSetTuning)
	api.Get("/calibration", s.handleCalibration)
	api.Post("/calibration/start", s.handleCalibrationStart)
	api.Post("/calibration/confirm", s.handleCalibrationConfirm)
	api.Post("/calibration/abort", s.handleCalibrationAbort)
	api.Post("/pointer", s.handlePointer)
	api.Post("/reset", s.handleReset)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/gaze", websocket.New(s.handleWS(s.gazeHub)))
	app.Get("/ws/calibration", websocket.New(s.handleWS(s.calibrationHub)))

	if config.StaticDir != "" {
		app.Static("/", config.StaticDir)
	}

	s.app = app
	return s
}

// SetDisplay forwards calibration targets to d as well as to websocket
// clients.
func (s *Server) SetDisplay(d calibration.Display) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.display = d
}

// Run starts the hubs and the listener and blocks until ctx is done or the
// listener fails. Calibrations started through the API end with ctx.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	go s.gazeHub.Run(ctx)
	go s.calibrationHub.Run(ctx)

	errc := make(chan error, 1)
	go func() { errc <- s.app.Listen(s.config.Addr) }()
	log.Info("web server listening", "addr", s.config.Addr)

	select {
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			return err
		}
		return nil
	case err := <-errc:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

// App returns the fiber app, e.g. for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// GazeHub returns the hub streaming gaze events.
func (s *Server) GazeHub() *hub.Hub { return s.gazeHub }

// CalibrationHub returns the hub streaming calibration events.
func (s *Server) CalibrationHub() *hub.Hub { return s.calibrationHub }

func (s *Server) baseContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

func (s *Server) forward() calibration.Display {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.display
}
