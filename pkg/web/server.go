// Package web exposes the scanner over HTTP: a JSON control surface and
// websocket feeds of status changes, new scans and captured frames.
package web

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-inspect/pkg/frame"
	"github.com/teslashibe/go-inspect/pkg/hub"
	"github.com/teslashibe/go-inspect/pkg/scanlog"
	"github.com/teslashibe/go-inspect/pkg/scheduler"
	"github.com/teslashibe/go-inspect/pkg/status"
)

// Controller is the scheduler surface the server drives.
type Controller interface {
	Start()
	Stop()
	Snapshot() scheduler.State
	Latest() (scanlog.Entry, bool)
	Scans(n int) []scanlog.Entry
	Scan(id uint64) (scanlog.Entry, bool)
	Subscribe() (<-chan scheduler.State, func())
	SubscribeFrames() (<-chan *frame.Frame, func())
}

// DefaultScanLimit is the page size of GET /api/scans without a limit.
const DefaultScanLimit = 50

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Server is the HTTP control surface.
type Server struct {
	app    *fiber.App
	addr   string
	ctrl   Controller
	logger *slog.Logger

	statusHub *hub.Hub
	scanHub   *hub.Hub
	frameHub  *hub.Hub
}

// NewServer creates a server listening on addr (e.g. ":8080").
func NewServer(addr string, ctrl Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "web")

	s := &Server{
		addr:      addr,
		ctrl:      ctrl,
		logger:    logger,
		statusHub: hub.New("status", logger),
		scanHub:   hub.New("scans", logger, hub.WithoutReplay()),
		frameHub:  hub.New("frames", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-inspect",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	// CORS for local dashboards
	app.Use(cors.New())

	app.Get("/health", s.handleHealth)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/start", s.handleStart)
	api.Post("/stop", s.handleStop)
	api.Get("/latest", s.handleLatest)
	api.Get("/scans", s.handleScans)
	api.Get("/scans/:id", s.handleScan)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.statusHub.Serve))
	app.Get("/ws/scans", websocket.New(s.scanHub.Serve))
	app.Get("/ws/frames", websocket.New(s.frameHub.Serve))

	s.app = app
	return s
}

// App returns the fiber app, for tests and embedding.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.runFeeds(ctx)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("web server listening", "addr", s.addr)
		errc <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runFeeds starts the hubs and the goroutines feeding them.
func (s *Server) runFeeds(ctx context.Context) {
	go s.statusHub.Run(ctx)
	go s.scanHub.Run(ctx)
	go s.frameHub.Run(ctx)
	go s.Pump(ctx)
	go s.PumpFrames(ctx)
}

// Pump forwards scheduler transitions to the hubs until ctx is done or the
// scheduler closes its subscription.
func (s *Server) Pump(ctx context.Context) {
	states, cancel := s.ctrl.Subscribe()
	defer cancel()

	current := s.ctrl.Snapshot()
	s.broadcastStatus(current)
	var lastID uint64
	if current.Latest != nil {
		lastID = current.Latest.ID
	}

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			s.broadcastStatus(st)
			if st.Latest != nil && st.Latest.ID > lastID {
				lastID = st.Latest.ID
				if err := s.scanHub.PublishJSON(st.Latest); err != nil {
					s.logger.Warn("encode scan", "error", err)
				}
			}
		}
	}
}

func (s *Server) broadcastStatus(st scheduler.State) {
	if err := s.statusHub.PublishJSON(status.Project(st)); err != nil {
		s.logger.Warn("encode status", "error", err)
	}
}

// PumpFrames forwards captured frames to the preview feed as binary JPEG
// messages until ctx is done or the scheduler closes.
func (s *Server) PumpFrames(ctx context.Context) {
	frames, cancel := s.ctrl.SubscribeFrames()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			s.frameHub.PublishFrame(f.JPEG)
		}
	}
}
