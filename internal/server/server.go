// Package server owns the lifecycle of a transfer server instance: binding
// the listener, preparing the storage root and shutting down cleanly.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"lan-drop/internal/config"
	"lan-drop/internal/engine"
	"lan-drop/internal/storage"
)

// ErrBind is wrapped around listener bind failures, typically a port that
// another instance already holds.
var ErrBind = errors.New("bind listener")

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// Server starts transfer server instances from one configuration. It holds
// no per-instance state, so several handles on different ports can coexist.
type Server struct {
	cfg config.Config
	log *logrus.Logger
}

func New(cfg config.Config, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{cfg: cfg, log: log}
}

// NewApp builds the Fiber app with middleware and transfer routes.
func NewApp(fs storage.FileStorage, log *logrus.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          engine.ErrorHandler(log),
		StreamRequestBody:     true,
		DisableStartupMessage: true,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
		Output: log.Out,
	}))

	engine.RegisterRoutes(app, engine.NewHandler(fs, log))
	return app
}

// Start prepares root, binds 0.0.0.0 on the configured port and begins
// serving. A port conflict is returned as ErrBind; no other port is tried.
func (s *Server) Start(ctx context.Context, root string) (*Handle, error) {
	if root == "" {
		root = s.cfg.Storage.Root
	}
	h := &Handle{root: root, log: s.log, shutdownTimeout: s.shutdownTimeout(), done: make(chan struct{})}
	h.state.Store(int32(StateStarting))

	fs := storage.NewLocalStorage(root, s.cfg.Storage.ChunkSize)
	if err := fs.EnsureLayout(); err != nil {
		h.state.Store(int32(StateStopped))
		return nil, fmt.Errorf("prepare storage root %s: %w", root, err)
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(s.cfg.Server.Port)))
	if err != nil {
		h.state.Store(int32(StateStopped))
		return nil, fmt.Errorf("%w: %w", ErrBind, err)
	}

	h.app = NewApp(fs, s.log)
	h.ln = ln
	h.addr = ln.Addr()
	h.port = ln.Addr().(*net.TCPAddr).Port
	h.url = buildURL(s.scheme(), PrimaryAddress(), h.port)

	h.state.Store(int32(StateRunning))
	go func() {
		defer close(h.done)
		err := h.app.Listener(ln)
		if err != nil && h.State() == StateRunning {
			s.log.WithError(err).Error("Transfer server stopped serving")
		}
	}()

	s.log.WithFields(logrus.Fields{
		"url":  h.url,
		"root": root,
	}).Info("Transfer server running")
	return h, nil
}

func (s *Server) scheme() string {
	if s.cfg.Server.Scheme == "" {
		return "http"
	}
	return s.cfg.Server.Scheme
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.Server.ShutdownTimeoutMs <= 0 {
		return 3 * time.Second
	}
	return time.Duration(s.cfg.Server.ShutdownTimeoutMs) * time.Millisecond
}

func buildURL(scheme, host string, port int) string {
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, strconv.Itoa(port)))
}

// Handle is one running instance returned by Start.
type Handle struct {
	app             *fiber.App
	ln              net.Listener
	addr            net.Addr
	url             string
	port            int
	root            string
	log             *logrus.Logger
	shutdownTimeout time.Duration

	mu    sync.Mutex
	state atomic.Int32
	done  chan struct{}
}

// URL is the address other devices on the LAN should use.
func (h *Handle) URL() string { return h.url }

func (h *Handle) Port() int { return h.port }

// Addr is the bound listener address.
func (h *Handle) Addr() net.Addr { return h.addr }

func (h *Handle) Root() string { return h.root }

func (h *Handle) State() State {
	if h == nil {
		return StateStopped
	}
	return State(h.state.Load())
}

func (h *Handle) Running() bool {
	return h.State() == StateRunning
}

// Stop closes the listener and waits for the serve loop to exit. Transfers
// still in flight after the shutdown timeout are left to fail on their own.
// Stopping a stopped (or nil) handle is a no-op. If ctx ends before the serve
// loop exits the handle stays in StateStopping and a later Stop waits again.
func (h *Handle) Stop(ctx context.Context) error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.State() {
	case StateRunning:
		h.state.Store(int32(StateStopping))
	case StateStopping:
	default:
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, h.shutdownTimeout)
	defer cancel()
	if err := h.app.ShutdownWithContext(shutdownCtx); err != nil {
		h.log.WithError(err).Warn("Shutdown left transfers in flight")
	}
	// Shutdown only closes listeners fasthttp has registered; Serve may not
	// have reached that point yet.
	if err := h.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		h.log.WithError(err).Warn("Close listener failed")
	}

	select {
	case <-h.done:
	case <-ctx.Done():
		return fmt.Errorf("wait for listener close: %w", ctx.Err())
	}
	h.state.Store(int32(StateStopped))
	h.log.WithField("url", h.url).Info("Transfer server stopped")
	return nil
}
