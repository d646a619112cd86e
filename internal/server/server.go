// Package server implements the devserve HTTP server: per-request
// transpilation of source modules, import rewriting, and live-reload
// notifications pushed to connected browsers over websockets.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/conneroisu/devserve/internal/config"
	"github.com/conneroisu/devserve/internal/logging"
	"github.com/conneroisu/devserve/internal/registry"
	"github.com/conneroisu/devserve/internal/resolver"
	"github.com/conneroisu/devserve/internal/rewrite"
	"github.com/conneroisu/devserve/internal/watcher"
)

// Well-known endpoints under the served origin. The @devserve namespace
// keeps them out of the way of source-tree paths.
const (
	runtimePath = "/@devserve/client.js"
	envPath     = "/@devserve/env.js"
	socketPath  = "/@devserve/ws"
)

// Client represents a connected websocket client.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *DevServer
}

// UpdateMessage is the wire frame pushed to browsers on a file change.
type UpdateMessage struct {
	Type      string `json:"type"`
	Path      string `json:"path"`
	Timestamp int64  `json:"timestamp"`
}

// DevServer serves a source tree with on-the-fly transpilation and hot
// updates. All mutable state is owned by the instance so multiple servers
// can coexist in one process.
type DevServer struct {
	config   *config.Config
	log      *logging.Logger
	resolver *resolver.Resolver
	rewriter *rewrite.Rewriter
	registry *registry.ModuleRegistry
	watcher  *watcher.FileWatcher

	proxyRules  []ProxyRule
	proxyClient *http.Client
	envScript   []byte // nil when env exposure is disabled
	runtimeJS   []byte

	httpServer  *http.Server
	serverMutex sync.RWMutex

	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex
	broadcast    chan []byte
	register     chan *Client
	unregister   chan *websocket.Conn
	hubDone      chan struct{}

	shutdownOnce sync.Once
}

// New creates a dev server from a validated configuration.
func New(cfg *config.Config, logger *logging.Logger) (*DevServer, error) {
	if logger == nil {
		logger = logging.New(logging.Config{Silent: cfg.Server.Silent})
	}

	if err := watcher.Validate(cfg.Server.Root); err != nil {
		return nil, err
	}

	fileWatcher, err := watcher.New(time.Duration(cfg.Watch.DebounceMs) * time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	proxyRules, err := ParseProxyRules(cfg.Proxy)
	if err != nil {
		return nil, err
	}

	res := resolver.New(cfg.Server.Root)

	s := &DevServer{
		config:      cfg,
		log:         logger.WithComponent("server"),
		resolver:    res,
		rewriter:    rewrite.New(res, cfg.Server.Base),
		registry:    registry.NewModuleRegistry(),
		watcher:     fileWatcher,
		proxyRules:  proxyRules,
		proxyClient: &http.Client{},
		clients:     make(map[*websocket.Conn]*Client),
		broadcast:   make(chan []byte, 16),
		register:    make(chan *Client),
		unregister:  make(chan *websocket.Conn),
		hubDone:     make(chan struct{}),
	}

	if cfg.Env.Prefix != "" {
		s.envScript = buildEnvScript(LoadEnv(cfg.Server.Root, cfg.Env.Prefix))
	}
	s.runtimeJS = s.renderRuntime()

	return s, nil
}

// Start wires up the watcher and websocket hub and serves until the listener
// fails or the server is shut down.
func (s *DevServer) Start(ctx context.Context) error {
	s.setupFileWatcher(ctx)

	go s.runWebSocketHub(ctx)

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	if s.config.Server.Open {
		go s.openBrowser(fmt.Sprintf("http://%s%s/", addr, s.config.Server.Base))
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Handler returns the complete request handler, including middleware.
// Exposed so tests can drive the router without binding a port.
func (s *DevServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handleRequest))
}

func (s *DevServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Per-request errors never take down the process: anything a
		// handler fails to catch becomes a plain 500.
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error(fmt.Errorf("%v", rec), "handler panic", "path", r.URL.Path)
				http.Error(w, fmt.Sprintf("%v", rec), http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *DevServer) setupFileWatcher(ctx context.Context) {
	s.watcher.AddFilter(watcher.IgnoreFilter(s.config.Watch.Ignore))
	s.watcher.AddHandler(s.handleFileChanges)

	if err := s.watcher.AddRecursive(s.config.Server.Root); err != nil {
		s.log.Error(err, "watching served root", "root", s.config.Server.Root)
	}
	if err := s.watcher.Start(ctx); err != nil {
		s.log.Error(err, "starting file watcher")
	}
}

// handleFileChanges normalizes watcher events to server-relative URLs,
// invalidates registry entries, and broadcasts update notifications. The
// broadcast is sent only after the invalidation has completed.
func (s *DevServer) handleFileChanges(events []watcher.ChangeEvent) error {
	for _, event := range events {
		rel, err := filepath.Rel(s.config.Server.Root, event.Path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		urlPath := "/" + filepath.ToSlash(rel)

		s.registry.Invalidate(urlPath)
		timestamp := s.registry.NextTimestamp(urlPath)

		message, err := json.Marshal(UpdateMessage{
			Type:      "update",
			Path:      urlPath,
			Timestamp: timestamp,
		})
		if err != nil {
			s.log.Error(err, "marshaling update message", "path", urlPath)
			continue
		}

		s.log.Info("file changed", "path", urlPath, "event", event.Type.String())
		s.broadcast <- message
	}
	return nil
}

// logicalPath strips the configured base path from a request path. ok is
// false when a base is configured and the request falls outside it.
func (s *DevServer) logicalPath(requestPath string) (string, bool) {
	base := s.config.Server.Base
	if base == "" {
		return requestPath, true
	}
	if requestPath == base || requestPath == base+"/" {
		return "/", true
	}
	if strings.HasPrefix(requestPath, base+"/") {
		return strings.TrimPrefix(requestPath, base), true
	}
	return requestPath, false
}

func (s *DevServer) openBrowser(url string) {
	time.Sleep(100 * time.Millisecond) // give the listener time to come up

	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform")
	}

	if err != nil {
		s.log.Warn("failed to open browser", "error", err)
	}
}

// Registry exposes the module registry for inspection.
func (s *DevServer) Registry() *registry.ModuleRegistry {
	return s.registry
}

// Shutdown tears the server down in order: stop the watcher so no more
// events are emitted, close every client connection, then close the HTTP
// listener so no new connections arrive during teardown.
func (s *DevServer) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.log.Info("shutting down")

		if s.watcher != nil {
			if err := s.watcher.Stop(); err != nil {
				s.log.Error(err, "stopping watcher")
			}
		}

		s.clientsMutex.Lock()
		for conn, client := range s.clients {
			close(client.send)
			conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		s.clients = make(map[*websocket.Conn]*Client)
		s.clientsMutex.Unlock()

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}
