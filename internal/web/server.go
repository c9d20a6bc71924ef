// Package web serves the device registry over a JSON API and streams hub
// events to websocket clients.
package web

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"thread-go-home/internal/automation"
	"thread-go-home/internal/hub"
)

// ServerOption configures the web server.
type ServerOption func(*Server)

// WithAPIKey enables API key authentication.
func WithAPIKey(key string) ServerOption {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithAllowedOrigins sets allowed CORS and WebSocket origin patterns.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithAutomation exposes the script engine and manager under /api/automations.
func WithAutomation(engine *automation.Engine, mgr *automation.Manager) ServerOption {
	return func(s *Server) {
		s.autoEngine = engine
		s.scriptMgr = mgr
	}
}

// WithVersion sets the application version reported by /api/health.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// Server is the HTTP API server.
type Server struct {
	hub            *hub.Hub
	wsHub          *WSHub
	logger         *slog.Logger
	mux            *http.ServeMux
	apiKey         string
	allowedOrigins []string
	scriptMgr      *automation.Manager
	autoEngine     *automation.Engine
	version        string
	started        time.Time
	wg             sync.WaitGroup
	unsubEvents    func()
}

// NewServer creates the API server and starts forwarding hub events to
// websocket clients.
func NewServer(h *hub.Hub, logger *slog.Logger, opts ...ServerOption) *Server {
	logger = logger.With("component", "web")
	s := &Server{
		hub:     h,
		logger:  logger,
		mux:     http.NewServeMux(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wsHub = NewWSHub(logger)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.wsHub.Run()
	}()
	s.unsubEvents = h.Events().OnAll(s.wsHub.Broadcast)

	s.routes()
	return s
}

// Stop shuts down the WebSocket hub and waits for its goroutine.
func (s *Server) Stop() {
	if s.unsubEvents != nil {
		s.unsubEvents()
	}
	s.wsHub.Stop()
	s.wg.Wait()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.HandleFunc("GET /api/devices", s.handleListDevices)
	s.mux.HandleFunc("GET /api/devices/{id}", s.handleGetDevice)
	s.mux.HandleFunc("PATCH /api/devices/{id}", s.handleRenameDevice)
	s.mux.HandleFunc("DELETE /api/devices/{id}", s.handleDeleteDevice)
	s.mux.HandleFunc("GET /api/devices/{id}/measurements", s.handleMeasurements)
	s.mux.HandleFunc("GET /api/devices/{id}/neighbors", s.handleNeighbors)
	s.mux.HandleFunc("GET /api/devices/{id}/connected", s.handleConnected)
	s.mux.HandleFunc("GET /api/devices/{id}/settings", s.handleSettings)
	s.mux.HandleFunc("POST /api/devices/{id}/settings", s.handlePushSetting)
	s.mux.HandleFunc("GET /api/setting-types", s.handleSettingTypes)

	s.mux.HandleFunc("GET /api/network", s.handleNetwork)
	s.mux.HandleFunc("GET /api/network/graph", s.handleNetworkGraph)
	s.mux.HandleFunc("GET /api/network/config", s.handleGetNetworkConfig)
	s.mux.HandleFunc("PUT /api/network/config", s.handlePutNetworkConfig)
	s.mux.HandleFunc("GET /api/network/joiner", s.handleGetJoiner)
	s.mux.HandleFunc("PUT /api/network/joiner", s.handlePutJoiner)

	s.mux.HandleFunc("GET /api/automations", s.handleListAutomations)
	s.mux.HandleFunc("GET /api/automations/{id}", s.handleGetAutomation)
	s.mux.HandleFunc("POST /api/automations", s.handleCreateAutomation)
	s.mux.HandleFunc("PUT /api/automations/{id}", s.handleUpdateAutomation)
	s.mux.HandleFunc("DELETE /api/automations/{id}", s.handleDeleteAutomation)
	s.mux.HandleFunc("POST /api/automations/{id}/toggle", s.handleToggleAutomation)
	s.mux.HandleFunc("POST /api/automations/{id}/run", s.handleRunAutomation)

	s.mux.HandleFunc("GET /api/ws", s.handleWS)
}

// ServeHTTP implements http.Handler, applying auth and CORS middleware.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// CORS: check Origin on mutating requests to prevent CSRF.
	if len(s.allowedOrigins) > 0 {
		if origin := r.Header.Get("Origin"); origin != "" {
			if r.Method == http.MethodOptions {
				if !s.isOriginAllowed(origin) {
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
				w.Header().Set("Access-Control-Max-Age", "3600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			if r.Method != http.MethodGet {
				if !s.isOriginAllowed(origin) {
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
		}
	}

	// Browsers cannot set headers on a websocket upgrade, and health checks
	// come from process supervisors without the key.
	if s.apiKey != "" && strings.HasPrefix(r.URL.Path, "/api/") &&
		r.URL.Path != "/api/ws" && r.URL.Path != "/api/health" {
		key := r.Header.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
	}
	s.mux.ServeHTTP(w, r)
}

// isOriginAllowed checks if the origin matches any allowed origin pattern.
func (s *Server) isOriginAllowed(origin string) bool {
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version,omitempty"`
	Uptime    string `json:"uptime"`
	Devices   int    `json:"devices"`
	Mesh      bool   `json:"mesh"`
	WSClients int    `json:"wsClients"`
	Scripts   int    `json:"scripts"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Version:   s.version,
		Uptime:    time.Since(s.started).Truncate(time.Second).String(),
		Devices:   s.hub.Registry().Len(),
		Mesh:      s.hub.MeshState() != nil,
		WSClients: s.wsHub.Count(),
	}
	if s.autoEngine != nil {
		resp.Scripts = s.autoEngine.Running()
	}
	s.writeJSON(w, http.StatusOK, resp)
}
