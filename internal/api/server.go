// Package api provides the Cedar Pulpit REST API server.
package api

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/FocuswithJustin/CedarPulpit/core/provider"
	"github.com/FocuswithJustin/CedarPulpit/internal/logging"
	"github.com/FocuswithJustin/CedarPulpit/internal/server"
	"github.com/FocuswithJustin/CedarPulpit/internal/storage"
)

// Version is the API version reported by / and /health.
const Version = "0.3.0"

// Server is the REST API server. All state it serves lives in the
// injected stores; the server itself only routes and translates.
type Server struct {
	cfg       Config
	sermons   *storage.SermonStore
	cache     *storage.ServerCache
	selector  *provider.Selector
	hub       *Hub
	startTime time.Time
}

// NewServer wires the API server to its stores and content providers.
func NewServer(cfg Config, sermons *storage.SermonStore, cache *storage.ServerCache, selector *provider.Selector) *Server {
	return &Server{
		cfg:       cfg,
		sermons:   sermons,
		cache:     cache,
		selector:  selector,
		hub:       NewHub(),
		startTime: time.Now(),
	}
}

// Hub exposes the WebSocket hub so other components (the sync layer)
// can broadcast change events.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler builds the full middleware chain around the route mux.
func (s *Server) Handler() http.Handler {
	mux := s.routes()

	cspConfig := server.APICSPConfig()
	var handler http.Handler = server.SecurityHeadersWithCSP(cspConfig, mux)

	if s.cfg.Auth.Enabled {
		handler = AuthMiddleware(s.cfg.Auth, handler)
		logging.SecurityEvent("authentication_configured", "api",
			"enabled", true)
	} else {
		logging.SecurityEvent("authentication_configured", "api",
			"enabled", false,
			"note", "all requests allowed")
	}

	corsConfig := server.CORSConfig{
		AllowedOrigins: s.cfg.AllowedOrigins,
	}
	handler = server.CORSMiddlewareWithConfig(corsConfig, handler)

	return logging.CombinedMiddleware(handler)
}

// Start validates configuration, starts the WebSocket hub, and serves
// until the listener fails.
func (s *Server) Start() error {
	if err := ValidateAuthConfig(s.cfg.Auth); err != nil {
		return fmt.Errorf("invalid auth config: %w", err)
	}

	if s.cfg.TLS.Enabled {
		if s.cfg.TLS.CertFile == "" || s.cfg.TLS.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert or key file not specified")
		}
		if _, err := os.Stat(s.cfg.TLS.CertFile); err != nil {
			return fmt.Errorf("TLS cert file not found: %w", err)
		}
		if _, err := os.Stat(s.cfg.TLS.KeyFile); err != nil {
			return fmt.Errorf("TLS key file not found: %w", err)
		}
	}

	go s.hub.Run()

	protocol := "http"
	wsProtocol := "ws"
	if s.cfg.TLS.Enabled {
		protocol = "https"
		wsProtocol = "wss"
		logging.Info("TLS enabled", "cert_file", s.cfg.TLS.CertFile)
	} else {
		logging.Warn("TLS disabled - using plain HTTP",
			"recommendation", "consider using TLS or reverse proxy for production")
	}
	logging.ServerStartup("rest_api", protocol, s.cfg.Port,
		"websocket_protocol", wsProtocol)

	handler := s.Handler()
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	if s.cfg.TLS.Enabled {
		return http.ListenAndServeTLS(addr, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile, handler)
	}
	return http.ListenAndServe(addr, handler)
}

// routes configures all HTTP routes.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/sermons", s.handleSermons)
	mux.HandleFunc("/sermons/bulk", s.handleSermonBulk)
	mux.HandleFunc("/sermons/", s.handleSermonByID)
	mux.HandleFunc("/bible/", s.handleBible)
	mux.HandleFunc("/cache", s.handleCache)
	mux.HandleFunc("/cache/stats", s.handleCacheStats)
	mux.HandleFunc("/auth/token", s.handleAuthToken)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return mux
}
