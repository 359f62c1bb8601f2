package server

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/securechat/internal/config"
)

// Server wires the gate, registry and hub to the HTTP handlers.
type Server struct {
	log      *slog.Logger
	gate     *Gate
	hub      *Hub
	origins  *originPolicy
	upgrader websocket.Upgrader

	mu  sync.RWMutex
	cfg config.Config
}

// New builds a server from cfg. Credentials are checked with verifier and
// connection events are reported to lifecycle.
func New(cfg config.Config, verifier CredentialVerifier, lifecycle LifecycleLogger, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	lifecycle = guardLifecycle(lifecycle)

	s := &Server{
		log:     log,
		gate:    NewGate(verifier, lifecycle),
		hub:     NewHub(NewRegistry(), lifecycle, log),
		origins: newOriginPolicy(cfg.Origins(), log),
		cfg:     cfg,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.check,
	}
	return s
}

// Hub returns the broadcast hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Config returns a copy of the active configuration.
func (s *Server) Config() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// ApplyConfig swaps the settings that can change at runtime: the origin
// allow-list and the limits given to newly admitted clients. Existing
// connections keep the limits they were admitted with.
func (s *Server) ApplyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}

	s.mu.Lock()
	s.cfg.AllowedOrigins = cfg.AllowedOrigins
	s.cfg.MaxMessageSize = cfg.MaxMessageSize
	s.cfg.SendBufferSize = cfg.SendBufferSize
	s.cfg.RateLimitBurst = cfg.RateLimitBurst
	s.cfg.RateLimitRefillInterval = cfg.RateLimitRefillInterval
	s.mu.Unlock()

	s.origins.set(cfg.Origins())
	s.log.Info("Applied configuration update",
		"origins", len(cfg.Origins()),
		"rate_limit_burst", cfg.RateLimitBurst,
		"max_message_size", cfg.MaxMessageSize)
}

// StartHub runs the hub loop in its own goroutine.
func (s *Server) StartHub() {
	go s.hub.Run()
	s.log.Info("Hub started and ready to manage WebSocket connections")
}

func (s *Server) clientOptions() ClientOptions {
	cfg := s.Config()
	return ClientOptions{
		SendBufferSize: cfg.SendBufferSize,
		MaxMessageSize: cfg.MaxMessageSize,
		RateLimit:      cfg.RateLimit(),
		Logger:         s.log,
	}
}
