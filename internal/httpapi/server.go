// Package httpapi wires the thin HTTP adapters named in spec.md's component
// list - webhook receivers, the ASR protocol endpoint, the batch submit API,
// and a small status UI - onto internal/core's Orchestrator/BatchIngress/
// Store, following the chi router idiom of the teacher's internal/api
// package.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/timoverbrugghe/subgen-go/internal/core"
)

// PathMapping rewrites a media-server-reported path into the path subgen
// sees on disk, for the common case where the two run in different
// containers mounting the same library under different prefixes (§6).
type PathMapping struct {
	Enabled bool
	From    string
	To      string
}

// Apply rewrites path if it starts with the configured From prefix.
func (m PathMapping) Apply(path string) string {
	if !m.Enabled || m.From == "" || !strings.HasPrefix(path, m.From) {
		return path
	}
	return m.To + strings.TrimPrefix(path, m.From)
}

// WebhookConfig gates which webhook events are acted on, mirroring
// app/config.py's PROCESS_ADDED_MEDIA/PROCESS_MEDIA_ON_PLAY switches.
type WebhookConfig struct {
	ProcessAddedMedia bool
	ProcessOnPlay     bool
	SubtitleLanguage  string
	NotifyDownstream  bool
	ApplySkipConfig   bool
	PathMapping       PathMapping
}

// Deps is everything the HTTP adapters need, assembled once by cmd/serve.go
// and threaded through every router.
type Deps struct {
	Log          *zerolog.Logger
	Store        *core.Store
	Orchestrator *core.Orchestrator
	Batch        *core.BatchIngress
	Detector     *core.LanguageDetector
	Version      string
	Webhook      WebhookConfig
	SkipConfig   core.SkipConfig
	SourceName   string // emitted in the ASR protocol's Source response header
}

// Config holds the server's own bind/timeout settings, distinct from Deps'
// domain wiring.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	EnableCORS   bool
}

func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         9000,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // ASR/batch requests can run far longer than 15s
		EnableCORS:   true,
	}
}

// Server hosts the assembled chi router over a net.Listener, started and
// stopped explicitly by the caller (cmd/serve.go).
type Server struct {
	deps     *Deps
	router   chi.Router
	server   *http.Server
	listener net.Listener
	port     int
	log      *zerolog.Logger
	mu       sync.Mutex
}

func NewServer(cfg Config, deps *Deps) (*Server, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("httpapi: failed to bind %s: %w", addr, err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(loggerMiddleware(deps.Log))
	if cfg.EnableCORS {
		r.Use(corsMiddleware())
	}

	mountUI(r, deps)
	mountASR(r, deps)
	mountWebhooks(r, deps)
	mountBatch(r, deps)

	if deps.Log != nil {
		deps.Log.Info().Str("addr", addr).Int("port", port).Msg("httpapi: listening")
	}

	return &Server{
		deps:     deps,
		router:   r,
		listener: listener,
		port:     port,
		log:      deps.Log,
		server: &http.Server{
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}, nil
}

func (s *Server) Port() int { return s.port }

func (s *Server) Start() error {
	go func() {
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			if s.log != nil {
				s.log.Error().Err(err).Msg("httpapi: server error")
			}
		}
	}()
	return nil
}

func (s *Server) Shutdown() error {
	if s.log != nil {
		s.log.Debug().Msg("httpapi: shutting down")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("httpapi: shutdown failed: %w", err)
	}
	return nil
}

var logBlacklist = []string{"/webhook/status"}

func loggerMiddleware(log *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(wrapped, r)

			for _, s := range logBlacklist {
				if strings.HasSuffix(r.URL.Path, s) {
					return
				}
			}
			if log != nil {
				log.Trace().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", wrapped.Status()).
					Dur("duration", time.Since(start)).
					Str("remote", r.RemoteAddr).
					Msg("HTTP request")
			}
		})
	}
}

func corsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON writes v as a JSON response body with the given status code,
// the shared helper every adapter uses so error shapes stay consistent.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the structured-JSON-with-non-2xx-status failure shape
// required by §6's "User-visible failure behavior" note.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
