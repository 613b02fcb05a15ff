// Package server owns the HTTP surface: route table, timeouts, TLS and
// graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"smtp-relay/internal/common/logging"
	"smtp-relay/internal/config"
	"smtp-relay/internal/handlers"
)

// Server wraps the HTTP server with its route table
type Server struct {
	srv     *http.Server
	tlsCert string
	tlsKey  string
	logger  logging.Logger
}

// NewRouter builds the admin API route table
func NewRouter(h *handlers.Handlers) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/providers", h.GetProviders).Methods("GET")
	api.HandleFunc("/settings", h.GetSettings).Methods("GET")
	api.HandleFunc("/settings", h.UpdateSettings).Methods("PUT")
	api.HandleFunc("/oauth/status", h.OAuthStatus).Methods("GET")
	api.HandleFunc("/oauth/{provider}/connect", h.OAuthConnect).Methods("GET")
	api.HandleFunc("/oauth/callback", h.OAuthCallback).Methods("GET")
	api.HandleFunc("/oauth/disconnect", h.OAuthDisconnect).Methods("POST")
	api.HandleFunc("/mail/test", h.SendTestMail).Methods("POST")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")

	return router
}

// New creates a server for the given handlers and configuration
func New(h *handlers.Handlers, cfg *config.Config, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Server{
		srv: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      NewRouter(h),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		tlsCert: cfg.TLSCert,
		tlsKey:  cfg.TLSKey,
		logger:  logger,
	}
}

// Start begins serving in a background goroutine
func (s *Server) Start() {
	if s.tlsCert != "" && s.tlsKey != "" {
		s.srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		s.logger.Info("Starting HTTPS server", logging.String("addr", s.srv.Addr))
		go func() {
			if err := s.srv.ListenAndServeTLS(s.tlsCert, s.tlsKey); err != nil && err != http.ErrServerClosed {
				s.logger.Error("HTTPS server stopped", err)
			}
		}()
		return
	}

	s.logger.Info("Starting HTTP server", logging.String("addr", s.srv.Addr))
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server stopped", err)
		}
	}()
}

// Shutdown gracefully drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
