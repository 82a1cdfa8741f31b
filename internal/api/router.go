// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api serves the HTTP control API of a running session.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/wingedpig/lattice/internal/api/handlers"
	"github.com/wingedpig/lattice/internal/api/middleware"
	"github.com/wingedpig/lattice/internal/api/version"
	"github.com/wingedpig/lattice/internal/events"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Host    string
	Port    int
	TLSCert string // Path to TLS certificate file
	TLSKey  string // Path to TLS private key file
}

// Dependencies holds all dependencies for API handlers.
type Dependencies struct {
	Session   handlers.SessionRunner
	EventBus  events.EventBus
	Snapshots handlers.SnapshotService // nil disables the snapshot routes
	Log       zerolog.Logger
	Version   string // Application version string
}

// NewRouter creates a new API router.
func NewRouter(deps Dependencies) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging(deps.Log))
	r.Use(middleware.Recovery(deps.Log))
	r.Use(middleware.CORS)
	r.Use(version.Middleware)

	api := r.PathPrefix("/api/v1").Subrouter()

	healthHandler := handlers.NewHealthHandler(deps.Version)
	api.HandleFunc("/health", healthHandler.Health).Methods("GET")

	triggerHandler := handlers.NewTriggerHandler(deps.Session, deps.EventBus)
	api.HandleFunc("/triggers", triggerHandler.List).Methods("GET")
	api.HandleFunc("/triggers", triggerHandler.Import).Methods("POST")
	api.HandleFunc("/triggers/enable", triggerHandler.Enable).Methods("POST")
	api.HandleFunc("/triggers/disable", triggerHandler.Disable).Methods("POST")
	api.HandleFunc("/triggers/kill", triggerHandler.Kill).Methods("POST")
	api.HandleFunc("/triggers/compile", triggerHandler.Compile).Methods("POST")
	api.HandleFunc("/triggers/temp", triggerHandler.Temp).Methods("POST")
	api.HandleFunc("/triggers/{id:[0-9]+}", triggerHandler.Get).Methods("GET")
	api.HandleFunc("/triggers/{id:[0-9]+}", triggerHandler.Delete).Methods("DELETE")

	sessionHandler := handlers.NewSessionHandler(deps.Session, deps.EventBus)
	api.HandleFunc("/session", sessionHandler.Stats).Methods("GET")
	api.HandleFunc("/lines", sessionHandler.Lines).Methods("POST")
	api.HandleFunc("/send", sessionHandler.Send).Methods("POST")

	if deps.EventBus != nil {
		eventHandler := handlers.NewEventHandler(deps.EventBus)
		api.HandleFunc("/events", eventHandler.History).Methods("GET")
		api.HandleFunc("/events/ws", eventHandler.WebSocket)
	}

	if deps.Snapshots != nil {
		snapshotHandler := handlers.NewSnapshotHandler(deps.Snapshots)
		api.HandleFunc("/snapshots", snapshotHandler.List).Methods("GET")
		api.HandleFunc("/snapshots", snapshotHandler.Create).Methods("POST")
		api.HandleFunc("/snapshots/{id}/restore", snapshotHandler.Restore).Methods("POST")
	}

	return r
}

// Server represents the API server.
type Server struct {
	router *mux.Router
	cfg    ServerConfig
	server *http.Server
	log    zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, deps Dependencies) *Server {
	s := &Server{
		router: NewRouter(deps),
		cfg:    cfg,
		log:    deps.Log,
	}
	s.server = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router returns the underlying router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// ListenAndServe starts the server and blocks until it is shut down. A
// clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	tlsEnabled, err := CheckTLSConfig(s.cfg.TLSCert, s.cfg.TLSKey)
	if err != nil {
		return fmt.Errorf("TLS configuration error: %w", err)
	}

	addr := s.server.Addr
	if tlsEnabled {
		s.log.Info().Str("addr", addr).Bool("tls", true).Msg("API server listening")
		err = s.server.ListenAndServeTLS(expandPath(s.cfg.TLSCert), expandPath(s.cfg.TLSKey))
	} else {
		s.log.Info().Str("addr", addr).Msg("API server listening")
		err = s.server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down API server")

	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	return s.server.Shutdown(shutdownCtx)
}
