// Package server provides the HTTP surface of the Atrium agent service:
// the streaming chat endpoint, chat history, service connections and the
// event-bus stream.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/atrium-ai/atrium/internal/history"
	"github.com/atrium-ai/atrium/internal/session"
	"github.com/atrium-ai/atrium/pkg/types"
)

// Server is the HTTP server.
type Server struct {
	config      *types.Config
	router      *chi.Mux
	httpSrv     *http.Server
	coordinator *session.Coordinator
	history     *history.Store
}

// New creates a server around the turn coordinator and history store.
func New(cfg *types.Config, coordinator *session.Coordinator, hist *history.Store) *Server {
	s := &Server{
		config:      cfg,
		router:      chi.NewRouter(),
		coordinator: coordinator,
		history:     hist,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	origins := s.config.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Get("/history", s.handleHistory)
		r.Get("/history/{sessionID}", s.handleSessionHistory)
		r.Delete("/history/{sessionID}", s.handleDeleteSession)
		r.Get("/connections", s.handleListConnections)
		r.Post("/connections/{service}", s.handleSetConnection)
		r.Get("/events", s.handleEvents)
	})
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start starts the HTTP server. Write timeout stays unset so SSE
// streams are not cut off.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:        fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
