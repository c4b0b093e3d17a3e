package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dgallion1/pagekeep/internal/config"
	"github.com/dgallion1/pagekeep/internal/journal"
	"github.com/dgallion1/pagekeep/internal/move"
	"github.com/dgallion1/pagekeep/internal/page"
	"github.com/dgallion1/pagekeep/internal/stats"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MoveLister lists recorded move runs, newest first.
type MoveLister interface {
	List(ctx context.Context, limit int) ([]journal.Run, error)
}

// Server is the HTTP request layer for pagekeep.
type Server struct {
	router chi.Router
	site   *page.Site
	mover  *move.Engine
	moves  MoveLister
	stats  *stats.Recorder
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server. moves may be nil when
// no journal is configured.
func NewServer(site *page.Site, mover *move.Engine, moves MoveLister, st *stats.Recorder, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		site:  site,
		mover: mover,
		moves: moves,
		stats: st,
		log:   log,
		cfg:   cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Get("/api/stats", s.handleStats)
	r.Get("/api/moves", s.handleListMoves)

	// Everything else is a page path.
	r.Get("/*", s.handleGetPage)
	r.Post("/*", s.handlePostPage)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
