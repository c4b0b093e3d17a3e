package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dgallion1/pagekeep/internal/journal"
)

const (
	defaultMovesLimit = 20
	maxMovesLimit     = 200
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"window":     s.cfg.StatsWindow.String(),
		"operations": s.stats.Snapshot(),
	})
}

func (s *Server) handleListMoves(w http.ResponseWriter, r *http.Request) {
	if s.moves == nil {
		jsonError(w, "move journal unavailable", http.StatusServiceUnavailable)
		return
	}

	limit := defaultMovesLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxMovesLimit)
	}

	runs, err := s.moves.List(r.Context(), limit)
	if err != nil {
		s.log.Error("list moves failed", "error", err)
		jsonError(w, "failed to list moves", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []journal.Run{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"moves": runs})
}
