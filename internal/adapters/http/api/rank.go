// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
)

// RankDependencies defines the interface for rank operations.
type RankDependencies interface {
	Rank(ctx context.Context, name string) (Entry, error)
	EntryStats(ctx context.Context, name string) (repository.EntryStats, error)
}

// RankHandler handles rank requests.
type RankHandler struct {
	deps RankDependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// entryStatsResponse is the detailed shape for /rank/{name}?detail=1.
type entryStatsResponse struct {
	Rank         int       `json:"rank"`
	Name         string    `json:"name"`
	Score        int       `json:"score"`
	VoteCount    int       `json:"vote_count"`
	UniqueVoters int       `json:"unique_voters"`
	FirstVote    time.Time `json:"first_vote,omitempty"`
	LastVote     time.Time `json:"last_vote,omitempty"`
}

// HandleGetRank handles GET /rank/{name} requests. With ?detail=1 the
// response includes per-entry audit aggregates.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	// Extract path parameter after /rank/
	name := strings.TrimPrefix(r.URL.Path, "/rank/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	entry, err := h.deps.Rank(r.Context(), name)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	if r.URL.Query().Get("detail") == "" {
		writeJSON(w, http.StatusOK, entry)
		return
	}

	stats, err := h.deps.EntryStats(r.Context(), entry.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, entryStatsResponse{
		Rank:         entry.Rank,
		Name:         entry.Name,
		Score:        entry.Score,
		VoteCount:    stats.VoteCount,
		UniqueVoters: stats.UniqueVoters,
		FirstVote:    stats.FirstVote,
		LastVote:     stats.LastVote,
	})
}
