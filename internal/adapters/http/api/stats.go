// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
)

// StatsDependencies defines the interface for service statistics.
type StatsDependencies interface {
	Stats(ctx context.Context) (repository.Stats, error)
	QueueLen(ctx context.Context) int
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	deps StatsDependencies
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(deps StatsDependencies) *StatsHandler {
	return &StatsHandler{deps: deps}
}

// statsResponse is the JSON shape for GET /stats.
type statsResponse struct {
	Entries     int       `json:"entries"`
	TotalScore  int       `json:"total_score"`
	VoteRecords int       `json:"vote_records"`
	Unresolved  int       `json:"unresolved"`
	QueueLength int       `json:"queue_length"`
	SyncCount   int       `json:"sync_count"`
	LastSync    time.Time `json:"last_sync,omitempty"`
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_stats"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	stats, err := h.deps.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Entries:     stats.Entries,
		TotalScore:  stats.TotalScore,
		VoteRecords: stats.Records,
		Unresolved:  stats.Unresolved,
		QueueLength: h.deps.QueueLen(r.Context()),
		SyncCount:   stats.SyncCount,
		LastSync:    stats.LastSync,
	})
}
