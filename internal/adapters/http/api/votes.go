// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/tally/internal/domain/model"
)

// VoteDependencies defines the interface for vote submission.
type VoteDependencies interface {
	Enqueue(ctx context.Context, e model.VoteEvent) bool
}

// VotesHandler handles vote submission requests.
type VotesHandler struct {
	deps VoteDependencies
}

// NewVotesHandler creates a new votes handler.
func NewVotesHandler(deps VoteDependencies) *VotesHandler {
	return &VotesHandler{deps: deps}
}

// voteRequest is the JSON shape for POST /votes.
type voteRequest struct {
	EventID     string `json:"event_id"`
	Label       string `json:"label"`
	Type        string `json:"type"`
	Voter       string `json:"voter"`
	Weight      int    `json:"weight"`
	AllowCreate bool   `json:"allow_create"`
}

func (v voteRequest) validate() error {
	if strings.TrimSpace(v.Label) == "" {
		return errors.New("missing label")
	}
	switch model.VoteType(v.Type) {
	case model.VoteNormal, model.VoteSuper, model.VoteUltra:
		if v.Weight != 0 {
			return errors.New("weight is only valid for manual votes")
		}
	case model.VoteManual:
		if v.Weight <= 0 {
			return errors.New("manual votes need a positive weight")
		}
	default:
		return errors.New("invalid type; want normal, super, ultra or manual")
	}
	return nil
}

// HandlePostVote handles POST /votes requests. The event id is the caller's
// idempotency key; omitting it makes every submission count separately.
func (h *VotesHandler) HandlePostVote(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_vote"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Type == "" {
		req.Type = string(model.VoteNormal)
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.EventID == "" {
		req.EventID = uuid.NewString()
	}

	e := model.VoteEvent{
		EventID:     req.EventID,
		RawLabel:    req.Label,
		Type:        model.VoteType(req.Type),
		Voter:       req.Voter,
		Weight:      req.Weight,
		ReceivedAt:  time.Now(),
		AllowCreate: req.AllowCreate,
	}
	if ok := h.deps.Enqueue(r.Context(), e); !ok {
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
