package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cmwaters/groupsync/pkg/group"
	"github.com/cmwaters/groupsync/syncstate"
)

// State is the facade surface served over HTTP.
type State interface {
	Members() []group.Member
	Feedback() []string
	RefreshMembers(context.Context) syncstate.Result[group.Member]
	RefreshFeedback(context.Context) syncstate.Result[string]
	AddMember(group.Member)
	AddFeedback(string)
	MembersStatus() syncstate.Status
	FeedbackStatus() syncstate.Status
}

type handler struct {
	state  State
	logger zerolog.Logger
}

// NewHandler exposes state to a UI process:
//
//	GET  /members           current members and status
//	POST /members           append a member locally
//	POST /members/refresh   refresh from the registry
//	GET  /feedback          current feedback and status
//	POST /feedback          append feedback locally
//	POST /feedback/refresh  refresh from the registry
//
// Refreshes always answer 200; a failure is part of the body.
func NewHandler(state State, logger zerolog.Logger) http.Handler {
	h := &handler{state: state, logger: logger}

	r := chi.NewRouter()
	r.Route("/members", func(r chi.Router) {
		r.Get("/", h.getMembers)
		r.Post("/", h.addMember)
		r.Post("/refresh", h.refreshMembers)
	})
	r.Route("/feedback", func(r chi.Router) {
		r.Get("/", h.getFeedback)
		r.Post("/", h.addFeedback)
		r.Post("/refresh", h.refreshFeedback)
	})
	return r
}

type collectionResponse[T any] struct {
	Items  []T            `json:"items"`
	Status statusResponse `json:"status"`
}

type statusResponse struct {
	Refreshed   bool   `json:"refreshed"`
	LastRefresh string `json:"last_refresh,omitempty"`
	LastFailure string `json:"last_failure,omitempty"`
}

type refreshResponse[T any] struct {
	Items          []T    `json:"items"`
	Updated        bool   `json:"updated"`
	Failure        string `json:"failure,omitempty"`
	Reason         string `json:"reason,omitempty"`
	DecodeFailures int    `json:"decode_failures"`
}

type feedbackRequest struct {
	Text string `json:"text"`
}

func (h *handler) getMembers(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, collectionResponse[group.Member]{
		Items:  h.state.Members(),
		Status: toStatus(h.state.MembersStatus()),
	})
}

func (h *handler) addMember(w http.ResponseWriter, r *http.Request) {
	var m group.Member
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := m.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	h.state.AddMember(m)
	h.getMembers(w, r)
}

func (h *handler) refreshMembers(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, toRefresh(h.state.RefreshMembers(r.Context())))
}

func (h *handler) getFeedback(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, collectionResponse[string]{
		Items:  h.state.Feedback(),
		Status: toStatus(h.state.FeedbackStatus()),
	})
}

func (h *handler) addFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	h.state.AddFeedback(req.Text)
	h.getFeedback(w, r)
}

func (h *handler) refreshFeedback(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, toRefresh(h.state.RefreshFeedback(r.Context())))
}

func toStatus(s syncstate.Status) statusResponse {
	resp := statusResponse{Refreshed: s.Refreshed}
	if !s.LastRefresh.IsZero() {
		resp.LastRefresh = s.LastRefresh.UTC().Format(time.RFC3339)
	}
	if s.LastFailure != nil {
		resp.LastFailure = s.LastFailure.Error()
	}
	return resp
}

func toRefresh[T any](res syncstate.Result[T]) refreshResponse[T] {
	resp := refreshResponse[T]{
		Items:          res.Items,
		Updated:        res.Updated,
		DecodeFailures: res.DecodeFailures,
	}
	if res.Failure != nil {
		resp.Failure = res.Failure.Error()
		resp.Reason = res.Failure.Reason.String()
	}
	return resp
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("failed to write response")
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
