package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/helpmh2023/sekretos-hunt-quest/internal/metrics"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/registration"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/store"
)

// RiddleResponse is an issued registration challenge. The answer stays on the
// server, keyed by the one-time token.
type RiddleResponse struct {
	Token  string `json:"token"`
	Prompt string `json:"prompt"`
}

// Riddle issues a random registration challenge.
func (h *Handler) Riddle(w http.ResponseWriter, r *http.Request) {
	picked := h.riddles.Pick()
	token := uuid.New().String()

	if err := h.redis.PutChallenge(r.Context(), token, picked.ID); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to issue challenge")
		return
	}

	h.JSON(w, http.StatusOK, RiddleResponse{Token: token, Prompt: picked.Prompt})
}

// RegisterRequest carries the solved challenge.
type RegisterRequest struct {
	Token  string `json:"token"`
	Answer string `json:"answer"`
}

// RegisterResponse reveals the assigned credential. Shown exactly once; the
// secret doubles as the login password.
type RegisterResponse struct {
	AgentName string `json:"agent_name"`
	Secret    string `json:"secret"`
	Identity  string `json:"identity"`
}

// Register validates the riddle answer, then runs the secret-pool
// registration flow.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Token == "" || req.Answer == "" {
		h.Error(w, http.StatusBadRequest, "token and answer are required")
		return
	}

	// Consume the one-time challenge; a wrong answer burns the token and the
	// client requests a fresh riddle.
	riddleID, err := h.redis.TakeChallenge(r.Context(), req.Token)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to check challenge")
		return
	}
	if riddleID == "" {
		h.Error(w, http.StatusForbidden, "challenge expired or already used")
		return
	}
	if !h.riddles.Check(riddleID, req.Answer) {
		h.Error(w, http.StatusForbidden, "the decryption key is incorrect")
		return
	}

	result, err := h.registrar.Register(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrPoolExhausted):
			metrics.RegistrationFailures.WithLabelValues("pool_exhausted").Inc()
			h.Error(w, http.StatusConflict, "no agent credentials remain; contact an operator")
		case errors.Is(err, store.ErrAlreadyClaimed), errors.Is(err, store.ErrRecordVanished):
			metrics.RegistrationFailures.WithLabelValues("claim_race").Inc()
			h.Error(w, http.StatusServiceUnavailable, "registration contention, try again")
		case errors.Is(err, registration.ErrIdentityProvision):
			metrics.RegistrationFailures.WithLabelValues("provisioning").Inc()
			h.Error(w, http.StatusBadGateway, "identity provisioning failed, try again")
		default:
			metrics.RegistrationFailures.WithLabelValues("other").Inc()
			h.logger.Error().Err(err).Msg("registration failed")
			h.Error(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	metrics.AgentsRegistered.Inc()
	h.JSON(w, http.StatusCreated, RegisterResponse{
		AgentName: result.AgentName,
		Secret:    result.Secret,
		Identity:  result.Identity.String(),
	})
}
