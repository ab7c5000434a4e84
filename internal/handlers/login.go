package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/helpmh2023/sekretos-hunt-quest/internal/api/middleware"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/identity"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/models"
)

// LoginRequest carries the agent name and secret phrase from the login form.
type LoginRequest struct {
	AgentName string `json:"agent_name"`
	Secret    string `json:"secret"`
}

// LoginResponse is an issued session.
type LoginResponse struct {
	Token     string `json:"token"`
	Identity  string `json:"identity"`
	AgentName string `json:"agent_name"`
	ExpiresAt int64  `json:"expires_at"`
}

// Login signs an agent in with name + secret phrase. The login handle is
// derived from the agent name server-side; users never see it.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.AgentName = strings.TrimSpace(req.AgentName)
	if req.AgentName == "" || req.Secret == "" {
		h.Error(w, http.StatusBadRequest, "agent_name and secret are required")
		return
	}

	session, err := h.identity.SignIn(r.Context(), models.DeriveHandle(req.AgentName), req.Secret)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			h.Error(w, http.StatusUnauthorized, "access denied")
			return
		}
		h.logger.Error().Err(err).Msg("sign-in failed")
		h.Error(w, http.StatusInternalServerError, "sign-in failed")
		return
	}

	profile, err := h.db.GetProfile(r.Context(), session.Identity)
	if err != nil || profile == nil {
		h.Error(w, http.StatusInternalServerError, "agent profile not found")
		return
	}

	h.JSON(w, http.StatusOK, LoginResponse{
		Token:     session.Token,
		Identity:  session.Identity.String(),
		AgentName: profile.AgentName,
		ExpiresAt: session.ExpiresAt.UnixMilli(),
	})
}

// Logout revokes the current session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.identity.SignOut(r.Context(), session.Claims.TokenID); err != nil {
		h.Error(w, http.StatusInternalServerError, "logout failed")
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}
