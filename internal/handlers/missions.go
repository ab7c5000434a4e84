package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helpmh2023/sekretos-hunt-quest/internal/api/middleware"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/metrics"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/models"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/store"
)

// MissionsResponse is the static mission list.
type MissionsResponse struct {
	Missions []models.Mission `json:"missions"`
	Total    int              `json:"total"`
}

// Missions lists all missions.
func (h *Handler) Missions(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, MissionsResponse{
		Missions: h.content.Missions,
		Total:    len(h.content.Missions),
	})
}

// MilestonesResponse is the static milestone list.
type MilestonesResponse struct {
	Milestones []models.Milestone `json:"milestones"`
}

// Milestones lists all milestones.
func (h *Handler) Milestones(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, MilestonesResponse{Milestones: h.content.Milestones})
}

// CompleteMissionResponse returns the updated progression after crediting a
// mission.
type CompleteMissionResponse struct {
	MissionID string `json:"mission_id"`
	Points    int    `json:"points"`
	Rank      string `json:"rank"`
	Repeat    bool   `json:"repeat"` // true when the mission was already credited
}

// CompleteMission credits the reward for a mission to the authenticated
// agent. Idempotent: completing the same mission twice changes nothing.
func (h *Handler) CompleteMission(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	missionID := chi.URLParam(r, "id")
	mission, ok := h.content.Mission(missionID)
	if !ok {
		h.Error(w, http.StatusNotFound, "mission not found")
		return
	}

	before := len(session.Profile.CompletedMissions)
	profile, err := h.db.CompleteMission(r.Context(), session.Profile.ID, mission.ID, mission.Reward)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			h.Error(w, http.StatusNotFound, "agent profile not found")
			return
		}
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	repeat := len(profile.CompletedMissions) == before
	if !repeat {
		metrics.MissionsCompleted.Inc()
	}

	h.JSON(w, http.StatusOK, CompleteMissionResponse{
		MissionID: mission.ID,
		Points:    profile.Points,
		Rank:      profile.Rank,
		Repeat:    repeat,
	})
}
