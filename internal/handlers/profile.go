package handlers

import (
	"net/http"

	"github.com/helpmh2023/sekretos-hunt-quest/internal/api/middleware"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/rank"
)

// ProfileResponse is the agent's own profile page data.
type ProfileResponse struct {
	ID                string  `json:"id"`
	AgentName         string  `json:"agent_name"`
	Rank              string  `json:"rank"`
	Points            int     `json:"points"`
	NextRank          string  `json:"next_rank,omitempty"`
	RankProgress      float64 `json:"rank_progress"` // percent through current band
	PointsToNext      int     `json:"points_to_next"`
	MissionsCompleted int     `json:"missions_completed"`
	Transmissions     int64   `json:"transmissions"`
	AgentSince        string  `json:"agent_since"`
}

// Profile returns the authenticated agent's profile with rank progression
// and activity stats.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	profile := session.Profile

	transmissions, err := h.redis.CountTransmissions(r.Context(), profile.ID.String())
	if err != nil {
		// Non-fatal, render the profile with a zero count.
		transmissions = 0
	}

	percent, toNext := rank.Progress(profile.Points)

	h.JSON(w, http.StatusOK, ProfileResponse{
		ID:                profile.ID.String(),
		AgentName:         profile.AgentName,
		Rank:              profile.Rank,
		Points:            profile.Points,
		NextRank:          rank.Next(profile.Rank),
		RankProgress:      percent,
		PointsToNext:      toNext,
		MissionsCompleted: len(profile.CompletedMissions),
		Transmissions:     transmissions,
		AgentSince:        profile.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}
