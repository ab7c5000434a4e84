package handlers

import (
	"net/http"
	"strconv"
)

// LeaderboardEntry is one row of the leaderboard.
type LeaderboardEntry struct {
	Place             int    `json:"place"`
	AgentName         string `json:"agent_name"`
	Points            int    `json:"points"`
	Rank              string `json:"rank"`
	MissionsCompleted int    `json:"missions_completed"`
}

// LeaderboardResponse is the ranked agent list.
type LeaderboardResponse struct {
	Agents []LeaderboardEntry `json:"agents"`
}

// Leaderboard lists the top agents ordered by points descending.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > 100 {
		limit = 100
	}

	profiles, err := h.db.TopProfiles(r.Context(), limit)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	entries := make([]LeaderboardEntry, len(profiles))
	for i, p := range profiles {
		entries[i] = LeaderboardEntry{
			Place:             i + 1,
			AgentName:         p.AgentName,
			Points:            p.Points,
			Rank:              p.Rank,
			MissionsCompleted: len(p.CompletedMissions),
		}
	}

	h.JSON(w, http.StatusOK, LeaderboardResponse{Agents: entries})
}
