package handlers

import (
	"net/http"
)

// StatsResponse represents platform statistics for the landing page.
type StatsResponse struct {
	TotalAgents      int64              `json:"total_agents"`
	SecretsRemaining int64              `json:"secrets_remaining"`
	ActiveTransmits  int                `json:"active_transmissions"`
	TopAgents        []LeaderboardEntry `json:"top_agents"`
}

// Stats returns platform statistics.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalAgents, err := h.db.CountProfiles(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count agents")
		return
	}

	remaining, err := h.db.CountUnassigned(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count credentials")
		return
	}

	visible, err := h.feed.Visible(ctx)
	if err != nil {
		// Non-fatal, continue with an empty feed count.
		visible = nil
	}

	profiles, err := h.db.TopProfiles(ctx, 3)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to get top agents")
		return
	}

	topAgents := make([]LeaderboardEntry, len(profiles))
	for i, p := range profiles {
		topAgents[i] = LeaderboardEntry{
			Place:             i + 1,
			AgentName:         p.AgentName,
			Points:            p.Points,
			Rank:              p.Rank,
			MissionsCompleted: len(p.CompletedMissions),
		}
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalAgents:      totalAgents,
		SecretsRemaining: remaining,
		ActiveTransmits:  len(visible),
		TopAgents:        topAgents,
	})
}
