package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is a registered agent's durable profile, keyed by identity.
type Profile struct {
	ID                uuid.UUID `json:"id"`
	AgentName         string    `json:"agent_name"`
	Secret            string    `json:"-"` // stored verbatim for credential lookup
	LoginHandle       string    `json:"login_handle"`
	Points            int       `json:"points"`
	Rank              string    `json:"rank"`
	CompletedMissions []string  `json:"completed_missions,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
