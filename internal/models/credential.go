package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Credential is one pre-provisioned agent identity in the secret pool.
// Records are created in bulk by the importer with Assigned=false and are
// claimed exactly once by the registration flow; they are never deleted.
type Credential struct {
	ID          string     `json:"id"` // normalized agent name, unique key
	AgentName   string     `json:"agent_name"`
	Secret      string     `json:"-"` // doubles as the login password, shown once
	LoginHandle string     `json:"login_handle"`
	Assigned    bool       `json:"assigned"`
	AssignedTo  *uuid.UUID `json:"assigned_to,omitempty"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// PendingOwner marks a credential claimed inside the transaction but not yet
// bound to a provisioned identity. Finalized to the real identity key after
// account creation succeeds.
var PendingOwner = uuid.Nil

// NormalizeID maps an agent name onto a document-safe unique key: upper case
// with every non-alphanumeric run replaced by underscores.
func NormalizeID(agentName string) string {
	upper := strings.ToUpper(agentName)
	return strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, upper)
}

// DeriveHandle builds the hidden login handle for an agent name. Never shown
// to the user; exists only to satisfy the identity provider's account shape.
func DeriveHandle(agentName string) string {
	return strings.ToLower(agentName) + "@sekretos.club"
}
