package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is an identity-provider record. The handle is a derived, non-secret
// login identifier; the secret is the shared phrase from the credential pool.
type Account struct {
	ID        uuid.UUID `json:"id"`
	Handle    string    `json:"handle"`
	Secret    string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
