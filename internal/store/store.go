package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/helpmh2023/sekretos-hunt-quest/internal/models"
)

// Claim and account errors shared by all DataStore implementations.
var (
	// ErrPoolExhausted means no unassigned credential remains in the pool.
	ErrPoolExhausted = errors.New("credential pool exhausted")
	// ErrAlreadyClaimed means a concurrent registrant claimed the candidate
	// first. Transient: retry with a fresh candidate.
	ErrAlreadyClaimed = errors.New("credential already claimed")
	// ErrRecordVanished means the candidate no longer existed when re-read
	// inside the claim transaction.
	ErrRecordVanished = errors.New("credential record vanished")
	// ErrHandleTaken means an account with the login handle already exists.
	ErrHandleTaken = errors.New("login handle already taken")
	// ErrProfileNotFound means no profile exists for the identity key.
	ErrProfileNotFound = errors.New("profile not found")
)

// DataStore defines the interface for persistent storage of the credential
// pool, agent profiles, and identity accounts. Both PostgresStore and
// SQLiteStore implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Credential pool
	PickUnassigned(ctx context.Context) (*models.Credential, error)
	ClaimCredential(ctx context.Context, id string) (*models.Credential, error)
	ReleaseCredential(ctx context.Context, id string) error
	FinalizeOwner(ctx context.Context, id string, owner uuid.UUID) error
	GetCredential(ctx context.Context, id string) (*models.Credential, error)
	UpsertCredential(ctx context.Context, cred *models.Credential) error
	CountUnassigned(ctx context.Context) (int64, error)

	// Identity accounts
	CreateAccount(ctx context.Context, handle, secret string) (*models.Account, error)
	GetAccountByHandle(ctx context.Context, handle string) (*models.Account, error)

	// Profiles
	CreateProfile(ctx context.Context, profile *models.Profile) error
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	TopProfiles(ctx context.Context, limit int) ([]models.Profile, error)
	CompleteMission(ctx context.Context, id uuid.UUID, missionID string, reward int) (*models.Profile, error)
	CountProfiles(ctx context.Context) (int64, error)
}
