// Package registration converts a validated challenge success into a durable
// identity bound to exactly one previously unassigned pool credential.
//
// The flow trusts its caller: riddle verification happens before Register is
// invoked. Mutual exclusion against concurrent registrants lives entirely in
// the store's claim transaction; every other step assumes the race is
// already settled.
package registration

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helpmh2023/sekretos-hunt-quest/internal/metrics"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/models"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/rank"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/store"
)

// ErrIdentityProvision is returned when account creation fails after a
// successful claim. The claimed credential is released back to the pool.
var ErrIdentityProvision = errors.New("identity provisioning failed")

// StartingPoints is the score every new agent begins with.
const StartingPoints = 100

// maxClaimAttempts bounds retries when a candidate is claimed by a
// concurrent registrant between selection and the claim transaction.
const maxClaimAttempts = 3

// CredentialStore is the subset of the data store the flow needs.
type CredentialStore interface {
	PickUnassigned(ctx context.Context) (*models.Credential, error)
	ClaimCredential(ctx context.Context, id string) (*models.Credential, error)
	ReleaseCredential(ctx context.Context, id string) error
	FinalizeOwner(ctx context.Context, id string, owner uuid.UUID) error
	CreateProfile(ctx context.Context, profile *models.Profile) error
}

// IdentityProvider provisions an account for a claimed credential.
type IdentityProvider interface {
	CreateAccount(ctx context.Context, handle, secret string) (uuid.UUID, error)
}

// Result is what a successful registration exposes: the credential the new
// agent logs in with, shown to the user exactly once.
type Result struct {
	AgentName string    `json:"agent_name"`
	Secret    string    `json:"secret"`
	Identity  uuid.UUID `json:"identity"`
}

// Registrar orchestrates the secret-pool registration flow.
type Registrar struct {
	store    CredentialStore
	identity IdentityProvider
	logger   zerolog.Logger
}

// NewRegistrar creates a registrar over the given store and identity
// provider.
func NewRegistrar(store CredentialStore, identity IdentityProvider, logger zerolog.Logger) *Registrar {
	return &Registrar{store: store, identity: identity, logger: logger}
}

// Register runs the five-step flow: pick a candidate, claim it atomically,
// provision an identity, materialize the profile, finalize ownership.
//
// A lost claim race retries with a fresh candidate up to maxClaimAttempts
// before surfacing the failure. Errors: store.ErrPoolExhausted,
// store.ErrAlreadyClaimed (after retries), store.ErrRecordVanished,
// ErrIdentityProvision.
func (r *Registrar) Register(ctx context.Context) (*Result, error) {
	var claimed *models.Credential

	for attempt := 1; ; attempt++ {
		candidate, err := r.store.PickUnassigned(ctx)
		if err != nil {
			return nil, err
		}

		claimed, err = r.store.ClaimCredential(ctx, candidate.ID)
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrAlreadyClaimed) && attempt < maxClaimAttempts {
			metrics.ClaimRetries.Inc()
			r.logger.Debug().
				Str("credential", candidate.ID).
				Int("attempt", attempt).
				Msg("claim lost to concurrent registrant, retrying")
			continue
		}
		return nil, err
	}

	identity, err := r.identity.CreateAccount(ctx, claimed.LoginHandle, claimed.Secret)
	if err != nil {
		// Compensate: return the claimed record to the pool so it is not
		// stranded assigned without a matching identity.
		if relErr := r.store.ReleaseCredential(ctx, claimed.ID); relErr != nil {
			r.logger.Error().Err(relErr).
				Str("credential", claimed.ID).
				Msg("release after failed provisioning also failed; credential needs operator attention")
		}
		return nil, fmt.Errorf("%w: %v", ErrIdentityProvision, err)
	}

	profile := &models.Profile{
		ID:          identity,
		AgentName:   claimed.AgentName,
		Secret:      claimed.Secret,
		LoginHandle: claimed.LoginHandle,
		Points:      StartingPoints,
		// New agents start as INITIATE regardless of the band the starting
		// score falls in; the rank advances on the first score change.
		Rank: rank.Initiate,
	}
	if err := r.store.CreateProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("materialize profile: %w", err)
	}

	if err := r.store.FinalizeOwner(ctx, claimed.ID, identity); err != nil {
		// The profile and account exist; a stale pending marker only loses
		// the back-reference. Log and report success.
		r.logger.Warn().Err(err).
			Str("credential", claimed.ID).
			Str("identity", identity.String()).
			Msg("finalizing credential ownership failed")
	}

	return &Result{
		AgentName: claimed.AgentName,
		Secret:    claimed.Secret,
		Identity:  identity,
	}, nil
}
