package store

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpmh2023/sekretos-hunt-quest/internal/models"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/rank"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func seedCredential(t *testing.T, s *SQLiteStore, name string) *models.Credential {
	t.Helper()
	cred := &models.Credential{
		ID:          models.NormalizeID(name),
		AgentName:   name,
		Secret:      "secret-" + name,
		LoginHandle: models.DeriveHandle(name),
	}
	require.NoError(t, s.UpsertCredential(context.Background(), cred))
	return cred
}

func TestSQLiteClaimCredential(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	seedCredential(t, s, "ORCA")

	picked, err := s.PickUnassigned(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ORCA", picked.ID)
	assert.False(t, picked.Assigned)

	claimed, err := s.ClaimCredential(ctx, picked.ID)
	require.NoError(t, err)
	assert.True(t, claimed.Assigned)
	require.NotNil(t, claimed.AssignedTo)
	assert.Equal(t, models.PendingOwner, *claimed.AssignedTo)
	assert.NotNil(t, claimed.AssignedAt)

	// The record is gone from the pool and a second claim loses.
	_, err = s.PickUnassigned(ctx)
	assert.ErrorIs(t, err, ErrPoolExhausted)
	_, err = s.ClaimCredential(ctx, picked.ID)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestSQLiteClaimUnknownCredential(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.ClaimCredential(context.Background(), "GHOST")
	assert.ErrorIs(t, err, ErrRecordVanished)
}

func TestSQLiteClaimConcurrent(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	seedCredential(t, s, "ORCA")

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.ClaimCredential(ctx, "ORCA")
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyClaimed)
		}
	}
	assert.Equal(t, 1, wins, "exactly one racer claims the record")
}

func TestSQLiteReleaseCredential(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	seedCredential(t, s, "ORCA")

	_, err := s.ClaimCredential(ctx, "ORCA")
	require.NoError(t, err)
	require.NoError(t, s.ReleaseCredential(ctx, "ORCA"))

	cred, err := s.GetCredential(ctx, "ORCA")
	require.NoError(t, err)
	assert.False(t, cred.Assigned)
	assert.Nil(t, cred.AssignedTo)

	// Releasable again only while pending: finalized claims stay put.
	_, err = s.ClaimCredential(ctx, "ORCA")
	require.NoError(t, err)
	owner := uuid.New()
	require.NoError(t, s.FinalizeOwner(ctx, "ORCA", owner))
	require.NoError(t, s.ReleaseCredential(ctx, "ORCA"))

	cred, err = s.GetCredential(ctx, "ORCA")
	require.NoError(t, err)
	assert.True(t, cred.Assigned)
	require.NotNil(t, cred.AssignedTo)
	assert.Equal(t, owner, *cred.AssignedTo)
}

func TestSQLiteUpsertCredentialKeepsAssignment(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	cred := seedCredential(t, s, "ORCA")

	_, err := s.ClaimCredential(ctx, cred.ID)
	require.NoError(t, err)

	// Re-import with a rotated secret: the assignment survives.
	cred.Secret = "rotated"
	require.NoError(t, s.UpsertCredential(ctx, cred))

	got, err := s.GetCredential(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, "rotated", got.Secret)
	assert.True(t, got.Assigned)
}

func TestSQLiteCountUnassigned(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	seedCredential(t, s, "ORCA")
	seedCredential(t, s, "LYNX")

	n, err := s.CountUnassigned(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = s.ClaimCredential(ctx, "ORCA")
	require.NoError(t, err)

	n, err = s.CountUnassigned(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSQLiteCreateAccountHandleTaken(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	account, err := s.CreateAccount(ctx, "orca@sekretos.club", "x")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, account.ID)

	_, err = s.CreateAccount(ctx, "orca@sekretos.club", "y")
	assert.ErrorIs(t, err, ErrHandleTaken)

	got, err := s.GetAccountByHandle(ctx, "orca@sekretos.club")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, account.ID, got.ID)
	assert.Equal(t, "x", got.Secret)

	missing, err := s.GetAccountByHandle(ctx, "nobody@sekretos.club")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteProfileRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	profile := &models.Profile{
		ID:          uuid.New(),
		AgentName:   "ORCA",
		Secret:      "secret-ORCA",
		LoginHandle: "orca@sekretos.club",
		Points:      100,
		Rank:        rank.Initiate,
	}
	require.NoError(t, s.CreateProfile(ctx, profile))

	got, err := s.GetProfile(ctx, profile.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, profile.AgentName, got.AgentName)
	assert.Equal(t, 100, got.Points)
	assert.Equal(t, rank.Initiate, got.Rank)
	assert.Empty(t, got.CompletedMissions)

	missing, err := s.GetProfile(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteCompleteMission(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	profile := &models.Profile{
		ID:        uuid.New(),
		AgentName: "ORCA",
		Secret:    "s",
		Points:    100,
		Rank:      rank.Initiate,
	}
	require.NoError(t, s.CreateProfile(ctx, profile))

	updated, err := s.CompleteMission(ctx, profile.ID, "first-contact", 450)
	require.NoError(t, err)
	assert.Equal(t, 550, updated.Points)
	assert.Equal(t, rank.Agent, updated.Rank)
	assert.Equal(t, []string{"first-contact"}, updated.CompletedMissions)

	// Repeating the mission changes nothing.
	again, err := s.CompleteMission(ctx, profile.ID, "first-contact", 450)
	require.NoError(t, err)
	assert.Equal(t, 550, again.Points)
	assert.Equal(t, []string{"first-contact"}, again.CompletedMissions)

	_, err = s.CompleteMission(ctx, uuid.New(), "first-contact", 450)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestSQLiteTopProfiles(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for _, p := range []struct {
		name   string
		points int
	}{
		{"ORCA", 100},
		{"LYNX", 900},
		{"RAVEN", 400},
	} {
		require.NoError(t, s.CreateProfile(ctx, &models.Profile{
			ID:        uuid.New(),
			AgentName: p.name,
			Secret:    "s",
			Points:    p.points,
			Rank:      rank.ForPoints(p.points),
		}))
	}

	top, err := s.TopProfiles(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "LYNX", top[0].AgentName)
	assert.Equal(t, "RAVEN", top[1].AgentName)

	n, err := s.CountProfiles(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
