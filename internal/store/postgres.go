package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpmh2023/sekretos-hunt-quest/internal/models"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/rank"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const credentialColumns = `id, agent_name, secret, login_handle, assigned, assigned_to, assigned_at, created_at`

func scanCredential(row pgx.Row) (*models.Credential, error) {
	cred := &models.Credential{}
	err := row.Scan(
		&cred.ID,
		&cred.AgentName,
		&cred.Secret,
		&cred.LoginHandle,
		&cred.Assigned,
		&cred.AssignedTo,
		&cred.AssignedAt,
		&cred.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// PickUnassigned returns an arbitrary unassigned credential from the pool.
func (s *PostgresStore) PickUnassigned(ctx context.Context) (*models.Credential, error) {
	cred, err := scanCredential(s.pool.QueryRow(ctx, `
		SELECT `+credentialColumns+`
		FROM credentials WHERE assigned = FALSE
		LIMIT 1
	`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPoolExhausted
		}
		return nil, err
	}
	return cred, nil
}

// ClaimCredential atomically marks a credential as assigned. The record is
// re-read inside the transaction under a row lock, so of two concurrent
// claimants at most one succeeds; the other gets ErrAlreadyClaimed. The owner
// ref is set to the pending marker until FinalizeOwner.
func (s *PostgresStore) ClaimCredential(ctx context.Context, id string) (*models.Credential, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	cred, err := scanCredential(tx.QueryRow(ctx, `
		SELECT `+credentialColumns+`
		FROM credentials WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordVanished
		}
		return nil, err
	}
	if cred.Assigned {
		return nil, ErrAlreadyClaimed
	}

	pending := models.PendingOwner
	err = tx.QueryRow(ctx, `
		UPDATE credentials
		SET assigned = TRUE, assigned_to = $2, assigned_at = NOW()
		WHERE id = $1
		RETURNING assigned_at
	`, id, pending).Scan(&cred.AssignedAt)
	if err != nil {
		return nil, err
	}
	cred.Assigned = true
	cred.AssignedTo = &pending

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return cred, nil
}

// ReleaseCredential reverts a claim whose identity provisioning failed,
// returning the record to the pool.
func (s *PostgresStore) ReleaseCredential(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE credentials
		SET assigned = FALSE, assigned_to = NULL, assigned_at = NULL
		WHERE id = $1 AND assigned_to = $2
	`, id, models.PendingOwner)
	return err
}

// FinalizeOwner replaces the pending owner marker with the real identity key.
// Idempotent merge-style write.
func (s *PostgresStore) FinalizeOwner(ctx context.Context, id string, owner uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE credentials SET assigned_to = $2 WHERE id = $1
	`, id, owner)
	return err
}

// GetCredential retrieves a credential by its normalized identifier.
func (s *PostgresStore) GetCredential(ctx context.Context, id string) (*models.Credential, error) {
	cred, err := scanCredential(s.pool.QueryRow(ctx, `
		SELECT `+credentialColumns+` FROM credentials WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return cred, nil
}

// UpsertCredential writes a pool record keyed by normalized identifier.
// Existing records keep their assignment state; only name, secret, and handle
// are refreshed. Used by the bulk importer.
func (s *PostgresStore) UpsertCredential(ctx context.Context, cred *models.Credential) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO credentials (id, agent_name, secret, login_handle, assigned)
		VALUES ($1, $2, $3, $4, FALSE)
		ON CONFLICT (id) DO UPDATE
		SET agent_name = EXCLUDED.agent_name,
		    secret = EXCLUDED.secret,
		    login_handle = EXCLUDED.login_handle
	`, cred.ID, cred.AgentName, cred.Secret, cred.LoginHandle)
	return err
}

// CountUnassigned reports how many credentials remain claimable.
func (s *PostgresStore) CountUnassigned(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM credentials WHERE assigned = FALSE`).Scan(&count)
	return count, err
}

// CreateAccount provisions an identity account. Returns ErrHandleTaken on a
// handle collision.
func (s *PostgresStore) CreateAccount(ctx context.Context, handle, secret string) (*models.Account, error) {
	account := &models.Account{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, handle, secret)
		VALUES ($1, $2, $3)
		RETURNING id, handle, secret, created_at
	`, uuid.New(), handle, secret).Scan(
		&account.ID,
		&account.Handle,
		&account.Secret,
		&account.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrHandleTaken
		}
		return nil, err
	}
	return account, nil
}

// GetAccountByHandle retrieves an account by login handle.
func (s *PostgresStore) GetAccountByHandle(ctx context.Context, handle string) (*models.Account, error) {
	account := &models.Account{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, handle, secret, created_at FROM accounts WHERE handle = $1
	`, handle).Scan(
		&account.ID,
		&account.Handle,
		&account.Secret,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return account, nil
}

const profileColumns = `id, agent_name, secret, login_handle, points, rank, completed_missions, created_at`

func scanProfile(row pgx.Row) (*models.Profile, error) {
	profile := &models.Profile{}
	err := row.Scan(
		&profile.ID,
		&profile.AgentName,
		&profile.Secret,
		&profile.LoginHandle,
		&profile.Points,
		&profile.Rank,
		&profile.CompletedMissions,
		&profile.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// CreateProfile materializes an agent profile keyed by its identity.
func (s *PostgresStore) CreateProfile(ctx context.Context, profile *models.Profile) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO profiles (id, agent_name, secret, login_handle, points, rank)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, profile.ID, profile.AgentName, profile.Secret, profile.LoginHandle,
		profile.Points, profile.Rank).Scan(&profile.CreatedAt)
}

// GetProfile retrieves a profile by identity key.
func (s *PostgresStore) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	profile, err := scanProfile(s.pool.QueryRow(ctx, `
		SELECT `+profileColumns+` FROM profiles WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return profile, nil
}

// TopProfiles returns the leaderboard: profiles ordered by points descending.
func (s *PostgresStore) TopProfiles(ctx context.Context, limit int) ([]models.Profile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		ORDER BY points DESC, created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *profile)
	}
	return profiles, rows.Err()
}

// CompleteMission credits a mission reward once per (profile, mission) and
// recomputes the rank band. A repeat completion returns the profile unchanged.
func (s *PostgresStore) CompleteMission(ctx context.Context, id uuid.UUID, missionID string, reward int) (*models.Profile, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	profile, err := scanProfile(tx.QueryRow(ctx, `
		SELECT `+profileColumns+` FROM profiles WHERE id = $1 FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	for _, done := range profile.CompletedMissions {
		if done == missionID {
			return profile, tx.Commit(ctx)
		}
	}

	profile.Points += reward
	profile.Rank = rank.ForPoints(profile.Points)
	profile.CompletedMissions = append(profile.CompletedMissions, missionID)

	_, err = tx.Exec(ctx, `
		UPDATE profiles
		SET points = $2, rank = $3, completed_missions = array_append(completed_missions, $4)
		WHERE id = $1
	`, id, profile.Points, profile.Rank, missionID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return profile, nil
}

// CountProfiles reports the number of registered agents.
func (s *PostgresStore) CountProfiles(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&count)
	return count, err
}
