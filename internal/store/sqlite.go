package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/helpmh2023/sekretos-hunt-quest/internal/models"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/rank"
)

// SQLiteStore handles SQLite database operations. Development fallback for
// running without PostgreSQL; implements the same DataStore interface.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/sekretos.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/sekretos.db"
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	// The claim transaction depends on serialized writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS credentials (
		id TEXT PRIMARY KEY,
		agent_name TEXT NOT NULL,
		secret TEXT NOT NULL,
		login_handle TEXT NOT NULL,
		assigned INTEGER NOT NULL DEFAULT 0,
		assigned_to TEXT,
		assigned_at DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		handle TEXT UNIQUE NOT NULL,
		secret TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		agent_name TEXT NOT NULL,
		secret TEXT NOT NULL,
		login_handle TEXT NOT NULL,
		points INTEGER NOT NULL DEFAULT 100,
		rank TEXT NOT NULL DEFAULT 'INITIATE',
		completed_missions TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_credentials_assigned ON credentials(assigned);
	CREATE INDEX IF NOT EXISTS idx_profiles_points ON profiles(points);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanCredential(row rowScanner) (*models.Credential, error) {
	cred := &models.Credential{}
	var assignedTo sql.NullString
	var assignedAt sql.NullTime
	err := row.Scan(
		&cred.ID,
		&cred.AgentName,
		&cred.Secret,
		&cred.LoginHandle,
		&cred.Assigned,
		&assignedTo,
		&assignedAt,
		&cred.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if assignedTo.Valid {
		owner, err := uuid.Parse(assignedTo.String)
		if err == nil {
			cred.AssignedTo = &owner
		}
	}
	if assignedAt.Valid {
		cred.AssignedAt = &assignedAt.Time
	}
	return cred, nil
}

const sqliteCredentialColumns = `id, agent_name, secret, login_handle, assigned, assigned_to, assigned_at, created_at`

// PickUnassigned returns an arbitrary unassigned credential from the pool.
func (s *SQLiteStore) PickUnassigned(ctx context.Context) (*models.Credential, error) {
	cred, err := s.scanCredential(s.db.QueryRowContext(ctx, `
		SELECT `+sqliteCredentialColumns+`
		FROM credentials WHERE assigned = 0
		LIMIT 1
	`))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPoolExhausted
		}
		return nil, err
	}
	return cred, nil
}

// ClaimCredential atomically marks a credential as assigned. SQLite has no
// row locks; the conditional UPDATE on assigned = 0 provides the
// compare-and-set, with RowsAffected distinguishing a lost race.
func (s *SQLiteStore) ClaimCredential(ctx context.Context, id string) (*models.Credential, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	cred, err := s.scanCredential(tx.QueryRowContext(ctx, `
		SELECT `+sqliteCredentialColumns+` FROM credentials WHERE id = ?
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordVanished
		}
		return nil, err
	}
	if cred.Assigned {
		return nil, ErrAlreadyClaimed
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE credentials
		SET assigned = 1, assigned_to = ?, assigned_at = ?
		WHERE id = ? AND assigned = 0
	`, models.PendingOwner.String(), now, id)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrAlreadyClaimed
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	pending := models.PendingOwner
	cred.Assigned = true
	cred.AssignedTo = &pending
	cred.AssignedAt = &now
	return cred, nil
}

// ReleaseCredential reverts a claim whose identity provisioning failed.
func (s *SQLiteStore) ReleaseCredential(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE credentials
		SET assigned = 0, assigned_to = NULL, assigned_at = NULL
		WHERE id = ? AND assigned_to = ?
	`, id, models.PendingOwner.String())
	return err
}

// FinalizeOwner replaces the pending owner marker with the real identity key.
func (s *SQLiteStore) FinalizeOwner(ctx context.Context, id string, owner uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE credentials SET assigned_to = ? WHERE id = ?
	`, owner.String(), id)
	return err
}

// GetCredential retrieves a credential by its normalized identifier.
func (s *SQLiteStore) GetCredential(ctx context.Context, id string) (*models.Credential, error) {
	cred, err := s.scanCredential(s.db.QueryRowContext(ctx, `
		SELECT `+sqliteCredentialColumns+` FROM credentials WHERE id = ?
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return cred, nil
}

// UpsertCredential writes a pool record keyed by normalized identifier.
func (s *SQLiteStore) UpsertCredential(ctx context.Context, cred *models.Credential) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (id, agent_name, secret, login_handle, assigned)
		VALUES (?, ?, ?, ?, 0)
		ON CONFLICT (id) DO UPDATE
		SET agent_name = excluded.agent_name,
		    secret = excluded.secret,
		    login_handle = excluded.login_handle
	`, cred.ID, cred.AgentName, cred.Secret, cred.LoginHandle)
	return err
}

// CountUnassigned reports how many credentials remain claimable.
func (s *SQLiteStore) CountUnassigned(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials WHERE assigned = 0`).Scan(&count)
	return count, err
}

// CreateAccount provisions an identity account.
func (s *SQLiteStore) CreateAccount(ctx context.Context, handle, secret string) (*models.Account, error) {
	id := uuid.New()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, handle, secret, created_at)
		VALUES (?, ?, ?, ?)
	`, id.String(), handle, secret, now)
	if err != nil {
		// mattn/go-sqlite3 reports unique violations as a generic error;
		// re-check the handle to classify it.
		existing, lookupErr := s.GetAccountByHandle(ctx, handle)
		if lookupErr == nil && existing != nil {
			return nil, ErrHandleTaken
		}
		return nil, err
	}

	return &models.Account{ID: id, Handle: handle, Secret: secret, CreatedAt: now}, nil
}

// GetAccountByHandle retrieves an account by login handle.
func (s *SQLiteStore) GetAccountByHandle(ctx context.Context, handle string) (*models.Account, error) {
	account := &models.Account{}
	var idStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, handle, secret, created_at FROM accounts WHERE handle = ?
	`, handle).Scan(&idStr, &account.Handle, &account.Secret, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	account.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *SQLiteStore) scanProfile(row rowScanner) (*models.Profile, error) {
	profile := &models.Profile{}
	var idStr, missionsJSON string
	err := row.Scan(
		&idStr,
		&profile.AgentName,
		&profile.Secret,
		&profile.LoginHandle,
		&profile.Points,
		&profile.Rank,
		&missionsJSON,
		&profile.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	profile.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(missionsJSON), &profile.CompletedMissions); err != nil {
		return nil, err
	}
	return profile, nil
}

const sqliteProfileColumns = `id, agent_name, secret, login_handle, points, rank, completed_missions, created_at`

// CreateProfile materializes an agent profile keyed by its identity.
func (s *SQLiteStore) CreateProfile(ctx context.Context, profile *models.Profile) error {
	now := time.Now().UTC()
	missions := profile.CompletedMissions
	if missions == nil {
		missions = []string{}
	}
	missionsJSON, err := json.Marshal(missions)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, agent_name, secret, login_handle, points, rank, completed_missions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, profile.ID.String(), profile.AgentName, profile.Secret, profile.LoginHandle,
		profile.Points, profile.Rank, string(missionsJSON), now)
	if err != nil {
		return err
	}
	profile.CreatedAt = now
	return nil
}

// GetProfile retrieves a profile by identity key.
func (s *SQLiteStore) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	profile, err := s.scanProfile(s.db.QueryRowContext(ctx, `
		SELECT `+sqliteProfileColumns+` FROM profiles WHERE id = ?
	`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return profile, nil
}

// TopProfiles returns the leaderboard: profiles ordered by points descending.
func (s *SQLiteStore) TopProfiles(ctx context.Context, limit int) ([]models.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteProfileColumns+`
		FROM profiles
		ORDER BY points DESC, created_at ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		profile, err := s.scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *profile)
	}
	return profiles, rows.Err()
}

// CompleteMission credits a mission reward once per (profile, mission) and
// recomputes the rank band.
func (s *SQLiteStore) CompleteMission(ctx context.Context, id uuid.UUID, missionID string, reward int) (*models.Profile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	profile, err := s.scanProfile(tx.QueryRowContext(ctx, `
		SELECT `+sqliteProfileColumns+` FROM profiles WHERE id = ?
	`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	for _, done := range profile.CompletedMissions {
		if done == missionID {
			return profile, tx.Commit()
		}
	}

	profile.Points += reward
	profile.Rank = rank.ForPoints(profile.Points)
	profile.CompletedMissions = append(profile.CompletedMissions, missionID)

	missionsJSON, err := json.Marshal(profile.CompletedMissions)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE profiles SET points = ?, rank = ?, completed_missions = ? WHERE id = ?
	`, profile.Points, profile.Rank, string(missionsJSON), id.String())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return profile, nil
}

// CountProfiles reports the number of registered agents.
func (s *SQLiteStore) CountProfiles(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&count)
	return count, err
}
