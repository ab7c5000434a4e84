package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// schema is idempotent; every statement guards on IF NOT EXISTS.
const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	id TEXT PRIMARY KEY,
	agent_name TEXT NOT NULL,
	secret TEXT NOT NULL,
	login_handle TEXT NOT NULL,
	assigned BOOLEAN NOT NULL DEFAULT FALSE,
	assigned_to UUID,
	assigned_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS accounts (
	id UUID PRIMARY KEY,
	handle TEXT UNIQUE NOT NULL,
	secret TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS profiles (
	id UUID PRIMARY KEY,
	agent_name TEXT NOT NULL,
	secret TEXT NOT NULL,
	login_handle TEXT NOT NULL,
	points INTEGER NOT NULL DEFAULT 100,
	rank TEXT NOT NULL DEFAULT 'INITIATE',
	completed_missions TEXT[] NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_credentials_assigned ON credentials(assigned);
CREATE INDEX IF NOT EXISTS idx_profiles_points ON profiles(points DESC);
`

// RunMigrations applies the schema to the PostgreSQL database.
func RunMigrations(databaseURL string) error {
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, schema)
	return err
}
