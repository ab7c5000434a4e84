// Command import-secrets performs the one-off bulk import of pre-generated
// credential pairs into the pool. Run manually by an operator before opening
// registration.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helpmh2023/sekretos-hunt-quest/internal/config"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/models"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/store"
)

// secretPair is one entry of the input file.
type secretPair struct {
	AgentName   string `json:"AgentName"`
	AgentSecret string `json:"AgentSecret"`
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var filePath string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import-secrets",
		Short: "Bulk-import agent credential pairs into the secret pool",
		Long: "Reads a JSON file of {AgentName, AgentSecret} pairs and writes one " +
			"unassigned pool credential per pair. Idempotent: re-running refreshes " +
			"names and secrets without touching assignment state.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), filePath, dryRun)
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "agentSecrets.json", "path to the secrets JSON file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and validate without writing")

	return cmd
}

func runImport(ctx context.Context, filePath string, dryRun bool) error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read secrets file: %w", err)
	}

	var pairs []secretPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return fmt.Errorf("parse secrets file: %w", err)
	}
	if len(pairs) == 0 {
		return fmt.Errorf("no credential pairs in %s", filePath)
	}

	seen := make(map[string]string, len(pairs))
	creds := make([]*models.Credential, 0, len(pairs))
	for i, pair := range pairs {
		if pair.AgentName == "" || pair.AgentSecret == "" {
			return fmt.Errorf("entry %d: AgentName and AgentSecret are required", i)
		}
		id := models.NormalizeID(pair.AgentName)
		if prev, dup := seen[id]; dup {
			return fmt.Errorf("entry %d: %q collides with %q after normalization", i, pair.AgentName, prev)
		}
		seen[id] = pair.AgentName

		creds = append(creds, &models.Credential{
			ID:          id,
			AgentName:   pair.AgentName,
			Secret:      pair.AgentSecret,
			LoginHandle: models.DeriveHandle(pair.AgentName),
		})
	}

	if dryRun {
		logger.Info().Int("count", len(creds)).Msg("dry run: file is valid, nothing written")
		return nil
	}

	cfg := config.Load()

	var db store.DataStore
	if cfg.DatabaseURL != "" {
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		db = pgStore
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		db = sqliteStore
	}
	defer db.Close()

	for _, cred := range creds {
		if err := db.UpsertCredential(ctx, cred); err != nil {
			return fmt.Errorf("upsert %s: %w", cred.ID, err)
		}
	}

	logger.Info().Int("count", len(creds)).Msg("credential pool imported")
	return nil
}
