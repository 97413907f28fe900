// Package cli implements the checkmate command line.
package cli

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/checkmate/checkmate/internal/config"
	"github.com/checkmate/checkmate/internal/database"
	"github.com/checkmate/checkmate/internal/logger"
	"github.com/checkmate/checkmate/internal/policy"
)

// app carries state shared by subcommands once the config is loaded.
type app struct {
	configPath string
	cfg        *config.Config
	log        *slog.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "checkmate",
		Short: "Checkmate - claim ingestion for messaging channels",
		Long: `Checkmate receives messages forwarded by users over WhatsApp and Telegram,
groups identical content under a single claim and records every delivery
as an instance of that claim for later assessment.

Configuration hierarchy (highest to lowest priority):
1. Environment variables (CHECKMATE_*)
2. Config file (--config)
3. Defaults`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "./config.yaml", "Path to configuration file")

	rootCmd.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newPolicyCmd(a),
		newResponsesCmd(a),
		newStatsCmd(a),
	)

	return rootCmd
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		slog.Error("Command failed", "error", err)
		return 1
	}
	return 0
}

// openStore opens the database, applying pending migrations.
func (a *app) openStore() (*sqlx.DB, database.Store, error) {
	db, err := database.Open(a.cfg.Database.Path, a.log)
	if err != nil {
		return nil, nil, err
	}
	return db, database.NewStore(db, a.log), nil
}

func (a *app) closeDB(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		a.log.Error("Failed to close database", "path", a.cfg.Database.Path, "error", err)
	}
}

// newPolicy builds the type policy with config fallbacks for responses.
func (a *app) newPolicy(store database.Store) *policy.Policy {
	return policy.New(store, a.log,
		policy.WithTTL(a.cfg.Policy.CacheTTL),
		policy.WithFallbackResponses(map[string]string{
			policy.ResponseUnsupportedType: a.cfg.Messages.UnsupportedType,
			policy.ResponseWelcome:         a.cfg.Messages.Welcome,
		}),
	)
}
