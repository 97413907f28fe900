package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/checkmate/checkmate/internal/database"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, _, err := a.openStore()
			if err != nil {
				return err
			}
			defer a.closeDB(db)

			version, err := database.SchemaVersion(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database %s is at schema version %d\n", a.cfg.Database.Path, version)
			return nil
		},
	}
}
