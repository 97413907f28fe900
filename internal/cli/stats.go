package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print claim registry totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, store, err := a.openStore()
			if err != nil {
				return err
			}
			defer a.closeDB(db)

			stats, err := store.GetStats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "claims:     %d\n", stats.Claims)
			fmt.Fprintf(out, "instances:  %d\n", stats.Instances)
			fmt.Fprintf(out, "unassessed: %d\n", stats.Unassessed)
			return nil
		},
	}
}
