package tasks

import (
	"context"
	"fmt"
)

// newClaimStatsTask logs registry totals so ingestion volume shows up in the logs.
func newClaimStatsTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", TaskClaimStats)

	return func(ctx context.Context) error {
		stats, err := deps.Store.GetStats(ctx)
		if err != nil {
			return fmt.Errorf("failed to read claim stats: %w", err)
		}

		log.InfoContext(ctx, "Claim registry stats",
			"claims", stats.Claims,
			"instances", stats.Instances,
			"unassessed", stats.Unassessed)
		return nil
	}
}
