package tasks

import (
	"context"
	"fmt"
	"time"
)

// newCompactionTask rebuilds the database file and logs how much space the
// deleted and rewritten pages gave back.
func newCompactionTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", TaskCompaction)

	return func(ctx context.Context) error {
		start := time.Now()
		c, err := deps.Store.Compact(ctx)
		if err != nil {
			return fmt.Errorf("database compaction failed after %s: %w", time.Since(start), err)
		}

		log.InfoContext(ctx, "Database compacted",
			"pages_before", c.PagesBefore,
			"pages_after", c.PagesAfter,
			"reclaimed_bytes", c.ReclaimedBytes(),
			"duration", time.Since(start))
		return nil
	}
}
