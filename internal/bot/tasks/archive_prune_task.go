package tasks

import (
	"context"
	"fmt"
	"time"
)

// newArchivePruneTask creates the task that deletes generations older than
// archive.retention.
func newArchivePruneTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "archive_prune")

	return func(ctx context.Context) error {
		retention := deps.Config.Archive.Retention
		cutoff := time.Now().Add(-retention)
		log.InfoContext(ctx, "Pruning archived generations", "retention", retention, "cutoff", cutoff)

		removed, err := deps.Store.PruneGenerations(ctx, cutoff)
		if err != nil {
			log.ErrorContext(ctx, "Archive prune task failed", "error", err)
			return fmt.Errorf("archive prune failed: %w", err)
		}

		remaining, err := deps.Store.CountGenerations(ctx)
		if err != nil {
			log.WarnContext(ctx, "Could not count remaining generations", "error", err)
		}
		log.InfoContext(ctx, "Archive prune task completed", "removed", removed, "remaining", remaining)
		return nil
	}
}
