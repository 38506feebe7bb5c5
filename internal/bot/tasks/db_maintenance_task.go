package tasks

import (
	"context"
	"fmt"
	"time"
)

const maintenanceTimeout = 10 * time.Minute

// newDBMaintenanceTask creates the task that runs store housekeeping.
func newDBMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", DBMaintenanceTask, "driver", deps.Config.Database.Driver)

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting scheduled database maintenance task...")
		startTime := time.Now()

		ctx, cancel := context.WithTimeout(ctx, maintenanceTimeout)
		defer cancel()

		err := deps.Store.RunMaintenance(ctx)
		duration := time.Since(startTime)
		if err != nil {
			log.ErrorContext(ctx, "Database maintenance task failed", "error", err, "duration", duration)
			return fmt.Errorf("database maintenance failed: %w", err)
		}

		log.InfoContext(ctx, "Scheduled database maintenance task completed successfully", "duration", duration)
		return nil
	}
}
