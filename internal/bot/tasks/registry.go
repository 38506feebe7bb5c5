package tasks

import "context"

// ScheduledTaskFunc is the signature of every scheduled task. The context
// is cancelled when the scheduler stops.
type ScheduledTaskFunc func(ctx context.Context) error

// DBMaintenanceTask is the config key of the database maintenance task.
const DBMaintenanceTask = "db_maintenance"

// RegisterAllTasks returns every task keyed by the name used in the
// scheduler.tasks config section.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := make(map[string]ScheduledTaskFunc)

	tasks[DBMaintenanceTask] = newDBMaintenanceTask(deps)

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
