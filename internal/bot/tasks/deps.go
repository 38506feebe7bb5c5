// Package tasks implements the scheduled tasks of LensBot and their registry.
package tasks

import (
	"log/slog"

	"github.com/edgard/lensbot/internal/config"
	"github.com/edgard/lensbot/internal/database"
)

// TaskDeps contains the dependencies shared by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
}
