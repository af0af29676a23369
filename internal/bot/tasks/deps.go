// Package tasks implements the scheduled upkeep tasks of the generation archive.
package tasks

import (
	"log/slog"

	"github.com/edgard/aishitbot/internal/config"
	"github.com/edgard/aishitbot/internal/database"
)

// TaskDeps contains the dependencies of scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
}
