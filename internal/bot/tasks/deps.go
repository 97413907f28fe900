// Package tasks implements scheduled maintenance jobs for the claim registry.
package tasks

import (
	"log/slog"

	"github.com/checkmate/checkmate/internal/database"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
}
