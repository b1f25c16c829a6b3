package cmd

import (
	"fmt"
	"log/slog"

	"github.com/koopa0/assistant/db"
	"github.com/koopa0/assistant/internal/config"
)

// runMigrate applies pending database migrations and exits. The serve
// command migrates on startup as well; this command exists for running
// migrations separately, e.g. as a deploy step.
func runMigrate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	slog.Info("migrations applied")
	return nil
}
