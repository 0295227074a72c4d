package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/db"
	"github.com/agentdeck/agentdeck/internal/config"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			slog.SetDefault(newLogger())
			return db.Migrate(cfg.PostgresURL())
		},
	}
}
