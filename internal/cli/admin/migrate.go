package admin

import (
	"fmt"

	"github.com/RyanNg1403/tieplm/internal/config"
	"github.com/RyanNg1403/tieplm/internal/database"
	"github.com/spf13/cobra"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply all pending migrations, or move n steps up or down with --steps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			steps, _ := cmd.Flags().GetInt("steps")

			status, err := database.Migrate(cfg.DatabaseURL, cfg.MigrationsDir, steps)
			if err != nil {
				return err
			}
			fmt.Printf("schema version %d\n", status.Version)
			return nil
		},
	}

	cmd.Flags().Int("steps", 0, "Number of migrations to apply; negative rolls back")

	return cmd
}
