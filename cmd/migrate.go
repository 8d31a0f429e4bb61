package main

import (
	"fmt"

	"github.com/Shivanand-hulikatti/event-registration/internal/config"
	"github.com/Shivanand-hulikatti/event-registration/internal/database"
	"github.com/spf13/cobra"
)

var downSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := config.NewLogger(cfg.Logging)
		if err := database.MigrateUp(cfg.Database.DSN()); err != nil {
			return err
		}
		logger.Info().Msg("migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if downSteps <= 0 {
			return fmt.Errorf("--steps must be positive, got %d", downSteps)
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := config.NewLogger(cfg.Logging)
		if err := database.MigrateDown(cfg.Database.DSN(), downSteps); err != nil {
			return err
		}
		logger.Info().Int("steps", downSteps).Msg("migrations rolled back")
		return nil
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&downSteps, "steps", 1, "number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
}
