// cmd is the application entry point. The root command starts the HTTP
// server; "migrate" manages the schema.
package main

import (
	"fmt"
	"os"

	"github.com/Shivanand-hulikatti/event-registration/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags. Empty or zero means "use the environment".
	port      int
	logLevel  string
	logFormat string

	rootCmd = &cobra.Command{
		Use:   "eventreg",
		Short: "Event registration API",
		Long: `eventreg serves the event registration API: users, events and
capacity-checked registrations backed by PostgreSQL.

Configuration is read from the environment (PORT, DATABASE_URL, LOG_LEVEL, ...).
Flags override the environment.`,
		SilenceUsage: true,
		// Run the serve command by default if no subcommand is specified
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCmd.RunE(cmd, args)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().IntVar(&port, "port", 0, "HTTP listen port (default: $PORT or 8080)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, console)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	applyOverrides(&cfg)
	return cfg, nil
}

func applyOverrides(cfg *config.Config) {
	if port != 0 {
		cfg.Port = port
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
