package cmd

import (
	"fmt"
	"log"

	"github.com/chaperonebot/chaperone/chaperone"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the database and run migrations",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		if cfg.DatabaseType == "" {
			log.Fatal("database_type not set (must be one of: sqlite, postgres)")
		}
		if cfg.Database == "" {
			log.Fatal(
				"database not set (must be a valid database connection " +
					"string or sqlite file path)",
			)
		}
		if _, err := chaperone.CreateDB(
			ctx, cfg.DatabaseType, cfg.Database, nil,
		); err != nil {
			log.Fatalf("Error creating database: %v", err)
		}
		fmt.Fprintln(
			cmd.OutOrStdout(),
			"Initialization complete. You can now start the bot with the 'run' subcommand.",
		)
	},
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(initCmd)
}
