package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lowtherloudspeakers/listening-circle/internal/config"
	"github.com/lowtherloudspeakers/listening-circle/internal/database"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := database.Connect(config.Load()); err != nil {
			return err
		}
		defer database.Close()

		if err := database.Migrate(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrated %d tables\n", len(database.Models()))
		return nil
	},
}
