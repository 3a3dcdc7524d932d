package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminCreateCmd)

	adminCreateCmd.Flags().String("email", "", "Admin email address")
	adminCreateCmd.Flags().String("password", "", "Initial password")
	adminCreateCmd.Flags().String("name", "", "Display name")
	_ = adminCreateCmd.MarkFlagRequired("email")
	_ = adminCreateCmd.MarkFlagRequired("password")
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage admin accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an admin, or promote an existing account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		name, _ := cmd.Flags().GetString("name")
		admins, closeDB, err := openAdmin()
		if err != nil {
			return err
		}
		defer closeDB()

		user, err := admins.CreateAdmin(cmd.Context(), email, password, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "admin %s ready (id %s, code %s)\n", user.Email, user.ID, *user.RefCode)
		return nil
	},
}
