package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lowtherloudspeakers/listening-circle/internal/dto"
	"github.com/lowtherloudspeakers/listening-circle/internal/services"
)

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersListCmd, usersApproveCmd)

	usersListCmd.Flags().Bool("pending", false, "Only show applicants awaiting approval")
	usersListCmd.Flags().Int("limit", 50, "Maximum rows to print")
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Inspect and approve members",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List members with their referral totals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		pending, _ := cmd.Flags().GetBool("pending")
		limit, _ := cmd.Flags().GetInt("limit")
		status := ""
		if pending {
			status = services.UserStatusPending
		}

		admins, closeDB, err := openAdmin()
		if err != nil {
			return err
		}
		defer closeDB()

		resp, err := admins.ListUsers(cmd.Context(), status, limit, 0)
		if err != nil {
			return err
		}
		return printUsers(cmd.OutOrStdout(), resp)
	},
}

var usersApproveCmd = &cobra.Command{
	Use:   "approve <email>",
	Short: "Approve an applicant and send their referral link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		admins, closeDB, err := openAdmin()
		if err != nil {
			return err
		}
		defer closeDB()

		user, err := admins.FindByEmail(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		user, err = admins.Approve(cmd.Context(), user.ID, uuid.Nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "approved %s with code %s\n", user.Email, *user.RefCode)
		return nil
	},
}

func printUsers(out io.Writer, resp *dto.ListUsersResponse) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EMAIL\tTIER\tSTATUS\tCODE\tCLICKS\tORDERS\tSALES\tEARNINGS")
	for _, u := range resp.Users {
		status := services.UserStatusPending
		if u.IsApproved {
			status = services.UserStatusApproved
		}
		code := "-"
		if u.RefCode != nil {
			code = *u.RefCode
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			u.Email, u.Tier, status, code, u.Clicks, u.Orders, u.TotalSales, u.Earnings)
	}
	fmt.Fprintf(w, "\n%d of %d shown\n", len(resp.Users), resp.Total)
	return w.Flush()
}
