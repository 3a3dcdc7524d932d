// Command circlectl runs one-off operator tasks against the Listening Circle database.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lowtherloudspeakers/listening-circle/internal/config"
	"github.com/lowtherloudspeakers/listening-circle/internal/database"
	"github.com/lowtherloudspeakers/listening-circle/internal/logging"
	"github.com/lowtherloudspeakers/listening-circle/internal/mailer"
	"github.com/lowtherloudspeakers/listening-circle/internal/services"
	"github.com/lowtherloudspeakers/listening-circle/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "circlectl",
	Short:         "Operator tooling for the Listening Circle backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	logging.Setup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openAdmin connects to the configured database and builds the admin service the
// subcommands share. The returned func closes the connection.
func openAdmin() (*services.AdminService, func(), error) {
	cfg := config.Load()
	if err := database.Connect(cfg); err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := database.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	var mail mailer.Mailer = mailer.LogMailer{}
	if cfg.SMTPHost != "" {
		mail = mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.EmailFrom)
	}
	return services.NewAdminService(database.DB, cfg, mail), closeDB, nil
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (%s, %s)", version.Commit, version.Ref, version.GoVersion())
}
