package commands

import (
	"errors"
	"hwnotifier/lib/notify"
	"hwnotifier/lib/serviceutil"
	"hwnotifier/services/hwnotifier"
	"log/slog"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Polls the portal until interrupted, notifying about every new homework once.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := mustLoadConfig()
		err := cfg.validate()
		if err != nil {
			serviceutil.Fatal("invalid config", err)
		}

		notifier, err := notify.FromConfig(cfg.Notify)
		if err != nil {
			serviceutil.Fatal("failed to create notifiers", err)
		}
		store, closeStore, err := cfg.Store.openStore(ctx)
		if err != nil {
			serviceutil.Fatal("failed to open known homework store", err)
		}
		defer closeStore()

		slog.Info(
			"polling portal",
			"portal", cfg.Portal.BaseUrl,
			"username", cfg.Credentials.Username,
			"interval", cfg.Schedule.intervals().Slow,
		)
		driver := hwnotifier.NewDriver(cfg.machine(notifier), store, notifier)
		err = driver.Run(ctx)
		if errors.Is(err, hwnotifier.ErrBadCredentials) {
			closeStore()
			serviceutil.Fatal("the portal rejected the credentials, fix them in the config and restart", err)
		}
		if err != nil {
			closeStore()
			serviceutil.Fatal("poller stopped", err)
		}
		slog.Info("shutting down")
	},
}
