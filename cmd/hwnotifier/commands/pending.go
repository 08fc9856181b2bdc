package commands

import (
	"hwnotifier/lib/notify"
	"hwnotifier/lib/serviceutil"
	"hwnotifier/services/hwnotifier"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var pendingSend bool

func init() {
	pendingCmd.Flags().BoolVar(&pendingSend, "send", false, "also send the report through every configured notification channel")
	rootCmd.AddCommand(pendingCmd)
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Logs in once and reports the active assignments that are not submitted yet.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := mustLoadConfig()
		err := cfg.validate()
		if err != nil {
			serviceutil.Fatal("invalid config", err)
		}

		session, err := loginOnce(ctx, cfg)
		if err != nil {
			serviceutil.Fatal("failed to login", err)
		}
		if session == nil {
			return
		}

		pending, err := hwnotifier.CollectPending(ctx, session)
		if err != nil {
			serviceutil.Fatal("failed to read active assignments", err)
		}

		out := newTable()
		out.SetTitle("Unfinished homework")
		out.AppendHeader(table.Row{"Course", "Title", "Due", "Late", "Link"})
		for _, course := range pending {
			for _, a := range course.Assignments {
				out.AppendRow(table.Row{course.Course, a.Name, a.Due, lateMark(a.Late), a.Href})
			}
		}
		out.Render()

		if !pendingSend {
			return
		}
		notifier, err := notify.FromConfig(cfg.Notify)
		if err != nil {
			serviceutil.Fatal("failed to create notifiers", err)
		}
		err = notifier.Notify(ctx, hwnotifier.PendingNotification(cfg.Credentials.Username, pending))
		if err != nil {
			serviceutil.Fatal("failed to send report", err)
		}
		slog.Info("report sent", "courses", len(pending))
	},
}
