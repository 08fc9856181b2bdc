package commands

import (
	"hwnotifier/lib/notify"
	"hwnotifier/lib/serviceutil"
	"log/slog"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(notifyTestCmd)
}

var notifyTestCmd = &cobra.Command{
	Use:   "notify-test",
	Short: "Sends a test notification through every configured channel.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		notifier, err := notify.FromConfig(cfg.Notify)
		if err != nil {
			serviceutil.Fatal("failed to create notifiers", err)
		}

		err = notifier.Notify(cmd.Context(), notify.Notification{
			Kind:    notify.KindInfo,
			Title:   "测试通知",
			Message: "如果你看到了这条消息，说明通知功能正常",
			Items:   []string{"示例课程: 示例作业"},
		})
		if err != nil {
			serviceutil.Fatal("failed to send test notification", err)
		}
		slog.Info("test notification sent", "channels", len(notifier))
	},
}
