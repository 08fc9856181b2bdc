package commands

import (
	"context"
	"errors"
	"fmt"
	"hwnotifier/lib/notify"
	"hwnotifier/lib/scrapers/cg"
	"hwnotifier/lib/serviceutil"
	"hwnotifier/services/hwnotifier"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Logs in once and prints the homework that is not known yet along with the history, without saving or notifying.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := mustLoadConfig()
		err := cfg.validate()
		if err != nil {
			serviceutil.Fatal("invalid config", err)
		}

		store, closeStore, err := cfg.Store.openStore(ctx)
		if err != nil {
			serviceutil.Fatal("failed to open known homework store", err)
		}
		defer closeStore()
		known, err := store.Load(ctx)
		if err != nil {
			closeStore()
			serviceutil.Fatal("failed to load known homework", err)
		}

		session, err := loginOnce(ctx, cfg)
		if err != nil {
			closeStore()
			serviceutil.Fatal("failed to login", err)
		}
		if session == nil {
			return
		}

		batch, err := hwnotifier.DetectNew(ctx, session, known, true)
		if err != nil {
			closeStore()
			serviceutil.Fatal("failed to read homework", err)
		}

		current := newTable()
		current.SetTitle("New homework")
		current.AppendHeader(table.Row{"Course", "Title", "Due", "Late", "Link"})
		for _, item := range batch.New {
			current.AppendRow(table.Row{item.Course, item.Title, item.Due, lateMark(item.Late), item.Href})
		}
		current.Render()

		history := newTable()
		history.SetTitle("History")
		history.AppendHeader(table.Row{"Course", "Title", "Link"})
		for _, item := range batch.History {
			history.AppendRow(table.Row{item.Course, item.Title, item.Href})
		}
		history.Render()

		if len(batch.Skipped) > 0 {
			fmt.Printf("could not read: %v\n", batch.Skipped)
		}
	},
}

// loginOnce retries EnsureSession until it yields a session. A nil session
// without an error means the context was canceled while waiting.
func loginOnce(ctx context.Context, cfg Config) (*cg.Client, error) {
	machine := cfg.machine(notify.LogNotifier{})
	for {
		res, err := machine.EnsureSession(ctx)
		if err == nil {
			return res.Session, nil
		}
		if ctx.Err() != nil || errors.Is(err, hwnotifier.ErrBadCredentials) {
			return nil, err
		}
		if !serviceutil.Sleep(ctx, res.Wait) {
			return nil, nil
		}
	}
}

func lateMark(late bool) string {
	if late {
		return "补交中"
	}
	return ""
}
