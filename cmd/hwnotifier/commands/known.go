package commands

import (
	"hwnotifier/lib/serviceutil"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(knownCmd)
}

var knownCmd = &cobra.Command{
	Use:   "known",
	Short: "Lists the homework that was already notified.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := mustLoadConfig()

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

		t := newTable()
		t.AppendHeader(table.Row{"Course", "Title"})
		for _, key := range known.Keys() {
			course, title, _ := strings.Cut(key, "::")
			t.AppendRow(table.Row{course, title})
		}
		t.AppendFooter(table.Row{"Total", len(known)})
		t.Render()
	},
}
