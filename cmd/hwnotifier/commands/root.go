package commands

import (
	"context"
	"fmt"
	"hwnotifier/lib/restyutil"
	"hwnotifier/lib/scrapers/cg"
	"hwnotifier/lib/serviceutil"
	"hwnotifier/lib/telemetry"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "hwnotifier",
	Short: "hwnotifier polls the course portal and notifies you about new homework.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
		if !verbose {
			return
		}
		cfg := mustLoadConfig()
		out, err := restyutil.NewFilesystemOutput(filepath.Join(cfg.DevState, "resty", "portal"))
		if err != nil {
			serviceutil.Fatal("failed to create http dump output", err)
		}
		cg.SetRestyInstrumentOutput(out)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json5", "The config file, <name>.local.json5 next to it overrides it.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug messages and dump every http request to the dev state directory.")
}

// ExecuteContext returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
