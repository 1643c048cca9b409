// faultwatch deduplicates fault records from a host process, keeps
// per-fingerprint occurrence statistics, and sends throttled notifications
// with a summary of everything it held back.
//
// Usage:
//
//	myapp 2>&1 | faultwatch ingest
//	faultwatch ingest --input faults.jsonl
//	faultwatch ingest -- myapp --serve
//	faultwatch stats -o yaml
//	faultwatch find 5f2c9a
//	faultwatch status
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "faultwatch",
		Short: "Deduplicate faults and send throttled notifications",
		Long: `faultwatch reads structured fault records, groups them by fingerprint,
and keeps occurrence statistics in a store shared by every faultwatch process
on the host. The first occurrence of a fault is always notified; repeats
inside the throttle window are counted and reported in a summary when input
ends.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (TOML, or YAML by extension)")

	cmd.AddCommand(ingestCmd())
	cmd.AddCommand(statsCmd())
	cmd.AddCommand(findCmd())
	cmd.AddCommand(gcCmd())
	cmd.AddCommand(flushCmd())
	cmd.AddCommand(statusCmd())
	cmd.AddCommand(testNotifyCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "faultwatch", version)
		},
	}
}
