// Command racecore runs racing episodes headless or serves the environment
// to remote trainers over gRPC.
package main

import (
	"fmt"
	"os"

	"github.com/racerl/racecore/internal/config"
	"github.com/spf13/cobra"
)

// module defs - Version and BuildDate can be set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

const appName = "racecore"

var configDir string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Racing agent vehicle simulation core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configDir, "config-dir", "c", ".", "directory containing "+config.FileName)

	root.AddCommand(
		newRunCommand(),
		newServeCommand(),
		newRecordingsCommand(),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (built %s)\n", appName, Version, BuildDate)
		},
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
