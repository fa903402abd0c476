package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var noColor bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "lspclient",
		Short: "LSP client core for an editor's language-server integration",
		Long: `lspclient drives a language server child process over JSON-RPC,
tracking document versions and diagnostics the way an editor's LSP
integration layer would, without any editing surface of its own.`,
	}
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colorized output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serversCmd)
	rootCmd.AddCommand(attachCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
