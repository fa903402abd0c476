package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/lspclient/internal/cli/ui"
	"github.com/conduit-lang/lspclient/internal/config"
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List the language server programs configured in the environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		programs := cfg.ConfiguredPrograms()
		if len(programs) == 0 {
			fmt.Fprintln(os.Stdout, ui.ConfigError("no SM_EDITOR_*_PROGRAM environment variable is set", noColor))
			return nil
		}

		table := ui.NewTable(os.Stdout, []string{"NAME", "PROGRAM"}, &ui.TableOptions{NoColor: noColor})
		for _, p := range programs {
			table.AddRow(p.Name, p.Program)
		}
		table.Render()
		return nil
	},
}
