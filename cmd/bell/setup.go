package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/bell/internal/credential"
	"github.com/nhle/bell/internal/model"
	"github.com/nhle/bell/internal/ui/setup"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure the widget with an interactive form",
	Long: `Runs a form collecting the subscriber, location, endpoints and widget key,
checks them against the service and writes the options file. The widget key
is stored in the system keyring, never in the file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := model.LoadOptions(cfgFile, nil)
		if err != nil {
			return err
		}

		deps := setup.Deps{ConfigPath: cfgFile}
		if vault, err := credential.Open(); err == nil {
			deps.Keys = vault
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v; the widget key will not be stored\n", err)
		}

		final, err := tea.NewProgram(setup.New(*opts, deps)).Run()
		if err != nil {
			return fmt.Errorf("tui error: %w", err)
		}
		if m, ok := final.(setup.Model); ok && m.Saved() {
			fmt.Fprintf(cmd.OutOrStdout(), "Saved to %s\n", cfgFile)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
