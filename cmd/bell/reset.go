package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/bell/internal/credential"
	"github.com/nhle/bell/internal/model"
	"github.com/nhle/bell/internal/store"
)

var forgetKey bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop persisted settings and this session's cached notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(stateDir, 0o755); err != nil {
			return fmt.Errorf("creating state directory: %w", err)
		}
		st, err := store.NewSQLiteStore(dbPath(), resolveSessionID())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.ClearAll(cmd.Context()); err != nil {
			return err
		}

		if forgetKey {
			opts, err := model.LoadOptions(cfgFile, nil)
			if err != nil {
				return err
			}
			vault, err := credential.Open()
			if err != nil {
				return err
			}
			if err := vault.DeleteWidgetKey(opts.SubscriberID); err != nil {
				return err
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Settings reset")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&forgetKey, "forget-key", false, "also remove the widget key from the keyring")
	rootCmd.AddCommand(resetCmd)
}
