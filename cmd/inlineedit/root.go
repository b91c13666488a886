package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"inlineedit/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput bool
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "inlineedit",
		Short:         "Inlineedit serves spreadsheet-style bulk editing for issue lists",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), warning)
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newMigrateCmd(cfg, &jsonOutput),
		newConfigCmd(cfg),
		newUserCmd(cfg, &jsonOutput),
		newMemberCmd(cfg, &jsonOutput),
		newImportCmd(cfg, &jsonOutput),
		newBulkUpdateCmd(cfg, &jsonOutput),
	)

	return cmd
}
