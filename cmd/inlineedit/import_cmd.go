package main

import (
	"github.com/spf13/cobra"

	"inlineedit/internal/config"
	"inlineedit/internal/store"
)

func newImportCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "import <fixture.yml>",
		Short: "Seed the database from a YAML fixture",
		Args:  requireArgs(1, 1, "fixture path is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			fixture, err := store.LoadFixtureFile(args[0])
			if err != nil {
				return err
			}

			return withStore(cfg, func(st *store.Store) error {
				summary, err := st.Seed(cmd.Context(), fixture)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(summary)
				}
				return writePlain("imported %d projects, %d users, %d custom fields, %d issues, %d time entries, %d queries\n",
					summary.Projects, summary.Users, summary.CustomFields, summary.Issues, summary.TimeEntries, summary.Queries)
			})
		},
	}
}
