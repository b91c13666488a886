package main

import (
	"fmt"

	"github.com/spf13/cobra"

	internalauth "inlineedit/internal/auth"
	"inlineedit/internal/config"
	"inlineedit/internal/store"
)

func newMemberCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage project memberships",
	}
	cmd.AddCommand(newMemberGrantCmd(cfg, jsonOutput))
	return cmd
}

func newMemberGrantCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "grant <login> <project> <permission>...",
		Short: "Grant project permissions to one user",
		Long:  "Grant project permissions to one user. Inline editing requires issues_inline_edit.",
		Args:  requireArgs(3, -1, "login, project and at least one permission are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			login, err := internalauth.NormalizeLogin(args[0])
			if err != nil {
				return err
			}
			permissions := args[2:]

			return withStore(cfg, func(st *store.Store) error {
				ctx := cmd.Context()
				user, err := st.GetUserByLogin(ctx, login)
				if err != nil {
					return err
				}
				if user == nil {
					return fmt.Errorf("user %s not found", login)
				}
				project, err := st.FindProject(ctx, args[1])
				if err != nil {
					return err
				}
				if err := st.GrantPermissions(ctx, user.ID, project.ID, permissions); err != nil {
					return err
				}

				if *jsonOutput {
					return writeJSON(map[string]any{
						"login":       user.Login,
						"project":     project.Identifier,
						"permissions": permissions,
					})
				}
				return writePlain("granted %v to %s on %s\n", permissions, user.Login, project.Identifier)
			})
		},
	}
}
