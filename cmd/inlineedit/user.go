package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	internalauth "inlineedit/internal/auth"
	"inlineedit/internal/config"
	"inlineedit/internal/store"
)

func newUserCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users for browser and API authentication",
	}
	cmd.AddCommand(newUserAddCmd(cfg, jsonOutput))
	cmd.AddCommand(newUserAPIKeyCmd(cfg, jsonOutput))
	return cmd
}

func newUserAddCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		passwordStdin bool
		admin         bool
		withAPIKey    bool
		firstname     string
		lastname      string
		language      string
	)

	cmd := &cobra.Command{
		Use:   "add <login>",
		Short: "Create one user",
		Args:  requireArgs(1, 1, "login is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !passwordStdin {
				return fmt.Errorf("--password-stdin is required")
			}

			login, err := internalauth.NormalizeLogin(args[0])
			if err != nil {
				return err
			}

			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			passwordHash, err := internalauth.HashPassword(password)
			if err != nil {
				return err
			}

			var apiKey, apiKeyHash string
			if withAPIKey {
				apiKey = internalauth.GenerateAPIKey()
				apiKeyHash = internalauth.HashToken(apiKey)
			}

			return withStore(cfg, func(st *store.Store) error {
				created, err := st.CreateUser(cmd.Context(), store.NewUser{
					Login:        login,
					Firstname:    strings.TrimSpace(firstname),
					Lastname:     strings.TrimSpace(lastname),
					PasswordHash: passwordHash,
					APIKeyHash:   apiKeyHash,
					Admin:        admin,
					Language:     strings.TrimSpace(language),
				})
				if err != nil {
					return err
				}

				if *jsonOutput {
					payload := map[string]any{
						"id":    created.ID,
						"login": created.Login,
						"admin": created.Admin,
					}
					if apiKey != "" {
						payload["api_key"] = apiKey
					}
					return writeJSON(payload)
				}
				if err := writePlain("created user %s (%d)\n", created.Login, created.ID); err != nil {
					return err
				}
				if apiKey != "" {
					return writePlain("api key: %s\n", apiKey)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read password from stdin")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant administrator rights")
	cmd.Flags().BoolVar(&withAPIKey, "api-key", false, "generate an API key and print it once")
	cmd.Flags().StringVar(&firstname, "firstname", "", "first name")
	cmd.Flags().StringVar(&lastname, "lastname", "", "last name")
	cmd.Flags().StringVar(&language, "language", "", "preferred UI language (e.g. en, de)")
	return cmd
}

func newUserAPIKeyCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "api-key <login>",
		Short: "Generate a new API key for one user",
		Args:  requireArgs(1, 1, "login is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			login, err := internalauth.NormalizeLogin(args[0])
			if err != nil {
				return err
			}

			return withStore(cfg, func(st *store.Store) error {
				user, err := st.GetUserByLogin(cmd.Context(), login)
				if err != nil {
					return err
				}
				if user == nil {
					return fmt.Errorf("user %s not found", login)
				}

				apiKey := internalauth.GenerateAPIKey()
				if err := st.SetAPIKeyHash(cmd.Context(), user.ID, internalauth.HashToken(apiKey)); err != nil {
					return err
				}

				if *jsonOutput {
					return writeJSON(map[string]any{"login": user.Login, "api_key": apiKey})
				}
				return writePlain("api key for %s: %s\n", user.Login, apiKey)
			})
		},
	}
}

func readPassword(r io.Reader) (string, error) {
	passwordBytes, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	password := strings.TrimSpace(string(passwordBytes))
	if err := internalauth.ValidatePassword(password); err != nil {
		return "", err
	}
	return password, nil
}
