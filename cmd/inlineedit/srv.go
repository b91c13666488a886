package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"inlineedit/internal/config"
	"inlineedit/internal/i18n"
	"inlineedit/internal/server"
	"inlineedit/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the inline edit server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}

			logger := slog.Default()

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			settings, err := cfg.ParentSettings()
			if err != nil {
				return err
			}

			bundle, err := i18n.Load()
			if err != nil {
				return fmt.Errorf("load locales: %w", err)
			}

			logger.Info("opening database", "path", cfg.DBPath)
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			srv := server.New(addr, st, bundle, server.Options{
				ParentSettings:  settings,
				DefaultLocale:   cfg.DefaultLocale,
				RelativeURLRoot: cfg.RelativeURLRoot,
				PerPage:         cfg.PerPage,
			}, logger)
			return srv.ListenAndServe(cmd.Context())
		},
	}
}
