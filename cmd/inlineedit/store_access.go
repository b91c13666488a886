package main

import (
	"fmt"

	"inlineedit/internal/config"
	"inlineedit/internal/store"
)

// withStore opens the configured database for administrative commands that
// have no HTTP counterpart.
func withStore(cfg *config.Config, fn func(*store.Store) error) error {
	if cfg == nil || cfg.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}
