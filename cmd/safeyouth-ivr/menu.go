package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/safeyouth/ivr/internal/config"
	"github.com/safeyouth/ivr/internal/database"
	"github.com/safeyouth/ivr/internal/menu"
)

// loadMenu returns the menu named by the configured source. ivr.New
// validates the result before anything is served.
func loadMenu(ctx context.Context, cfg *config.Config) (*menu.Config, error) {
	switch cfg.MenuSource {
	case "file":
		return menu.LoadFile(cfg.MenuFile)
	case "db":
		return loadMenuFromDB(ctx, cfg)
	default:
		return menu.Builtin(cfg.MenuLanguage)
	}
}

// loadMenuFromDB opens the menu store, seeding it with the built-in menus on
// first use, and reads the configured language.
func loadMenuFromDB(ctx context.Context, cfg *config.Config) (*menu.Config, error) {
	db, err := database.Open(ctx, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	repo := database.NewMenuRepository(db)
	seeded, err := repo.SeedBuiltins(ctx)
	if err != nil {
		return nil, fmt.Errorf("seeding menu store: %w", err)
	}
	if seeded > 0 {
		slog.Info("seeded menu store with built-in menus", "count", seeded)
	}

	m, err := repo.GetByLanguage(ctx, cfg.MenuLanguage)
	if err != nil {
		return nil, err
	}
	if m == nil {
		langs, _ := repo.Languages(ctx)
		return nil, fmt.Errorf("%w: %q not in menu store (available: %v)", menu.ErrUnknownLanguage, cfg.MenuLanguage, langs)
	}
	return m, nil
}
