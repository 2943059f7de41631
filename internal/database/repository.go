package database

import (
	"context"

	"github.com/safeyouth/ivr/internal/menu"
)

// MenuRepository stores menu variants keyed by language.
type MenuRepository interface {
	// Save inserts or replaces the menu stored under cfg.Language.
	Save(ctx context.Context, cfg *menu.Config) error
	// GetByLanguage returns nil, nil when no menu is stored for lang.
	GetByLanguage(ctx context.Context, lang string) (*menu.Config, error)
	Languages(ctx context.Context) ([]string, error)
	// SeedBuiltins stores the compiled-in variants when the store is empty
	// and reports how many were written.
	SeedBuiltins(ctx context.Context) (int, error)
}
