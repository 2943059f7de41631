package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safeyouth/ivr/internal/menu"
)

// menuRepo implements MenuRepository.
type menuRepo struct {
	db *DB
}

// NewMenuRepository creates a new MenuRepository.
func NewMenuRepository(db *DB) MenuRepository {
	return &menuRepo{db: db}
}

// Save validates cfg and writes it, with its options and choices, in one
// transaction. An existing menu for the same language is replaced.
func (r *menuRepo) Save(ctx context.Context, cfg *menu.Config) error {
	if cfg.Language == "" {
		return errors.New("menu language is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning menu transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO menus (language, voice_language, welcome_message, main_menu_message,
		 invalid_message, goodbye_message, option_prompt, timeout, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))
		 ON CONFLICT(language) DO UPDATE SET
		 voice_language = excluded.voice_language,
		 welcome_message = excluded.welcome_message,
		 main_menu_message = excluded.main_menu_message,
		 invalid_message = excluded.invalid_message,
		 goodbye_message = excluded.goodbye_message,
		 option_prompt = excluded.option_prompt,
		 timeout = excluded.timeout,
		 updated_at = datetime('now')`,
		cfg.Language, cfg.VoiceLanguage, cfg.WelcomeMessage, cfg.MainMenuMessage,
		cfg.InvalidMessage, cfg.GoodbyeMessage, cfg.OptionPrompt, cfg.Timeout,
	)
	if err != nil {
		return fmt.Errorf("upserting menu %s: %w", cfg.Language, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM menu_options WHERE language = ?`, cfg.Language); err != nil {
		return fmt.Errorf("clearing menu options: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM menu_choices WHERE language = ?`, cfg.Language); err != nil {
		return fmt.Errorf("clearing menu choices: %w", err)
	}

	for i, o := range cfg.Options {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO menu_options (language, position, digit, label, action_name, response)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			cfg.Language, i, o.Key, o.Label, string(o.Action), o.Response,
		)
		if err != nil {
			return fmt.Errorf("inserting menu option %s: %w", o.Key, err)
		}
	}
	for key, text := range cfg.Choices {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO menu_choices (language, digit, message) VALUES (?, ?, ?)`,
			cfg.Language, key, text,
		)
		if err != nil {
			return fmt.Errorf("inserting menu choice %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing menu %s: %w", cfg.Language, err)
	}
	return nil
}

// GetByLanguage loads the menu stored for lang with options in their saved
// order.
func (r *menuRepo) GetByLanguage(ctx context.Context, lang string) (*menu.Config, error) {
	cfg := &menu.Config{}
	err := r.db.QueryRowContext(ctx,
		`SELECT language, voice_language, welcome_message, main_menu_message,
		 invalid_message, goodbye_message, option_prompt, timeout
		 FROM menus WHERE language = ?`, lang,
	).Scan(&cfg.Language, &cfg.VoiceLanguage, &cfg.WelcomeMessage, &cfg.MainMenuMessage,
		&cfg.InvalidMessage, &cfg.GoodbyeMessage, &cfg.OptionPrompt, &cfg.Timeout)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning menu: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT digit, label, action_name, response FROM menu_options
		 WHERE language = ? ORDER BY position`, lang)
	if err != nil {
		return nil, fmt.Errorf("querying menu options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o menu.Option
		var action string
		if err := rows.Scan(&o.Key, &o.Label, &action, &o.Response); err != nil {
			return nil, fmt.Errorf("scanning menu option row: %w", err)
		}
		o.Action = menu.Action(action)
		cfg.Options = append(cfg.Options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	choices, err := r.db.QueryContext(ctx,
		`SELECT digit, message FROM menu_choices WHERE language = ?`, lang)
	if err != nil {
		return nil, fmt.Errorf("querying menu choices: %w", err)
	}
	defer choices.Close()

	for choices.Next() {
		var key, text string
		if err := choices.Scan(&key, &text); err != nil {
			return nil, fmt.Errorf("scanning menu choice row: %w", err)
		}
		if cfg.Choices == nil {
			cfg.Choices = make(map[string]string)
		}
		cfg.Choices[key] = text
	}
	return cfg, choices.Err()
}

// Languages returns the stored menu languages in sorted order.
func (r *menuRepo) Languages(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT language FROM menus ORDER BY language`)
	if err != nil {
		return nil, fmt.Errorf("querying menu languages: %w", err)
	}
	defer rows.Close()

	var langs []string
	for rows.Next() {
		var lang string
		if err := rows.Scan(&lang); err != nil {
			return nil, fmt.Errorf("scanning menu language: %w", err)
		}
		langs = append(langs, lang)
	}
	return langs, rows.Err()
}

func (r *menuRepo) SeedBuiltins(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM menus`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting menus: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	seeded := 0
	for _, lang := range menu.Languages() {
		cfg, err := menu.Builtin(lang)
		if err != nil {
			return seeded, err
		}
		if err := r.Save(ctx, cfg); err != nil {
			return seeded, fmt.Errorf("seeding menu %s: %w", lang, err)
		}
		seeded++
	}
	return seeded, nil
}
