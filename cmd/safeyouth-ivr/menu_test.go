package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/safeyouth/ivr/internal/config"
	"github.com/safeyouth/ivr/internal/menu"
)

func TestLoadMenuBuiltin(t *testing.T) {
	m, err := loadMenu(context.Background(), &config.Config{MenuSource: "builtin", MenuLanguage: "en"})
	if err != nil {
		t.Fatalf("loadMenu() error: %v", err)
	}
	if m.Language != "en" {
		t.Errorf("Language = %q, want en", m.Language)
	}
}

func TestLoadMenuFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu.json")
	doc := `{
		"language": "fr",
		"voiceLanguage": "fr",
		"welcomeMessage": "Bienvenue.",
		"mainMenuMessage": "Choisissez une option.",
		"invalidMessage": "Choix invalide.",
		"goodbyeMessage": "Au revoir.",
		"timeout": 5,
		"options": [{"key": "1", "label": "Santé", "action": "health", "response": "Infos santé."}]
	}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	m, err := loadMenu(context.Background(), &config.Config{MenuSource: "file", MenuFile: path})
	if err != nil {
		t.Fatalf("loadMenu() error: %v", err)
	}
	if m.Language != "fr" || len(m.Options) != 1 {
		t.Errorf("unexpected menu %+v", m)
	}
}

func TestLoadMenuDBSeedsBuiltins(t *testing.T) {
	cfg := &config.Config{MenuSource: "db", MenuLanguage: "rw", DataDir: t.TempDir()}

	m, err := loadMenu(context.Background(), cfg)
	if err != nil {
		t.Fatalf("loadMenu() error: %v", err)
	}
	want, _ := menu.Builtin("rw")
	if m.WelcomeMessage != want.WelcomeMessage || len(m.Options) != len(want.Options) {
		t.Errorf("db menu differs from built-in: %+v", m)
	}

	// Second start reuses the existing store.
	if _, err := loadMenu(context.Background(), cfg); err != nil {
		t.Fatalf("second loadMenu() error: %v", err)
	}
}

func TestLoadMenuDBUnknownLanguage(t *testing.T) {
	cfg := &config.Config{MenuSource: "db", MenuLanguage: "xx", DataDir: t.TempDir()}

	_, err := loadMenu(context.Background(), cfg)
	if !errors.Is(err, menu.ErrUnknownLanguage) {
		t.Fatalf("loadMenu() error = %v, want ErrUnknownLanguage", err)
	}
}
