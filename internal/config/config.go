package config

import (
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration for the IVR server.
// Precedence: CLI flags > env vars > defaults.
type Config struct {
	HTTPPort    int
	LogLevel    string
	LogFormat   string // log output format: "text" or "json"
	CORSOrigins string

	OperatorNumber      string // E.164 number the operator option dials
	OperatorDialTimeout int    // seconds the operator line rings

	MenuSource   string // "builtin", "file" or "db"
	MenuLanguage string // menu variant to serve, e.g. "rw"
	MenuFile     string // JSON menu path when MenuSource is "file"
	DataDir      string // database directory when MenuSource is "db"

	TTSDefaultLang  string
	TTSFallbackLang string
	TTSHost         string
	TTSSlow         bool
	TTSRate         float64 // requests per second per client IP
	TTSBurst        int

	PublicURL string // externally visible base URL, used to verify provider signatures
	AuthToken string // provider auth token; empty disables signature checks
}

// defaults
const (
	defaultHTTPPort            = 3000
	defaultLogLevel            = "info"
	defaultLogFormat           = "text"
	defaultCORSOrigins         = "*"
	defaultOperatorNumber      = "+25078xxxxxxx"
	defaultOperatorDialTimeout = 30
	defaultMenuSource          = "builtin"
	defaultMenuLanguage        = "rw"
	defaultDataDir             = "./data"
	defaultTTSDefaultLang      = "rw"
	defaultTTSFallbackLang     = "en"
	defaultTTSHost             = "https://translate.google.com"
	defaultTTSRate             = 5
	defaultTTSBurst            = 10
)

// envPrefix is the prefix for all environment variables.
const envPrefix = "SAFEYOUTH_"

// Load parses configuration from CLI flags and environment variables.
// Precedence: CLI flags > env vars > defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("safeyouth-ivr", flag.ContinueOnError)

	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "HTTP server listen port")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")
	fs.StringVar(&cfg.CORSOrigins, "cors-origins", defaultCORSOrigins, "comma-separated list of allowed CORS origins (use * for all)")
	fs.StringVar(&cfg.OperatorNumber, "operator-number", defaultOperatorNumber, "phone number the operator option transfers to")
	fs.IntVar(&cfg.OperatorDialTimeout, "operator-dial-timeout", defaultOperatorDialTimeout, "seconds to ring the operator before giving up")
	fs.StringVar(&cfg.MenuSource, "menu-source", defaultMenuSource, "where the menu is loaded from (builtin, file, db)")
	fs.StringVar(&cfg.MenuLanguage, "menu-language", defaultMenuLanguage, "menu language variant to serve")
	fs.StringVar(&cfg.MenuFile, "menu-file", "", "path to a JSON menu document (menu-source=file)")
	fs.StringVar(&cfg.DataDir, "data-dir", defaultDataDir, "data directory for the menu database (menu-source=db)")
	fs.StringVar(&cfg.TTSDefaultLang, "tts-default-lang", defaultTTSDefaultLang, "language used when a TTS request names none")
	fs.StringVar(&cfg.TTSFallbackLang, "tts-fallback-lang", defaultTTSFallbackLang, "language used when the requested one cannot be synthesized")
	fs.StringVar(&cfg.TTSHost, "tts-host", defaultTTSHost, "base URL of the speech-synthesis endpoint")
	fs.BoolVar(&cfg.TTSSlow, "tts-slow", false, "request the slow speaking rate")
	fs.Float64Var(&cfg.TTSRate, "tts-rate", defaultTTSRate, "TTS requests per second allowed per client IP")
	fs.IntVar(&cfg.TTSBurst, "tts-burst", defaultTTSBurst, "TTS request burst allowed per client IP")
	fs.StringVar(&cfg.PublicURL, "public-url", "", "externally visible base URL of this server (e.g. https://ivr.example.org)")
	fs.StringVar(&cfg.AuthToken, "auth-token", "", "telephony provider auth token for request signature validation")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// Apply env var overrides for any flags not explicitly set on the command line.
	// CLI flags take precedence over env vars.
	applyEnvOverrides(fs)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks environment variables for any flag that was not
// explicitly provided on the command line. This preserves the precedence:
// CLI flags > env vars > defaults.
func applyEnvOverrides(fs *flag.FlagSet) {
	// Track which flags were explicitly set via CLI.
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	fs.VisitAll(func(f *flag.Flag) {
		if set[f.Name] {
			return
		}
		envVar := envName(f.Name)
		val, ok := os.LookupEnv(envVar)
		if !ok || val == "" {
			return
		}
		// Malformed values keep the default.
		if err := f.Value.Set(val); err != nil {
			slog.Warn("ignoring invalid environment value", "env", envVar, "error", err)
			f.Value.Set(f.DefValue) //nolint:errcheck
		}
	})
}

// envName maps a flag name such as "http-port" to SAFEYOUTH_HTTP_PORT.
func envName(flagName string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http-port must be between 1 and 65535, got %d", c.HTTPPort)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	if strings.TrimSpace(c.OperatorNumber) == "" {
		return fmt.Errorf("operator-number is required")
	}
	if c.OperatorDialTimeout < 1 {
		return fmt.Errorf("operator-dial-timeout must be a positive integer, got %d", c.OperatorDialTimeout)
	}

	c.MenuSource = strings.ToLower(c.MenuSource)
	switch c.MenuSource {
	case "builtin", "db":
	case "file":
		if c.MenuFile == "" {
			return fmt.Errorf("menu-file is required when menu-source is file")
		}
	default:
		return fmt.Errorf("menu-source must be one of builtin, file, db; got %q", c.MenuSource)
	}
	if c.MenuSource != "file" && c.MenuLanguage == "" {
		return fmt.Errorf("menu-language is required")
	}

	if c.TTSFallbackLang == "" {
		return fmt.Errorf("tts-fallback-lang is required")
	}
	if c.TTSRate <= 0 {
		return fmt.Errorf("tts-rate must be positive, got %s", strconv.FormatFloat(c.TTSRate, 'f', -1, 64))
	}
	if c.TTSBurst < 1 {
		return fmt.Errorf("tts-burst must be at least 1, got %d", c.TTSBurst)
	}

	// Signature validation needs the public URL the provider signs against.
	if c.AuthToken != "" {
		if c.PublicURL == "" {
			return fmt.Errorf("public-url is required when auth-token is set")
		}
		u, err := url.Parse(c.PublicURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("public-url must be an absolute URL, got %q", c.PublicURL)
		}
		c.PublicURL = strings.TrimRight(c.PublicURL, "/")
	}

	return nil
}

// SignatureValidationEnabled reports whether provider callbacks must carry a
// valid request signature.
func (c *Config) SignatureValidationEnabled() bool {
	return c.AuthToken != ""
}

// SlogHandler returns a slog.Handler configured with the appropriate format
// (text or json) and log level.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
