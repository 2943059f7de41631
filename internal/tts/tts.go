// Package tts turns text into a playable audio URL through an external
// speech-synthesis provider, substituting a fallback language when the
// requested one cannot be voiced.
package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	// ErrInvalidInput is returned for empty text.
	ErrInvalidInput = errors.New("text is required")
	// ErrSynthesisFailed is returned when the provider failed for both the
	// requested and the fallback language.
	ErrSynthesisFailed = errors.New("speech synthesis failed")
)

// Provider is an external speech-synthesis service.
type Provider interface {
	// Supports reports whether the provider can voice lang.
	Supports(lang string) bool
	// AudioURL returns a URL from which the spoken text can be fetched.
	AudioURL(ctx context.Context, text, lang string) (string, error)
}

// Config controls language resolution.
type Config struct {
	// DefaultLanguage is used when the request names no language.
	DefaultLanguage string
	// FallbackLanguage replaces unsupported languages and is used for the
	// retry after a provider failure.
	FallbackLanguage string
	// Aliases maps request codes to provider codes, e.g. "en-us" to "en".
	// Keys are lower case.
	Aliases map[string]string
}

// DefaultConfig synthesizes Kinyarwanda by default and falls back to English.
func DefaultConfig() Config {
	return Config{
		DefaultLanguage:  "rw",
		FallbackLanguage: "en",
		Aliases: map[string]string{
			"kin":   "rw",
			"rw-rw": "rw",
			"eng":   "en",
			"en-us": "en",
			"en-gb": "en",
			"fra":   "fr",
			"fr-fr": "fr",
			"swa":   "sw",
		},
	}
}

// Result is a synthesized audio URL.
type Result struct {
	URL string
	// Language is the provider language the URL was produced with.
	Language string
	// Substituted is set when the requested language was unsupported.
	Substituted bool
	// Retried is set when the first provider call failed.
	Retried bool
}

// Bridge resolves languages and calls the provider.
type Bridge struct {
	provider Provider
	cfg      Config
	logger   *slog.Logger
}

// NewBridge creates a Bridge. An empty FallbackLanguage defaults to "en".
func NewBridge(provider Provider, cfg Config, logger *slog.Logger) *Bridge {
	if cfg.FallbackLanguage == "" {
		cfg.FallbackLanguage = "en"
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = cfg.FallbackLanguage
	}
	return &Bridge{
		provider: provider,
		cfg:      cfg,
		logger:   logger.With("component", "tts"),
	}
}

// Resolve maps a requested language to the provider code that will be used,
// reporting whether the fallback was substituted.
func (b *Bridge) Resolve(lang string) (string, bool) {
	code := strings.ToLower(strings.TrimSpace(lang))
	if code == "" {
		code = strings.ToLower(b.cfg.DefaultLanguage)
	}
	if alias, ok := b.cfg.Aliases[code]; ok {
		code = alias
	}
	if b.provider.Supports(code) {
		return code, false
	}
	return b.cfg.FallbackLanguage, true
}

// Synthesize converts text to an audio URL. Unsupported languages are
// replaced by the fallback language. If the provider fails, the request is
// retried once with the fallback language before the error is returned.
func (b *Bridge) Synthesize(ctx context.Context, text, lang string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrInvalidInput
	}

	code, substituted := b.Resolve(lang)
	if substituted {
		b.logger.Debug("tts language not supported, using fallback",
			"requested", lang,
			"fallback", code,
		)
	}

	url, err := b.provider.AudioURL(ctx, text, code)
	if err == nil {
		return Result{URL: url, Language: code, Substituted: substituted}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}

	b.logger.Warn("tts provider failed, retrying with fallback language",
		"language", code,
		"fallback", b.cfg.FallbackLanguage,
		"error", err,
	)

	fallback := b.cfg.FallbackLanguage
	url, retryErr := b.provider.AudioURL(ctx, text, fallback)
	if retryErr != nil {
		return Result{}, fmt.Errorf("%w: %s: %v; %s: %w", ErrSynthesisFailed, code, err, fallback, retryErr)
	}
	return Result{URL: url, Language: fallback, Substituted: substituted, Retried: true}, nil
}
