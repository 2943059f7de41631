// Package google provides a tts.Provider backed by the Google Translate
// text-to-speech endpoint. The endpoint serves MP3 audio for a query string,
// so synthesis amounts to building a URL the telephony provider
// or a browser can fetch directly.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"unicode/utf8"
)

// MaxTextLength is the longest text, in characters, the endpoint accepts.
const MaxTextLength = 200

// DefaultHost is the public Google Translate host.
const DefaultHost = "https://translate.google.com"

var (
	// ErrTextTooLong is returned for text over MaxTextLength characters.
	ErrTextTooLong = errors.New("text exceeds maximum length")
	// ErrUnsupportedLanguage is returned for languages the endpoint cannot voice.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// languages the endpoint can voice. Kinyarwanda is not among them.
var languages = map[string]bool{
	"af": true, "ar": true, "bg": true, "bn": true, "bs": true, "ca": true,
	"cs": true, "cy": true, "da": true, "de": true, "el": true, "en": true,
	"eo": true, "es": true, "et": true, "fi": true, "fr": true, "gu": true,
	"hi": true, "hr": true, "hu": true, "hy": true, "id": true, "is": true,
	"it": true, "ja": true, "jw": true, "km": true, "kn": true, "ko": true,
	"la": true, "lv": true, "mk": true, "ml": true, "mr": true, "my": true,
	"ne": true, "nl": true, "no": true, "pl": true, "pt": true, "ro": true,
	"ru": true, "si": true, "sk": true, "sq": true, "sr": true, "su": true,
	"sv": true, "sw": true, "ta": true, "te": true, "th": true, "tl": true,
	"tr": true, "uk": true, "ur": true, "vi": true, "zh-cn": true, "zh-tw": true,
}

// Config configures the provider.
type Config struct {
	// Host overrides DefaultHost, e.g. for a regional mirror.
	Host string
	// Slow requests the slower speaking rate.
	Slow bool
}

// Provider builds Google Translate TTS URLs.
type Provider struct {
	base *url.URL
	slow bool
}

// New creates a Provider.
func New(cfg Config) (*Provider, error) {
	host := cfg.Host
	if host == "" {
		host = DefaultHost
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parsing tts host: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("tts host %q must be an absolute URL", host)
	}
	return &Provider{base: base, slow: cfg.Slow}, nil
}

// Supports reports whether lang can be voiced.
func (p *Provider) Supports(lang string) bool {
	return languages[lang]
}

// AudioURL returns the URL of the MP3 rendering of text in lang.
func (p *Provider) AudioURL(ctx context.Context, text, lang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	n := utf8.RuneCountInString(text)
	if n > MaxTextLength {
		return "", fmt.Errorf("%w: %d characters, limit %d", ErrTextTooLong, n, MaxTextLength)
	}
	if !p.Supports(lang) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}

	speed := "1"
	if p.slow {
		speed = "0.24"
	}

	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", text)
	q.Set("tl", lang)
	q.Set("total", "1")
	q.Set("idx", "0")
	q.Set("textlen", strconv.Itoa(n))
	q.Set("client", "tw-ob")
	q.Set("prev", "input")
	q.Set("ttsspeed", speed)

	u := *p.base
	u.Path = "/translate_tts"
	u.RawQuery = q.Encode()
	return u.String(), nil
}
