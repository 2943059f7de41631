package api

import (
	"strings"
	"unicode/utf8"
)

// maxTTSTextLen is the longest text the speech provider accepts in one request.
const maxTTSTextLen = 200

// maxLangLen bounds language codes such as "en" or "rw-RW".
const maxLangLen = 16

// maxDigitsBodySize bounds JSON digit callbacks.
const maxDigitsBodySize = 4 << 10

// validateStringLen checks that a string does not exceed maxLen characters.
// Returns an error message if invalid, empty string if OK.
func validateStringLen(field, value string, maxLen int) string {
	if utf8.RuneCountInString(value) > maxLen {
		return field + " exceeds maximum length"
	}
	return ""
}

// validateRequiredStringLen checks that a string has non-blank content and
// does not exceed maxLen characters.
func validateRequiredStringLen(field, value string, maxLen int) string {
	if strings.TrimSpace(value) == "" {
		return field + " is required"
	}
	return validateStringLen(field, value, maxLen)
}

// validateLanguageCode accepts an empty code (the default applies) or
// letters and digits with optional hyphen or underscore separators, so
// region subtags like "es-419" pass. Whether the language is supported is
// left to the speech bridge.
func validateLanguageCode(field, value string) string {
	if msg := validateStringLen(field, value, maxLangLen); msg != "" {
		return msg
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return field + " is not a valid language code"
		}
	}
	return ""
}
