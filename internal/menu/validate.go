package menu

import (
	"fmt"
	"strings"
)

// ValidationError lists every problem found in a menu. A menu with any issue
// is never served.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "invalid menu: " + strings.Join(e.Issues, "; ")
}

// Validate checks the menu for problems that would otherwise only surface
// during a live call:
//   - missing welcome, main menu or invalid-input text
//   - a non-positive timeout
//   - an empty option list
//   - option keys that are not exactly one digit, or are repeated
//   - unknown actions
//   - options with no response text to speak
//
// All issues are collected and returned together as a *ValidationError.
func (c *Config) Validate() error {
	var issues []string
	addf := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.WelcomeMessage) == "" {
		addf("welcomeMessage is required")
	}
	if strings.TrimSpace(c.MainMenuMessage) == "" {
		addf("mainMenuMessage is required")
	}
	if strings.TrimSpace(c.InvalidMessage) == "" {
		addf("invalidMessage is required")
	}
	if c.Timeout <= 0 {
		addf("timeout must be a positive number of seconds, got %d", c.Timeout)
	}
	if c.OptionPrompt != "" && !strings.Contains(c.OptionPrompt, "{key}") {
		addf("optionPrompt %q must contain the {key} placeholder", c.OptionPrompt)
	}
	if len(c.Options) == 0 {
		addf("at least one option is required")
	}

	seen := make(map[string]int, len(c.Options))
	for i, o := range c.Options {
		if !isDigitKey(o.Key) {
			addf("option %d: key %q must be exactly one digit 0-9", i, o.Key)
		} else if prev, dup := seen[o.Key]; dup {
			addf("option %d: key %q already used by option %d", i, o.Key, prev)
		} else {
			seen[o.Key] = i
		}

		if !o.Action.Valid() {
			addf("option %d (key %q): unknown action %q", i, o.Key, o.Action)
		}
		if strings.TrimSpace(c.ResponseFor(o)) == "" {
			addf("option %d (key %q): no response text configured", i, o.Key)
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

func isDigitKey(key string) bool {
	return len(key) == 1 && key[0] >= '0' && key[0] <= '9'
}
