// Package menu defines the hotline's single-level IVR menu: the greeting,
// the numbered options and the text spoken for each of them.
//
// A Config is built once at startup, validated, and then shared read-only
// by every request handler for the lifetime of the process.
package menu

import (
	"errors"
	"strings"
)

// ErrUnknownLanguage is returned when no menu variant exists for a language.
var ErrUnknownLanguage = errors.New("unknown menu language")

// DefaultOptionPrompt is used when a menu does not set its own announcement
// template.
const DefaultOptionPrompt = "Press {key} for {label}."

// Action identifies what happens when the caller selects an option.
type Action string

const (
	// ActionHealth speaks the health information message.
	ActionHealth Action = "health"
	// ActionCounseling speaks the counseling message.
	ActionCounseling Action = "counseling"
	// ActionOperator speaks the connect message and transfers to the operator.
	ActionOperator Action = "operator"
)

// Actions lists every action a menu may reference.
var Actions = []Action{ActionHealth, ActionCounseling, ActionOperator}

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// Option is one entry of the menu, selected by a single DTMF digit.
type Option struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Action Action `json:"action"`
	// Response, when set, is spoken instead of the matching Choices entry.
	Response string `json:"response,omitempty"`
}

// Config is the complete menu for one deployment language.
type Config struct {
	Language        string            `json:"language"`
	VoiceLanguage   string            `json:"voiceLanguage"`
	WelcomeMessage  string            `json:"welcomeMessage"`
	MainMenuMessage string            `json:"mainMenuMessage"`
	InvalidMessage  string            `json:"invalidMessage"`
	GoodbyeMessage  string            `json:"goodbyeMessage"`
	OptionPrompt    string            `json:"optionPrompt,omitempty"`
	Timeout         int               `json:"timeout"`
	Options         []Option          `json:"options"`
	Choices         map[string]string `json:"choices,omitempty"`
}

// Lookup returns the option bound to key. Matching is exact: "1" matches an
// option keyed "1", while "01", " 1" and "" match nothing.
func (c *Config) Lookup(key string) (Option, bool) {
	for _, o := range c.Options {
		if o.Key == key {
			return o, true
		}
	}
	return Option{}, false
}

// ResponseFor returns the text spoken when o is selected.
func (c *Config) ResponseFor(o Option) string {
	if o.Response != "" {
		return o.Response
	}
	return c.Choices[o.Key]
}

// Announcement renders the "press key for label" line for o.
func (c *Config) Announcement(o Option) string {
	prompt := c.OptionPrompt
	if prompt == "" {
		prompt = DefaultOptionPrompt
	}
	return strings.NewReplacer("{key}", o.Key, "{label}", o.Label).Replace(prompt)
}
