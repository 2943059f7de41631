// Package ivr implements the hotline's call flow. Every provider callback is
// answered from the immutable menu and the callback payload alone; which step
// of the call we are on is implied by the endpoint the provider requested.
package ivr

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/safeyouth/ivr/internal/menu"
	"github.com/safeyouth/ivr/internal/twiml"
)

// Default callback paths.
const (
	DefaultEntryURL  = "/ivr"
	DefaultHandleURL = "/ivr/handle"
)

// defaultDialTimeout is the operator ring time in seconds.
const defaultDialTimeout = 30

// OutcomeInvalid is reported when a digit matches no option.
const OutcomeInvalid = "invalid"

// Options configures the parts of the call flow that are not menu text.
type Options struct {
	// OperatorNumber is dialed for options with the operator action.
	OperatorNumber string
	// OperatorDialTimeout is how long the operator line rings, in seconds.
	OperatorDialTimeout int
	// EntryURL is the call-start callback; invalid input redirects here.
	EntryURL string
	// HandleURL receives the digit collected by the menu gather.
	HandleURL string
}

// actionHandler appends the verbs for a selected option.
type actionHandler func(c *Controller, resp *twiml.Response, o menu.Option)

// handlers maps every menu action to its behavior. New refuses any menu that
// references an action missing from this table.
var handlers = map[menu.Action]actionHandler{
	menu.ActionHealth:     speakResponse,
	menu.ActionCounseling: speakResponse,
	menu.ActionOperator:   transferToOperator,
}

// Controller builds the voice response for each call-flow callback.
// It holds no per-call state and is safe for concurrent use.
type Controller struct {
	menu   *menu.Config
	opts   Options
	logger *slog.Logger
}

// New validates cfg and returns a Controller serving it.
func New(cfg *menu.Config, opts Options, logger *slog.Logger) (*Controller, error) {
	if cfg == nil {
		return nil, errors.New("ivr: menu is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, o := range cfg.Options {
		if _, ok := handlers[o.Action]; !ok {
			return nil, fmt.Errorf("ivr: option %q: no handler for action %q", o.Key, o.Action)
		}
		if o.Action == menu.ActionOperator && opts.OperatorNumber == "" {
			return nil, fmt.Errorf("ivr: option %q transfers to the operator but no operator number is configured", o.Key)
		}
	}

	if opts.EntryURL == "" {
		opts.EntryURL = DefaultEntryURL
	}
	if opts.HandleURL == "" {
		opts.HandleURL = DefaultHandleURL
	}
	if opts.OperatorDialTimeout <= 0 {
		opts.OperatorDialTimeout = defaultDialTimeout
	}

	return &Controller{
		menu:   cfg,
		opts:   opts,
		logger: logger.With("component", "ivr"),
	}, nil
}

// Menu returns the menu the controller serves. It must not be modified.
func (c *Controller) Menu() *menu.Config {
	return c.menu
}

// MenuLanguage returns the language of the menu being served.
func (c *Controller) MenuLanguage() string {
	return c.menu.Language
}

// OptionCount returns the number of menu options.
func (c *Controller) OptionCount() int {
	return len(c.menu.Options)
}

// EntryURL returns the call-start callback path.
func (c *Controller) EntryURL() string {
	return c.opts.EntryURL
}

// HandleURL returns the digit callback path.
func (c *Controller) HandleURL() string {
	return c.opts.HandleURL
}

// EnterMenu answers the call-start callback: a single-digit gather that
// speaks the greeting, the menu prompt and one announcement per option, then
// a redirect back to the entry URL for when the gather ends without input.
func (c *Controller) EnterMenu() *twiml.Response {
	resp := twiml.NewResponse()
	c.appendMenu(resp)
	return resp
}

// HandleDigit answers the digit callback. A matching option runs its action;
// anything else, including an empty or multi-character digit, speaks the
// invalid-input message and sends the caller back to the menu. It returns the
// response and the outcome (the matched action, or OutcomeInvalid).
func (c *Controller) HandleDigit(digit string) (*twiml.Response, string) {
	o, ok := c.menu.Lookup(digit)
	if !ok {
		c.logger.Debug("ivr digit not matched", "digit", digit)
		return c.Fallback(), OutcomeInvalid
	}

	c.logger.Debug("ivr digit matched", "digit", digit, "action", o.Action)

	resp := twiml.NewResponse()
	handlers[o.Action](c, resp, o)
	return resp, string(o.Action)
}

// Fallback is the invalid-input branch: speak the invalid message, then
// replay the menu. It is also what callers hear when a callback fails.
func (c *Controller) Fallback() *twiml.Response {
	resp := twiml.NewResponse()
	resp.Say(c.menu.InvalidMessage, c.menu.VoiceLanguage)
	c.appendMenu(resp)
	return resp
}

// appendMenu adds the gather-and-announce sequence followed by the
// self-redirect.
func (c *Controller) appendMenu(resp *twiml.Response) {
	lang := c.menu.VoiceLanguage

	g := resp.Gather(twiml.Gather{
		NumDigits: 1,
		Action:    c.opts.HandleURL,
		Method:    "POST",
		Timeout:   c.menu.Timeout,
	})
	g.Say(c.menu.WelcomeMessage, lang)
	g.Say(c.menu.MainMenuMessage, lang)
	for _, o := range c.menu.Options {
		g.Say(c.menu.Announcement(o), lang)
	}

	resp.Redirect(c.opts.EntryURL, "POST")
}

func speakResponse(c *Controller, resp *twiml.Response, o menu.Option) {
	resp.Say(c.menu.ResponseFor(o), c.menu.VoiceLanguage)
}

func transferToOperator(c *Controller, resp *twiml.Response, o menu.Option) {
	resp.Say(c.menu.ResponseFor(o), c.menu.VoiceLanguage)
	resp.Dial(c.opts.OperatorNumber, c.opts.OperatorDialTimeout)
}
