package menu

import (
	"fmt"
	"maps"
	"slices"
)

// builtins holds the menus compiled into the binary, keyed by language.
// Builtin hands out copies; these values are never mutated.
var builtins = map[string]Config{
	// Kinyarwanda menu. The telephony provider cannot voice Kinyarwanda, so
	// the text is read with the English voice.
	"rw": {
		Language:        "rw",
		VoiceLanguage:   "en",
		WelcomeMessage:  "Murakaza neza muri sisitemu ya Safe Youth. Kanda 1 niba ushaka kumva uko Safe Youth ishobora kugufasha cyane, kanda 2 niba ushaka kwirinda inda, kanda 3 niba ushaka kuvuga n'umukozi",
		MainMenuMessage: "Nyamuneka kanda nimero y'amahitamo akurikira.",
		InvalidMessage:  "Icyo wahisemo ntibikwiye. Ongera ugerageze.",
		GoodbyeMessage:  "Murakoze guhamagara. Muramuke.",
		OptionPrompt:    "Kanda {key} kuri {label}.",
		Timeout:         5,
		Options: []Option{
			{Key: "1", Label: "Amakuru y'Ubuzima", Action: ActionHealth},
			{Key: "2", Label: "Ubujyanama n'Ubufasha", Action: ActionCounseling},
			{Key: "3", Label: "Umukozi", Action: ActionOperator},
		},
		Choices: map[string]string{
			"1": "Safe Youth irashobora kugufasha mu gutanga amakuru yizewe ku buzima, ku mibanire, n'uburyo bwo kwirinda. Duyobora urubyiruko gufata ibyemezo byiza no kubahuza n'ubufasha igihe bakeneye.",
			"2": "Kugirango wirinde inda mbere y'igihe, ibuka ingingo z'ingenzi: tegereza uko uteguye, wibanze ku masomo yawe, kandi wirinde imyitwarire ishobora kuguteza ingorane. Niba uri mu gufatana n'umuntu, buri gihe koresha ibikurinda kandi ushake ubuyobozi bw'inzobere z'ubuzima.",
			"3": "Turakunganira kuri operator wa Safe Youth kugirango ubone ubundi bufasha. Tegereza uko tuguha telefoni.",
		},
	},
	"en": {
		Language:        "en",
		VoiceLanguage:   "en",
		WelcomeMessage:  "Welcome to the Safe Youth hotline.",
		MainMenuMessage: "Please choose one of the following options.",
		InvalidMessage:  "Sorry, that is not a valid choice. Please try again.",
		GoodbyeMessage:  "Thank you for calling. Goodbye.",
		OptionPrompt:    DefaultOptionPrompt,
		Timeout:         5,
		Options: []Option{
			{
				Key:      "1",
				Label:    "health information",
				Action:   ActionHealth,
				Response: "Safe Youth gives you trusted information about health, relationships and prevention, and connects young people with support when they need it.",
			},
			{
				Key:      "2",
				Label:    "counseling and support",
				Action:   ActionCounseling,
				Response: "To avoid an early pregnancy, wait until you are ready, focus on your studies and avoid risky situations. If you are in a relationship, always use protection and ask a health professional for advice.",
			},
			{
				Key:      "3",
				Label:    "an operator",
				Action:   ActionOperator,
				Response: "Please hold while we connect you to a Safe Youth operator.",
			},
		},
	},
}

// Languages returns the languages that have a built-in menu, sorted.
func Languages() []string {
	langs := make([]string, 0, len(builtins))
	for lang := range builtins {
		langs = append(langs, lang)
	}
	slices.Sort(langs)
	return langs
}

// Builtin returns a copy of the compiled-in menu for lang.
func Builtin(lang string) (*Config, error) {
	cfg, ok := builtins[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownLanguage, lang, Languages())
	}
	return cfg.clone(), nil
}

// clone deep-copies the option slice and choices map.
func (c Config) clone() *Config {
	c.Options = slices.Clone(c.Options)
	c.Choices = maps.Clone(c.Choices)
	return &c
}
