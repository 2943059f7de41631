// Package twiml builds voice responses in the telephony provider's markup
// language. A Response accumulates verbs in order; Marshal hands them to the
// Twilio SDK's TwiML writer.
package twiml

import (
	"fmt"
	"strconv"

	sdk "github.com/twilio/twilio-go/twiml"
)

// ContentType is the media type providers expect for voice responses.
const ContentType = "text/xml"

// Verb is one instruction in a Response.
type Verb interface {
	element() sdk.Element
}

// Nestable is a verb that may appear inside a Gather.
type Nestable interface {
	Verb
	nestable()
}

// Say speaks text with the provider's built-in voice.
type Say struct {
	Language string
	Voice    string
	Text     string
}

// Gather plays its nested verbs while collecting DTMF digits, then requests
// Action with the result.
type Gather struct {
	NumDigits int
	Action    string
	Method    string
	Timeout   int
	Verbs     []Nestable
}

// Dial transfers the call to Number.
type Dial struct {
	Timeout  int
	CallerID string
	Number   string
}

// Redirect hands control of the call to another URL.
type Redirect struct {
	Method string
	URL    string
}

func (s *Say) element() sdk.Element {
	return &sdk.VoiceSay{Message: s.Text, Language: s.Language, Voice: s.Voice}
}

func (*Say) nestable() {}

func (g *Gather) element() sdk.Element {
	inner := make([]sdk.Element, 0, len(g.Verbs))
	for _, v := range g.Verbs {
		inner = append(inner, v.element())
	}
	return &sdk.VoiceGather{
		NumDigits:     positive(g.NumDigits),
		Action:        g.Action,
		Method:        g.Method,
		Timeout:       positive(g.Timeout),
		InnerElements: inner,
	}
}

func (d *Dial) element() sdk.Element {
	return &sdk.VoiceDial{Number: d.Number, Timeout: positive(d.Timeout), CallerId: d.CallerID}
}

func (rd *Redirect) element() sdk.Element {
	return &sdk.VoiceRedirect{Url: rd.URL, Method: rd.Method}
}

// positive renders n as an attribute value; zero leaves the attribute out.
func positive(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// Response is the root of a voice document.
type Response struct {
	Verbs []Verb
}

// NewResponse returns an empty Response.
func NewResponse() *Response {
	return &Response{}
}

// Say appends a Say verb and returns it.
func (r *Response) Say(text, language string) *Say {
	s := &Say{Text: text, Language: language}
	r.Verbs = append(r.Verbs, s)
	return s
}

// Gather appends g and returns it so nested verbs can be added.
func (r *Response) Gather(g Gather) *Gather {
	gp := &g
	r.Verbs = append(r.Verbs, gp)
	return gp
}

// Dial appends a Dial verb for number.
func (r *Response) Dial(number string, timeout int) *Dial {
	d := &Dial{Number: number, Timeout: timeout}
	r.Verbs = append(r.Verbs, d)
	return d
}

// Redirect appends a Redirect verb.
func (r *Response) Redirect(url, method string) *Redirect {
	rd := &Redirect{URL: url, Method: method}
	r.Verbs = append(r.Verbs, rd)
	return rd
}

// Say appends a Say verb inside the gather.
func (g *Gather) Say(text, language string) *Say {
	s := &Say{Text: text, Language: language}
	g.Verbs = append(g.Verbs, s)
	return s
}

// Marshal serializes the response, including the XML declaration.
func (r *Response) Marshal() ([]byte, error) {
	elements := make([]sdk.Element, 0, len(r.Verbs))
	for _, v := range r.Verbs {
		elements = append(elements, v.element())
	}
	doc, err := sdk.Voice(elements)
	if err != nil {
		return nil, fmt.Errorf("marshaling twiml: %w", err)
	}
	return []byte(doc), nil
}
