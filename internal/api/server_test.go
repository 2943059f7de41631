package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/safeyouth/ivr/internal/api/middleware"
	"github.com/safeyouth/ivr/internal/config"
	"github.com/safeyouth/ivr/internal/ivr"
	"github.com/safeyouth/ivr/internal/menu"
	"github.com/safeyouth/ivr/internal/metrics"
	"github.com/safeyouth/ivr/internal/tts"
	"github.com/safeyouth/ivr/internal/tts/google"
	"github.com/safeyouth/ivr/internal/twiml"
)

const testOperator = "+250780000000"

// fakeProvider is a tts.Provider that fails for the languages in fail.
type fakeProvider struct {
	fail  map[string]bool
	calls []string
}

func (p *fakeProvider) Supports(lang string) bool { return lang == "en" || lang == "fr" }

func (p *fakeProvider) AudioURL(ctx context.Context, text, lang string) (string, error) {
	p.calls = append(p.calls, lang)
	if p.fail[lang] {
		return "", errors.New("provider unavailable")
	}
	return "https://tts.example/" + lang + "/" + url.PathEscape(text), nil
}

// panicSynth panics on every call.
type panicSynth struct{}

func (panicSynth) Synthesize(context.Context, string, string) (tts.Result, error) {
	panic("synthesizer exploded")
}

type testEnv struct {
	srv      *Server
	ctrl     *ivr.Controller
	provider *fakeProvider
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		CORSOrigins: "*",
		TTSRate:     1000,
		TTSBurst:    1000,
	}
}

func newTestEnv(t *testing.T, lang string, cfg *config.Config, synth Synthesizer) *testEnv {
	t.Helper()

	m, err := menu.Builtin(lang)
	if err != nil {
		t.Fatal(err)
	}
	ctrl, err := ivr.New(m, ivr.Options{OperatorNumber: testOperator}, discardLogger())
	if err != nil {
		t.Fatalf("ivr.New() error: %v", err)
	}

	provider := &fakeProvider{fail: map[string]bool{}}
	if synth == nil {
		synth = tts.NewBridge(provider, tts.DefaultConfig(), discardLogger())
	}

	collector := metrics.NewCollector(ctrl, time.Now())
	reg := prometheus.NewRegistry()
	reg.MustRegister(collector)

	srv := NewServer(cfg, Deps{
		IVR:      ctrl,
		TTS:      synth,
		Metrics:  collector,
		Gatherer: reg,
		Logger:   discardLogger(),
	})
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, ctrl: ctrl, provider: provider}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.srv.ServeHTTP(rr, req)
	return rr
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func marshal(t *testing.T, resp *twiml.Response) string {
	t.Helper()
	b, err := resp.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func assertTwiML(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != twiml.ContentType {
		t.Fatalf("expected Content-Type %s, got %q", twiml.ContentType, ct)
	}
	if got := canonicalXML(t, rr.Body.String()); got != canonicalXML(t, want) {
		t.Fatalf("unexpected voice response:\n got %s\nwant %s", rr.Body.String(), want)
	}
}

// canonicalXML re-encodes a voice document with attributes in name order,
// since the markup writer does not fix attribute order.
func canonicalXML(t *testing.T, doc string) string {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(doc))
	var b strings.Builder
	enc := xml.NewEncoder(&b)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("parsing voice response %q: %v", doc, err)
		}
		switch v := tok.(type) {
		case xml.ProcInst:
			continue
		case xml.StartElement:
			slices.SortFunc(v.Attr, func(a, b xml.Attr) int {
				return strings.Compare(a.Name.Local, b.Name.Local)
			})
			tok = v
		}
		if err := enc.EncodeToken(tok); err != nil {
			t.Fatalf("re-encoding voice response: %v", err)
		}
	}
	if err := enc.Flush(); err != nil {
		t.Fatal(err)
	}
	return b.String()
}

// signForm computes the provider signature for a form callback to fullURL.
func signForm(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	payload := fullURL
	for _, k := range keys {
		payload += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestEnterMenuRoutes(t *testing.T) {
	env := newTestEnv(t, "rw", testConfig(), nil)
	want := marshal(t, env.ctrl.EnterMenu())

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		t.Run(method, func(t *testing.T) {
			rr := env.do(httptest.NewRequest(method, "/ivr", nil))
			assertTwiML(t, rr, want)
		})
	}
}

func TestHandleDigitOperator(t *testing.T) {
	env := newTestEnv(t, "rw", testConfig(), nil)

	rr := env.do(postForm("/ivr/handle", url.Values{"Digits": {"3"}, "CallSid": {"CA42"}}))
	assertTwiML(t, rr, marshal(t, mustHandle(t, env.ctrl, "3")))

	body := rr.Body.String()
	if !strings.Contains(body, `<Dial timeout="30">+250780000000</Dial>`) {
		t.Errorf("expected operator dial, got %s", body)
	}
	if strings.Contains(body, "<Gather") {
		t.Errorf("operator transfer must not gather, got %s", body)
	}
}

func TestHandleDigitInvalidReplaysMenu(t *testing.T) {
	env := newTestEnv(t, "rw", testConfig(), nil)
	want := marshal(t, env.ctrl.Fallback())

	for _, digits := range []string{"9", "", "12", "*"} {
		t.Run("digits="+digits, func(t *testing.T) {
			rr := env.do(postForm("/ivr/handle", url.Values{"Digits": {digits}}))
			assertTwiML(t, rr, want)
		})
	}
}

func TestHandleDigitJSON(t *testing.T) {
	env := newTestEnv(t, "en", testConfig(), nil)

	tests := []struct {
		name  string
		body  string
		digit string
	}{
		{"string digit", `{"Digits":"1","CallSid":"CA1"}`, "1"},
		{"numeric digit", `{"Digits":2}`, "2"},
		{"missing digit", `{}`, ""},
		{"null digit", `{"Digits":null}`, ""},
		{"empty body", ``, ""},
		{"malformed body", `{"Digits":`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(postJSON("/ivr/handle", tt.body))
			assertTwiML(t, rr, marshal(t, mustHandle(t, env.ctrl, tt.digit)))
		})
	}
}

func mustHandle(t *testing.T, ctrl *ivr.Controller, digit string) *twiml.Response {
	t.Helper()
	resp, _ := ctrl.HandleDigit(digit)
	return resp
}

func TestConfigRoundTrip(t *testing.T) {
	for _, lang := range menu.Languages() {
		t.Run(lang, func(t *testing.T) {
			env := newTestEnv(t, lang, testConfig(), nil)

			rr := env.do(httptest.NewRequest(http.MethodGet, "/config", nil))
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}

			got, err := menu.Decode(rr.Body)
			if err != nil {
				t.Fatalf("decoding /config: %v", err)
			}
			if !reflect.DeepEqual(got, env.ctrl.Menu()) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, env.ctrl.Menu())
			}
			for i, o := range got.Options {
				if want := env.ctrl.Menu().Options[i]; o.Key != want.Key || o.Label != want.Label {
					t.Errorf("option %d = %s/%s, want %s/%s", i, o.Key, o.Label, want.Key, want.Label)
				}
			}
		})
	}
}

func TestTTSSuccess(t *testing.T) {
	env := newTestEnv(t, "rw", testConfig(), nil)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/tts?text=hello&lang=fr", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["url"] != "https://tts.example/fr/hello" {
		t.Errorf("url = %q", body["url"])
	}
	if len(body) != 1 {
		t.Errorf("expected only the url field, got %v", body)
	}
}

func TestTTSDefaultLanguageFallsBack(t *testing.T) {
	env := newTestEnv(t, "rw", testConfig(), nil)

	// No lang: the default (rw) is unsupported, so English is used.
	rr := env.do(httptest.NewRequest(http.MethodGet, "/tts?text=muraho", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !reflect.DeepEqual(env.provider.calls, []string{"en"}) {
		t.Errorf("provider calls = %v, want [en]", env.provider.calls)
	}
}

func TestTTSRegionSubtagFallsBack(t *testing.T) {
	env := newTestEnv(t, "rw", testConfig(), nil)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/tts?text=hello&lang=es-419", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["url"] != "https://tts.example/en/hello" {
		t.Errorf("url = %q, want the fallback language", body["url"])
	}
	if !reflect.DeepEqual(env.provider.calls, []string{"en"}) {
		t.Errorf("provider calls = %v, want [en]", env.provider.calls)
	}
}

func TestTTSBadRequest(t *testing.T) {
	env := newTestEnv(t, "rw", testConfig(), nil)

	for _, q := range []string{
		"",
		"?lang=en",
		"?text=%20%20",
		"?text=" + strings.Repeat("a", maxTTSTextLen+1),
		"?text=hi&lang=en%3B",
	} {
		t.Run(q, func(t *testing.T) {
			rr := env.do(httptest.NewRequest(http.MethodGet, "/tts"+q, nil))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			var body errorBody
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body.Error == "" {
				t.Fatalf("expected error body, got %q", rr.Body.String())
			}
		})
	}
	if len(env.provider.calls) != 0 {
		t.Errorf("provider called for invalid requests: %v", env.provider.calls)
	}
}

func TestTTSProviderFailureReturns502(t *testing.T) {
	env := newTestEnv(t, "rw", testConfig(), nil)
	env.provider.fail["fr"] = true
	env.provider.fail["en"] = true

	rr := env.do(httptest.NewRequest(http.MethodGet, "/tts?text=bonjour&lang=fr", nil))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	if !reflect.DeepEqual(env.provider.calls, []string{"fr", "en"}) {
		t.Errorf("provider calls = %v, want exactly one retry [fr en]", env.provider.calls)
	}
}

func TestTTSRetrySucceeds(t *testing.T) {
	env := newTestEnv(t, "rw", testConfig(), nil)
	env.provider.fail["fr"] = true

	rr := env.do(httptest.NewRequest(http.MethodGet, "/tts?text=bonjour&lang=fr", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "https://tts.example/en/bonjour") {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
}

func TestTTSGoogleProviderKinyarwanda(t *testing.T) {
	provider, err := google.New(google.Config{})
	if err != nil {
		t.Fatal(err)
	}
	bridge := tts.NewBridge(provider, tts.DefaultConfig(), discardLogger())
	env := newTestEnv(t, "rw", testConfig(), bridge)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/tts?text=hello&lang=rw", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	u, err := url.Parse(body["url"])
	if err != nil {
		t.Fatalf("invalid url %q: %v", body["url"], err)
	}
	if got := u.Query().Get("tl"); got != "en" {
		t.Errorf("tl = %q, want en", got)
	}
	if got := u.Query().Get("q"); got != "hello" {
		t.Errorf("q = %q, want hello", got)
	}
}

func TestTTSRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.TTSRate = 1
	cfg.TTSBurst = 1
	env := newTestEnv(t, "rw", cfg, nil)

	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/tts?text=hello&lang=en", nil)
		r.RemoteAddr = "10.1.1.1:5000"
		return r
	}

	if rr := env.do(req()); rr.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rr.Code)
	}
	if rr := env.do(req()); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rr.Code)
	}

	// Voice callbacks are never rate limited.
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "/ivr", nil)
		r.RemoteAddr = "10.1.1.1:5000"
		if rr := env.do(r); rr.Code != http.StatusOK {
			t.Fatalf("voice callback %d: expected 200, got %d", i, rr.Code)
		}
	}
}

func TestTTSPanicReturnsJSON500(t *testing.T) {
	env := newTestEnv(t, "rw", testConfig(), panicSynth{})

	rr := env.do(httptest.NewRequest(http.MethodGet, "/tts?text=hello", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json error, got %q", ct)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "rw", testConfig(), nil)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"status":"ok"}` {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
}

func TestMetricsCountCallbacks(t *testing.T) {
	env := newTestEnv(t, "rw", testConfig(), nil)

	env.do(httptest.NewRequest(http.MethodGet, "/ivr", nil))
	env.do(postForm("/ivr/handle", url.Values{"Digits": {"1"}}))
	env.do(postForm("/ivr/handle", url.Values{"Digits": {"7"}}))
	env.do(httptest.NewRequest(http.MethodGet, "/tts?text=hi&lang=en", nil))

	rr := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`safeyouth_ivr_callbacks_total{route="enter"} 1`,
		`safeyouth_ivr_callbacks_total{route="handle"} 2`,
		`safeyouth_ivr_digits_total{outcome="health"} 1`,
		`safeyouth_ivr_digits_total{outcome="invalid"} 1`,
		`safeyouth_tts_requests_total{result="ok"} 1`,
		`safeyouth_ivr_menu_options{language="rw"} 3`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestSignatureValidation(t *testing.T) {
	cfg := testConfig()
	cfg.AuthToken = "secret"
	cfg.PublicURL = "https://ivr.example.org"
	env := newTestEnv(t, "rw", cfg, nil)

	form := url.Values{"Digits": {"1"}, "CallSid": {"CA7"}}

	rr := env.do(postForm("/ivr/handle", form))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("unsigned callback: expected 403, got %d", rr.Code)
	}

	req := postForm("/ivr/handle", form)
	req.Header.Set(middleware.SignatureHeader, signForm("secret", "https://ivr.example.org/ivr/handle", form))
	rr = env.do(req)
	assertTwiML(t, rr, marshal(t, mustHandle(t, env.ctrl, "1")))

	// Programmatic endpoints are not signed.
	if rr := env.do(httptest.NewRequest(http.MethodGet, "/config", nil)); rr.Code != http.StatusOK {
		t.Fatalf("/config: expected 200, got %d", rr.Code)
	}
}

func TestSecurityAndCORSHeaders(t *testing.T) {
	env := newTestEnv(t, "rw", testConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	req.Header.Set("Origin", "https://dashboard.safeyouth.org")
	rr := env.do(req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, "rw", testConfig(), nil)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
