package api

import (
	"encoding/xml"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/safeyouth/ivr/internal/api/middleware"
	"github.com/safeyouth/ivr/internal/config"
	"github.com/safeyouth/ivr/internal/ivr"
	"github.com/safeyouth/ivr/internal/metrics"
	"github.com/safeyouth/ivr/internal/twiml"
)

// Deps are the collaborators the HTTP layer serves.
type Deps struct {
	IVR     *ivr.Controller
	TTS     Synthesizer
	Metrics *metrics.Collector
	// Gatherer backs /metrics. Nil uses prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router     *chi.Mux
	cfg        *config.Config
	ivr        *ivr.Controller
	tts        Synthesizer
	metrics    *metrics.Collector
	gatherer   prometheus.Gatherer
	ttsLimiter *middleware.IPRateLimiter
	logger     *slog.Logger

	// fallback is the serialized invalid-input response sent when a voice
	// callback cannot be answered normally.
	fallback []byte
}

// NewServer creates the HTTP handler with all routes mounted. Close must be
// called to stop the rate limiter's cleanup goroutine.
func NewServer(cfg *config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		router:     chi.NewRouter(),
		cfg:        cfg,
		ivr:        deps.IVR,
		tts:        deps.TTS,
		metrics:    deps.Metrics,
		gatherer:   gatherer,
		ttsLimiter: middleware.NewIPRateLimiter(middleware.TTSRateLimitConfig(cfg.TTSRate, cfg.TTSBurst)),
		logger:     logger.With("component", "api"),
	}

	fallback, err := deps.IVR.Fallback().Marshal()
	if err != nil {
		s.logger.Error("failed to prepare fallback voice response", "error", err)
		fallback = staticFallback(deps.IVR.EntryURL())
	}
	s.fallback = fallback

	s.routes()
	return s
}

// staticFallback is a minimal response that sends the caller back to the
// start of the menu.
func staticFallback(entryURL string) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<Response><Redirect method="POST">`)
	xml.EscapeText(&b, []byte(entryURL)) //nolint:errcheck
	b.WriteString(`</Redirect></Response>`)
	return []byte(b.String())
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases background resources.
func (s *Server) Close() {
	s.ttsLimiter.Stop()
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes() {
	r := s.router

	// Global middleware stack.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(s.logger))
	r.Use(middleware.SecurityHeaders(strings.HasPrefix(s.cfg.PublicURL, "https://")))
	r.Use(middleware.CORS(middleware.ParseCORSOrigins(s.cfg.CORSOrigins)))

	// Telephony provider callbacks. These always answer with markup.
	r.Group(func(r chi.Router) {
		r.Use(middleware.VoiceRecoverer(twiml.ContentType, func() []byte { return s.fallback }))
		if s.cfg.SignatureValidationEnabled() {
			r.Use(middleware.ValidateSignature(s.cfg.AuthToken, s.cfg.PublicURL))
		}

		r.Get(s.ivr.EntryURL(), s.handleEnterMenu)
		r.Post(s.ivr.EntryURL(), s.handleEnterMenu)
		r.Post(s.ivr.HandleURL(), s.handleDigit)
	})

	// Programmatic clients.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recoverer)

		r.With(middleware.RateLimit(s.ttsLimiter, func(*http.Request) {
			s.metrics.ObserveTTS(metrics.TTSRejected)
		})).Get("/tts", s.handleTTS)
		r.Get("/config", s.handleConfig)
		r.Get("/health", s.handleHealth)
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	s.logger.Debug("http routes mounted")
}
