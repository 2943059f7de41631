package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/safeyouth/ivr/internal/metrics"
	"github.com/safeyouth/ivr/internal/tts"
)

// Synthesizer turns text into a playable audio URL.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) (tts.Result, error)
}

// ttsResponse is the body of a successful GET /tts.
type ttsResponse struct {
	URL string `json:"url"`
}

// handleTTS converts the text query parameter to an audio URL in the
// requested language, or the fallback language when that one is unavailable.
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text := q.Get("text")
	lang := q.Get("lang")

	if msg := validateRequiredStringLen("text", text, maxTTSTextLen); msg != "" {
		s.metrics.ObserveTTS(metrics.TTSRejected)
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validateLanguageCode("lang", lang); msg != "" {
		s.metrics.ObserveTTS(metrics.TTSRejected)
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	res, err := s.tts.Synthesize(r.Context(), text, lang)
	if err != nil {
		switch {
		case errors.Is(err, tts.ErrInvalidInput):
			s.metrics.ObserveTTS(metrics.TTSRejected)
			writeError(w, http.StatusBadRequest, "text is required")
		case errors.Is(err, context.Canceled):
			s.logger.Debug("tts request canceled by client")
		default:
			s.metrics.ObserveTTS(metrics.TTSFailed)
			s.logger.Error("speech synthesis failed", "lang", lang, "error", err)
			writeError(w, http.StatusBadGateway, "speech synthesis failed")
		}
		return
	}

	switch {
	case res.Retried:
		s.metrics.ObserveTTS(metrics.TTSRetried)
	case res.Substituted:
		s.metrics.ObserveTTS(metrics.TTSFallback)
	default:
		s.metrics.ObserveTTS(metrics.TTSOK)
	}

	writeJSON(w, http.StatusOK, ttsResponse{URL: res.URL})
}
