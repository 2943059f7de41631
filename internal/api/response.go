package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/safeyouth/ivr/internal/twiml"
)

// errorBody is the JSON shape of every error response: { "error": "..." }.
type errorBody struct {
	Error string `json:"error"`
}

// writeJSON writes data as the JSON response body with the given status code.
// Bodies are not wrapped: clients of /config and /tts consume them as-is.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode json response", "error", err)
	}
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorBody{Error: msg}); err != nil {
		slog.Error("failed to encode json error response", "error", err)
	}
}

// writeTwiML writes a voice response. Provider callbacks are always answered
// with 200; if resp cannot be serialized the server's fallback markup is sent.
func (s *Server) writeTwiML(w http.ResponseWriter, resp *twiml.Response) {
	body, err := resp.Marshal()
	if err != nil {
		s.logger.Error("failed to marshal voice response, sending fallback", "error", err)
		body = s.fallback
	}
	w.Header().Set("Content-Type", twiml.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Debug("failed to write voice response", "error", err)
	}
}
