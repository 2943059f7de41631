package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Metric route labels for voice callbacks.
const (
	routeEnter  = "enter"
	routeHandle = "handle"
)

// handleEnterMenu answers the call-start callback, and every redirect back to
// it, with the greeting and menu gather.
func (s *Server) handleEnterMenu(w http.ResponseWriter, r *http.Request) {
	s.metrics.ObserveCallback(routeEnter)

	s.logger.Info("ivr menu entered",
		"call_sid", callSIDOrLocal(r.FormValue("CallSid")),
		"request_id", chimw.GetReqID(r.Context()),
	)
	s.writeTwiML(w, s.ivr.EnterMenu())
}

// handleDigit answers the gather callback. An unreadable payload is treated
// like a missing digit so the caller hears the invalid-input branch.
func (s *Server) handleDigit(w http.ResponseWriter, r *http.Request) {
	s.metrics.ObserveCallback(routeHandle)

	digit, sid, err := readDigits(w, r)
	if err != nil {
		s.logger.Warn("unreadable digit callback", "error", err)
	}

	resp, outcome := s.ivr.HandleDigit(digit)
	s.metrics.ObserveDigit(outcome)

	s.logger.Info("ivr digit handled",
		"call_sid", callSIDOrLocal(sid),
		"request_id", chimw.GetReqID(r.Context()),
		"digit", digit,
		"outcome", outcome,
	)
	s.writeTwiML(w, resp)
}

// readDigits extracts the Digits and CallSid fields from a form-encoded or
// JSON callback. JSON clients may send the digit as a string or a bare number.
func readDigits(w http.ResponseWriter, r *http.Request) (digit, sid string, err error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return r.FormValue("Digits"), r.FormValue("CallSid"), nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxDigitsBodySize)
	var body struct {
		Digits  json.RawMessage `json:"Digits"`
		CallSid string          `json:"CallSid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return "", "", nil
		}
		return "", "", fmt.Errorf("decoding digit payload: %w", err)
	}

	raw := bytes.TrimSpace(body.Digits)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", body.CallSid, nil
	}
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &digit); err != nil {
			return "", body.CallSid, fmt.Errorf("decoding Digits: %w", err)
		}
		return digit, body.CallSid, nil
	}
	return string(raw), body.CallSid, nil
}

// callSIDOrLocal returns sid, or a generated local identifier when the
// provider sent none.
func callSIDOrLocal(sid string) string {
	if sid != "" {
		return sid
	}
	return "local-" + uuid.NewString()
}
