package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/twilio/twilio-go/client"
)

// SignatureHeader carries the provider's request signature.
const SignatureHeader = "X-Twilio-Signature"

// ValidateSignature returns middleware that rejects telephony callbacks
// whose signature does not match. publicURL is the externally visible base
// URL the provider was configured with; the request path and query are
// appended to it. Rejected requests get 403.
func ValidateSignature(authToken, publicURL string) func(http.Handler) http.Handler {
	base := strings.TrimRight(publicURL, "/")
	validator := client.NewRequestValidator(authToken)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			params := map[string]string{}
			if r.Method == http.MethodPost && isFormRequest(r) {
				if err := r.ParseForm(); err != nil {
					writeError(w, http.StatusBadRequest, "malformed form body")
					return
				}
				for k := range r.PostForm {
					params[k] = r.PostForm.Get(k)
				}
			}

			got := r.Header.Get(SignatureHeader)
			if got == "" || !validator.Validate(base+r.URL.RequestURI(), params, got) {
				slog.Warn("rejected unsigned provider callback",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"signature_present", got != "",
				)
				writeError(w, http.StatusForbidden, "invalid request signature")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isFormRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded")
}
