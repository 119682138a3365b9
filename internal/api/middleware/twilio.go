package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// TwilioSignatureHeader carries the provider's request signature.
const TwilioSignatureHeader = "X-Twilio-Signature"

// TwilioSignature computes the X-Twilio-Signature value for a request:
// base64(HMAC-SHA1(authToken, fullURL + each POST key and value, keys sorted)).
func TwilioSignature(authToken, fullURL string, params url.Values) string {
	var b strings.Builder
	b.WriteString(fullURL)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		vals := append([]string(nil), params[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidateTwilioSignature returns middleware that rejects requests whose
// X-Twilio-Signature does not match. requestURL must return the URL exactly
// as the provider called it (scheme, host, path and query), which differs
// from r.URL behind a proxy.
func ValidateTwilioSignature(authToken string, requestURL func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(TwilioSignatureHeader)
			if got == "" {
				slog.Warn("twilio signature missing",
					"request_id", chimw.GetReqID(r.Context()),
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				writeError(w, http.StatusForbidden, "invalid signature")
				return
			}

			if err := r.ParseForm(); err != nil {
				writeError(w, http.StatusBadRequest, "malformed form body")
				return
			}

			fullURL := requestURL(r)
			want := TwilioSignature(authToken, fullURL, r.PostForm)
			if !hmac.Equal([]byte(got), []byte(want)) {
				slog.Warn("twilio signature mismatch",
					"request_id", chimw.GetReqID(r.Context()),
					"url", fullURL,
					"remote_addr", r.RemoteAddr,
				)
				writeError(w, http.StatusForbidden, "invalid signature")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
