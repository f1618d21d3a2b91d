package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// public routes are served without a key.
var public = map[string]bool{"/health": true, "/metrics": true}

// requireAPIKey rejects requests whose "Authorization: Bearer <key>" header
// does not carry one of keys. Blank keys are ignored; with none left the
// middleware is a no-op.
func requireAPIKey(keys []string) func(http.Handler) http.Handler {
	var accepted [][]byte
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			accepted = append(accepted, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(accepted) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if msg := checkBearer(r.Header.Get("Authorization"), accepted); msg != "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="ragpipe"`)
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// checkBearer returns an error message, empty when the header is accepted.
func checkBearer(header string, accepted [][]byte) string {
	if header == "" {
		return "missing authorization header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "authorization header must use Bearer scheme"
	}
	got := []byte(strings.TrimSpace(token))
	match := 0
	for _, k := range accepted {
		match |= subtle.ConstantTimeCompare(got, k)
	}
	if match == 0 {
		return "invalid api key"
	}
	return ""
}
