package middleware

import (
	"net/http"
	"strings"
)

// CaseInsensitivePrefix lowercases paths under prefix so printed QR links,
// which scanners sometimes uppercase, still resolve. Path segments after
// the prefix are left alone since they carry ids.
func CaseInsensitivePrefix(prefix string) func(http.Handler) http.Handler {
	prefix = strings.ToLower(prefix)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := r.URL.Path
			if len(p) >= len(prefix) && strings.EqualFold(p[:len(prefix)], prefix) {
				r.URL.Path = prefix + p[len(prefix):]
				r.URL.RawPath = ""
			}
			next.ServeHTTP(w, r)
		})
	}
}
