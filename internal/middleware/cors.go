// Package middleware provides HTTP middleware for the chat server.
package middleware

import "net/http"

// MatchOrigin reports whether origin is permitted by allowedOrigins and
// whether it matched an explicit entry rather than the "*" wildcard.
func MatchOrigin(allowedOrigins []string, origin string) (allowed, explicit bool) {
	for _, o := range allowedOrigins {
		if o != "*" && o == origin {
			return true, true
		}
		if o == "*" {
			allowed = true
		}
	}
	return allowed, false
}

// CORS returns middleware that handles CORS headers.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if allowed, explicit := MatchOrigin(allowedOrigins, origin); allowed && origin != "" {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, X-Participant-ID, X-Participant-Role, Last-Event-ID")
				h.Add("Vary", "Origin")
				// Credentials only for explicit origins; echoing a wildcard match with
				// Allow-Credentials enables CSRF.
				if explicit {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
