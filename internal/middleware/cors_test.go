package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMatchOrigin(t *testing.T) {
	allowed, explicit := MatchOrigin([]string{"*"}, "https://x.example")
	if !allowed || explicit {
		t.Errorf("wildcard: got allowed=%v explicit=%v", allowed, explicit)
	}
	allowed, explicit = MatchOrigin([]string{"*", "https://x.example"}, "https://x.example")
	if !allowed || !explicit {
		t.Errorf("explicit: got allowed=%v explicit=%v", allowed, explicit)
	}
	allowed, _ = MatchOrigin([]string{"https://y.example"}, "https://x.example")
	if allowed {
		t.Error("expected origin to be rejected")
	}
}

func TestCORSCredentialsOnlyForExplicitOrigin(t *testing.T) {
	h := CORS([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://x.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://x.example" {
		t.Errorf("Expected echoed origin, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("Expected no credentials header for wildcard, got %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS([]string{"https://x.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/quote-requests/notify", nil)
	req.Header.Set("Origin", "https://x.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if called {
		t.Error("preflight should not reach the handler")
	}
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Expected credentials for explicit origin, got %q", got)
	}
}
