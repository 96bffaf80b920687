// Package api provides the HTTP hooks of the quote chat service.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ashureev/quotechat/internal/realtime"
	"github.com/ashureev/quotechat/internal/store"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// Handler provides common handler utilities.
type Handler struct {
	repo store.Repository
	hub  *realtime.Hub
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, hub *realtime.Hub) *Handler {
	return &Handler{
		repo: repo,
		hub:  hub,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return errors.New("invalid JSON body")
	}
	return nil
}

// statusFor maps realtime errors onto HTTP status codes.
func statusFor(err error) int {
	var pe *realtime.PersistenceError
	switch {
	case errors.Is(err, realtime.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, realtime.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.As(err, &pe):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
