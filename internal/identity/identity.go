// Package identity carries the participant identity supplied by the upstream
// session collaborator. Values are trusted as given.
package identity

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/ashureev/quotechat/internal/domain"
)

const (
	ParticipantHeaderName = "X-Participant-ID"
	RoleHeaderName        = "X-Participant-Role"
	participantQueryParam = "participant_id"
	roleQueryParam        = "role"
)

type contextKey int

const (
	participantKey contextKey = iota
)

var participantIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:@-]{1,128}$`)

// FromContext extracts the participant from the request context.
// The zero Participant is returned when the request carried no identity.
func FromContext(ctx context.Context) domain.Participant {
	if v, ok := ctx.Value(participantKey).(domain.Participant); ok {
		return v
	}
	return domain.Participant{}
}

// WithParticipant returns a copy of ctx carrying p.
func WithParticipant(ctx context.Context, p domain.Participant) context.Context {
	return context.WithValue(ctx, participantKey, p)
}

func sanitizeParticipantID(id string) string {
	id = strings.TrimSpace(id)
	if !participantIDPattern.MatchString(id) {
		return ""
	}
	return id
}

// FromRequest reads the participant from headers, falling back to query
// parameters because browsers cannot set headers on WebSocket or EventSource.
func FromRequest(r *http.Request) domain.Participant {
	id := r.Header.Get(ParticipantHeaderName)
	if id == "" {
		id = r.URL.Query().Get(participantQueryParam)
	}
	role := r.Header.Get(RoleHeaderName)
	if role == "" {
		role = r.URL.Query().Get(roleQueryParam)
	}
	id = sanitizeParticipantID(id)
	if id == "" {
		return domain.Participant{}
	}
	return domain.Participant{ID: id, Role: domain.ParseRole(role)}
}

// Middleware injects the trusted participant identity into the request context.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := FromRequest(r)
			if p.ID == "" {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithParticipant(r.Context(), p)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
