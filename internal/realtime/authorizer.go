package realtime

import (
	"context"
	"time"
)

// Authorizer decides whether a participant may join a conversation room.
type Authorizer interface {
	CanJoin(ctx context.Context, conversationID, participantID string) (bool, error)
}

// AllowAll trusts the participant id supplied by the transport layer.
type AllowAll struct{}

// CanJoin always allows.
func (AllowAll) CanJoin(context.Context, string, string) (bool, error) { return true, nil }

// MembershipChecker answers whether a participant is the buyer of a quote
// request or a lender holding a quote on it.
type MembershipChecker interface {
	IsParticipant(ctx context.Context, conversationID, participantID string) (bool, error)
}

// StoreAuthorizer allows a join only for the request's buyer or a quoting lender.
type StoreAuthorizer struct {
	checker MembershipChecker
	timeout time.Duration
}

// NewStoreAuthorizer creates an authorizer backed by checker.
func NewStoreAuthorizer(checker MembershipChecker, timeout time.Duration) *StoreAuthorizer {
	if timeout <= 0 {
		timeout = defaultPersistTimeout
	}
	return &StoreAuthorizer{checker: checker, timeout: timeout}
}

// CanJoin queries the store.
func (a *StoreAuthorizer) CanJoin(ctx context.Context, conversationID, participantID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.checker.IsParticipant(ctx, conversationID, participantID)
}
