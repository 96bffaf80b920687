// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/quotechat/internal/domain"
)

// DefaultHistoryLimit is used when a history fetch does not specify a limit.
const DefaultHistoryLimit = 50

// MaxHistoryLimit caps a single history fetch.
const MaxHistoryLimit = 200

// Repository defines the interface for persisting chat messages and reading
// the quote-request ownership needed to authorize room joins.
type Repository interface {
	// InsertMessage durably stores msg. An empty ID or zero CreatedAt is
	// assigned by the store and written back into msg.
	InsertMessage(ctx context.Context, msg *domain.Message) error

	// ListMessages returns the most recent limit messages of a conversation,
	// oldest first.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error)

	// IsParticipant reports whether participantID is the buyer of the quote
	// request or a lender holding a quote on it.
	IsParticipant(ctx context.Context, conversationID, participantID string) (bool, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// ClampLimit normalizes a caller-supplied history limit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}
