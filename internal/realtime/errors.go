package realtime

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPayload marks a malformed inbound frame. It never reaches the
	// registry or the store.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrNotAuthorized is returned when a participant may not join or send to a
	// conversation.
	ErrNotAuthorized = errors.New("not authorized for conversation")
	// ErrRateLimited is returned when a participant exceeds the send rate.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrConnectionClosed is returned when pushing to a connection that is gone.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrSendBufferFull is returned when a slow client's outbound queue is full.
	ErrSendBufferFull = errors.New("send buffer full")
)

func invalidPayload(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}

// PersistenceError reports a failed durable write. The message it belongs to
// is treated as never sent.
type PersistenceError struct {
	ConversationID string
	Reason         string
	Err            error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist message for conversation %s: %v", e.ConversationID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// DeliveryError reports a failed push to a single recipient.
type DeliveryError struct {
	ConnID string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to connection %s: %v", e.ConnID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func deliveryReason(err error) string {
	switch {
	case errors.Is(err, ErrConnectionClosed):
		return "closed"
	case errors.Is(err, ErrSendBufferFull):
		return "buffer_full"
	default:
		return "write"
	}
}

// clientMessage turns an error into the text sent in an error event.
// Storage internals are not exposed to clients.
func clientMessage(err error) string {
	var pe *PersistenceError
	switch {
	case errors.As(err, &pe):
		return "message could not be saved"
	case errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrNotAuthorized), errors.Is(err, ErrRateLimited):
		return err.Error()
	default:
		return "internal error"
	}
}
