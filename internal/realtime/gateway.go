package realtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/quotechat/internal/domain"
	"github.com/ashureev/quotechat/internal/metrics"
	"github.com/ashureev/quotechat/internal/shared"
	"github.com/ashureev/quotechat/internal/store"
)

const defaultPersistTimeout = 5 * time.Second

// MessageStore is the durable storage the gateway writes through.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg *domain.Message) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error)
}

// Gateway makes a chat message durable before it is considered sent.
type Gateway struct {
	store   MessageStore
	timeout time.Duration
	log     *slog.Logger
}

// NewGateway creates a gateway. Every write is bounded by timeout.
func NewGateway(s MessageStore, timeout time.Duration, logger *slog.Logger) *Gateway {
	if timeout <= 0 {
		timeout = defaultPersistTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{store: s, timeout: timeout, log: logger}
}

// RecordMessage synchronously stores a message and returns it with its
// generated id and timestamp. Any failure, including the write timeout, is
// returned as *PersistenceError and the message must be treated as never sent.
func (g *Gateway) RecordMessage(ctx context.Context, in domain.NewMessage) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	msg := in.Message()
	start := time.Now()
	err := g.store.InsertMessage(ctx, msg)
	metrics.PersistLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		reason := shared.StorageFailureReason(err)
		metrics.PersistenceFailures.WithLabelValues(reason).Inc()
		g.log.Error("Failed to persist message",
			"error", err,
			"reason", reason,
			"conversation_id", in.ConversationID,
			"sender_id", in.SenderID,
		)
		return nil, &PersistenceError{ConversationID: in.ConversationID, Reason: reason, Err: err}
	}

	origin := "human"
	if msg.IsAutomated {
		origin = "automated"
	}
	metrics.MessagesPersisted.WithLabelValues(origin).Inc()
	return msg, nil
}

// History returns the latest messages of a conversation, oldest first.
func (g *Gateway) History(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	messages, err := g.store.ListMessages(ctx, conversationID, store.ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []*domain.Message{}
	}
	return messages, nil
}
