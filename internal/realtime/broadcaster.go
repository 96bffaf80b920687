package realtime

import (
	"log/slog"

	"github.com/ashureev/quotechat/internal/metrics"
)

// Broadcaster fans events out to live connections. Delivery is best effort
// while connected: no retry, no acknowledgement, at most once per connection.
type Broadcaster struct {
	registry *Registry
	log      *slog.Logger
}

// NewBroadcaster creates a broadcaster over registry.
func NewBroadcaster(registry *Registry, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{registry: registry, log: logger}
}

// BroadcastToRoom pushes evt to every connection joined to conversationID and
// returns how many accepted it.
func (b *Broadcaster) BroadcastToRoom(conversationID string, evt Event) int {
	members := b.registry.MembersOf(conversationID)
	if len(members) == 0 {
		b.log.Debug("[BROADCAST] No members in room", "conversation_id", conversationID, "type", evt.Type())
		return 0
	}
	return b.deliver(members, evt)
}

// BroadcastToAll pushes evt to every attached connection regardless of room
// membership. Role filtering is left to the client.
func (b *Broadcaster) BroadcastToAll(evt Event) int {
	return b.deliver(b.registry.Connections(), evt)
}

// NotifyStatusChange tells a conversation room that a quote status changed.
func (b *Broadcaster) NotifyStatusChange(conversationID, status string) int {
	return b.BroadcastToRoom(conversationID, StatusUpdate{ConversationID: conversationID, Status: status})
}

// SendTo pushes evt to a single connection.
func (b *Broadcaster) SendTo(conn *Connection, evt Event) error {
	payload, err := Encode(evt)
	if err != nil {
		b.log.Error("[SEND] Failed to encode event", "error", err, "type", evt.Type())
		return err
	}
	if err := conn.Send(payload); err != nil {
		derr := &DeliveryError{ConnID: conn.ID, Err: err}
		metrics.DeliveryFailures.WithLabelValues(deliveryReason(err)).Inc()
		b.log.Warn("[SEND] Delivery failed", "error", derr, "type", evt.Type())
		return derr
	}
	metrics.EventsDelivered.WithLabelValues(string(evt.Type())).Inc()
	return nil
}

// deliver encodes evt once and enqueues the same bytes to each connection.
// A failure on one connection is logged and never stops the others.
func (b *Broadcaster) deliver(conns []*Connection, evt Event) int {
	payload, err := Encode(evt)
	if err != nil {
		b.log.Error("[BROADCAST] Failed to encode event", "error", err, "type", evt.Type())
		return 0
	}

	delivered := 0
	for _, conn := range conns {
		if err := conn.Send(payload); err != nil {
			metrics.DeliveryFailures.WithLabelValues(deliveryReason(err)).Inc()
			b.log.Warn("[BROADCAST] Delivery failed",
				"error", &DeliveryError{ConnID: conn.ID, Err: err},
				"type", evt.Type(),
			)
			continue
		}
		delivered++
	}
	metrics.EventsDelivered.WithLabelValues(string(evt.Type())).Add(float64(delivered))
	return delivered
}
