package realtime

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/ashureev/quotechat/internal/domain"
	"github.com/ashureev/quotechat/internal/metrics"
	"github.com/coder/websocket"
)

// Hub handles connection events: it decodes client intents and drives the
// registry, gateway and broadcaster. Frames of one connection are handled in
// order by that connection's reader, which gives per-sender ordering.
type Hub struct {
	registry    *Registry
	broadcaster *Broadcaster
	gateway     *Gateway
	authorizer  Authorizer
	limiter     *RateLimiter
	log         *slog.Logger
}

// NewHub wires the realtime components. A nil authorizer trusts every join;
// a nil limiter disables send throttling.
func NewHub(registry *Registry, broadcaster *Broadcaster, gateway *Gateway, authorizer Authorizer, limiter *RateLimiter, logger *slog.Logger) *Hub {
	if authorizer == nil {
		authorizer = AllowAll{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		registry:    registry,
		broadcaster: broadcaster,
		gateway:     gateway,
		authorizer:  authorizer,
		limiter:     limiter,
		log:         logger,
	}
}

// Registry returns the hub's connection registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Gateway returns the hub's persistence gateway.
func (h *Hub) Gateway() *Gateway {
	return h.gateway
}

// Connect registers a newly opened connection.
func (h *Hub) Connect(conn *Connection) {
	h.registry.Attach(conn)
	h.log.Info("Realtime connection opened",
		"conn_id", conn.ID,
		"participant_id", conn.Participant.ID,
		"role", conn.Participant.Role,
		"transport", conn.Kind,
	)
}

// Disconnect removes conn from every room and closes it. Safe to call more
// than once.
func (h *Hub) Disconnect(conn *Connection) {
	conn.Close(websocket.StatusNormalClosure, "disconnected")
	if h.registry.Leave(conn) {
		h.log.Info("Realtime connection closed", "conn_id", conn.ID, "participant_id", conn.Participant.ID)
	}
}

// HandleFrame decodes one client frame and dispatches it. Failures are
// reported to conn as an error event and never escalate.
func (h *Hub) HandleFrame(ctx context.Context, conn *Connection, data []byte) {
	intent, err := DecodeIntent(data)
	if err != nil {
		h.reject(conn, err)
		return
	}

	switch in := intent.(type) {
	case JoinChat:
		if err := h.Join(ctx, conn, in); err != nil {
			h.reject(conn, err)
		}
	case SendMessage:
		if _, err := h.Send(ctx, conn, in); err != nil {
			h.reject(conn, err)
		}
	}
}

// Join adds conn to a conversation room after the authorizer agrees.
// Once a connection has an owner it can only join as that participant.
// An unknown connection is ignored.
func (h *Hub) Join(ctx context.Context, conn *Connection, in JoinChat) error {
	owner := h.owner(conn)
	if strings.TrimSpace(in.ParticipantID) == "" {
		in.ParticipantID = owner
	}
	if err := in.Validate(); err != nil {
		return err
	}
	if owner != "" && in.ParticipantID != owner {
		h.log.Warn("Join as another participant rejected", "conn_id", conn.ID, "participant_id", in.ParticipantID, "owner", owner)
		return ErrNotAuthorized
	}

	ok, err := h.authorizer.CanJoin(ctx, in.ConversationID, in.ParticipantID)
	if err != nil {
		h.log.Error("Join authorization failed", "error", err, "conversation_id", in.ConversationID, "participant_id", in.ParticipantID)
		return err
	}
	if !ok {
		h.log.Warn("Join denied", "conversation_id", in.ConversationID, "participant_id", in.ParticipantID, "conn_id", conn.ID)
		return ErrNotAuthorized
	}

	if !h.registry.Join(conn, in.ConversationID, in.ParticipantID) {
		h.log.Debug("Join on unknown connection ignored", "conn_id", conn.ID)
		return nil
	}
	h.log.Info("Joined conversation", "conn_id", conn.ID, "conversation_id", in.ConversationID, "participant_id", in.ParticipantID)
	_ = h.broadcaster.SendTo(conn, Joined{ConversationID: in.ConversationID})
	return nil
}

// Send persists a message from conn and, only once it is stored, broadcasts
// the stored copy to the conversation room. Missing sender and conversation
// ids default to the connection owner and its single joined room. A
// connection may only send to a room it has joined, as its own owner.
func (h *Hub) Send(ctx context.Context, conn *Connection, in SendMessage) (*domain.Message, error) {
	owner := h.owner(conn)
	rooms := h.registry.Rooms(conn)
	if strings.TrimSpace(in.SenderID) == "" {
		in.SenderID = owner
	}
	if strings.TrimSpace(in.ConversationID) == "" && len(rooms) == 1 {
		in.ConversationID = rooms[0]
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.SenderID != owner || !slices.Contains(rooms, in.ConversationID) {
		h.log.Warn("Send outside joined rooms rejected",
			"conn_id", conn.ID,
			"conversation_id", in.ConversationID,
			"sender_id", in.SenderID,
			"owner", owner,
		)
		return nil, ErrNotAuthorized
	}
	if h.limiter != nil && !h.limiter.Allow(in.SenderID) {
		h.log.Warn("Send rate limited", "sender_id", in.SenderID, "conn_id", conn.ID)
		return nil, ErrRateLimited
	}
	return h.persistAndBroadcast(ctx, in.NewMessage())
}

// PostMessage stores and broadcasts a message that did not come from a live
// connection, such as an assistant-drafted reply.
func (h *Hub) PostMessage(ctx context.Context, in domain.NewMessage) (*domain.Message, error) {
	sm := SendMessage{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		LenderID:       in.LenderID,
		Content:        in.Content,
		IsAutomated:    in.IsAutomated,
	}
	if err := sm.Validate(); err != nil {
		return nil, err
	}
	return h.persistAndBroadcast(ctx, sm.NewMessage())
}

func (h *Hub) persistAndBroadcast(ctx context.Context, in domain.NewMessage) (*domain.Message, error) {
	msg, err := h.gateway.RecordMessage(ctx, in)
	if err != nil {
		return nil, err
	}
	delivered := h.broadcaster.BroadcastToRoom(msg.ConversationID, NewMessageEvent{Message: msg})
	h.log.Debug("Message broadcast", "message_id", msg.ID, "conversation_id", msg.ConversationID, "delivered", delivered)
	return msg, nil
}

// PublishQuoteRequest notifies every connection of a new quote request.
func (h *Hub) PublishQuoteRequest(evt QuoteRequestReceived) (int, error) {
	if err := validateStruct(evt); err != nil {
		return 0, err
	}
	delivered := h.broadcaster.BroadcastToAll(evt)
	h.log.Info("Quote request broadcast", "request_id", evt.RequestID, "delivered", delivered)
	return delivered, nil
}

// PublishStatus notifies a conversation room of a quote status change.
func (h *Hub) PublishStatus(conversationID, status string) (int, error) {
	evt := StatusUpdate{ConversationID: strings.TrimSpace(conversationID), Status: strings.TrimSpace(status)}
	if err := validateStruct(evt); err != nil {
		return 0, err
	}
	return h.broadcaster.NotifyStatusChange(evt.ConversationID, evt.Status), nil
}

// Close stops background work and closes every connection.
func (h *Hub) Close() {
	if h.limiter != nil {
		h.limiter.Close()
	}
	h.registry.Close()
}

func (h *Hub) owner(conn *Connection) string {
	if id := h.registry.Owner(conn); id != "" {
		return id
	}
	return conn.Participant.ID
}

func (h *Hub) reject(conn *Connection, err error) {
	metrics.InboundRejected.WithLabelValues(rejectReason(err)).Inc()
	if errors.Is(err, ErrInvalidPayload) {
		h.log.Debug("Rejected client frame", "conn_id", conn.ID, "error", err)
	}
	_ = h.broadcaster.SendTo(conn, ErrorEvent{Message: clientMessage(err)})
}

func rejectReason(err error) string {
	var pe *PersistenceError
	switch {
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.As(err, &pe):
		return "persistence"
	default:
		return "internal"
	}
}
