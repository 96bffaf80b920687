package realtime

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/ashureev/quotechat/internal/domain"
	"github.com/go-playground/validator/v10"
)

// EventType tags every frame on the wire.
type EventType string

const (
	// Client to server.
	EventJoinChat    EventType = "join_chat"
	EventSendMessage EventType = "send_message"

	// Server to client.
	EventNewMessage           EventType = "new_message"
	EventQuoteRequestReceived EventType = "quote_request_received"
	EventStatusUpdate         EventType = "status_update"
	EventError                EventType = "error"
	EventJoined               EventType = "joined"
)

// MaxContentLength bounds the text of one chat message.
const MaxContentLength = 4000

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateStruct runs tag validation and reports the first failing field by
// its wire name.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return invalidPayload("%s is required", fe.Field())
		case "max":
			return invalidPayload("%s exceeds %s characters", fe.Field(), fe.Param())
		default:
			return invalidPayload("%s is invalid", fe.Field())
		}
	}
	return invalidPayload("%v", err)
}

// Event is a server-to-client notification. The set of implementations is closed.
type Event interface {
	Type() EventType
	payload() any
}

// NewMessageEvent announces a message that is already durably stored.
type NewMessageEvent struct {
	Message *domain.Message
}

func (NewMessageEvent) Type() EventType { return EventNewMessage }
func (e NewMessageEvent) payload() any  { return e.Message }

// QuoteRequestReceived tells lender dashboards that a buyer filed a request.
type QuoteRequestReceived struct {
	RequestID   string    `json:"requestId" validate:"required,max=128"`
	BuyerID     string    `json:"buyerId" validate:"required,max=128"`
	LoanAmount  float64   `json:"loanAmount,omitempty" validate:"gte=0"`
	LoanPurpose string    `json:"loanPurpose,omitempty" validate:"max=64"`
	Location    string    `json:"location,omitempty" validate:"max=128"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (QuoteRequestReceived) Type() EventType { return EventQuoteRequestReceived }
func (e QuoteRequestReceived) payload() any  { return e }

// StatusUpdate carries a quote status change to a conversation room.
type StatusUpdate struct {
	ConversationID string `json:"conversationId" validate:"required,max=128"`
	Status         string `json:"status" validate:"required,max=64"`
}

func (StatusUpdate) Type() EventType { return EventStatusUpdate }
func (e StatusUpdate) payload() any  { return e }

// ErrorEvent is sent only to the connection whose intent failed.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) Type() EventType { return EventError }
func (e ErrorEvent) payload() any  { return e }

// Joined acknowledges a join_chat.
type Joined struct {
	ConversationID string `json:"conversationId"`
}

func (Joined) Type() EventType { return EventJoined }
func (e Joined) payload() any  { return e }

type outboundFrame struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// Encode serializes evt into a wire frame.
func Encode(evt Event) ([]byte, error) {
	return json.Marshal(outboundFrame{Type: evt.Type(), Payload: evt.payload()})
}

// Intent is a decoded client-to-server frame. The set of implementations is closed.
type Intent interface {
	intentType() EventType
}

// JoinChat asks to become a member of a conversation room.
type JoinChat struct {
	ConversationID string `json:"conversationId" validate:"required,max=128"`
	ParticipantID  string `json:"participantId" validate:"required,max=128"`
}

func (JoinChat) intentType() EventType { return EventJoinChat }

// Validate trims the ids and checks them once defaults have been applied.
func (j *JoinChat) Validate() error {
	j.ConversationID = strings.TrimSpace(j.ConversationID)
	j.ParticipantID = strings.TrimSpace(j.ParticipantID)
	return validateStruct(j)
}

// SendMessage asks to persist and broadcast a chat message.
type SendMessage struct {
	ConversationID string `json:"conversationId" validate:"required,max=128"`
	SenderID       string `json:"senderId" validate:"required,max=128"`
	LenderID       string `json:"lenderId,omitempty" validate:"max=128"`
	Content        string `json:"content" validate:"required,max=4000"`
	IsAutomated    bool   `json:"isAutomated,omitempty"`
}

func (SendMessage) intentType() EventType { return EventSendMessage }

// Validate trims the ids and checks the fields once defaults have been
// applied. Content is stored as typed; it only has to be non-blank.
func (m *SendMessage) Validate() error {
	m.ConversationID = strings.TrimSpace(m.ConversationID)
	m.SenderID = strings.TrimSpace(m.SenderID)
	m.LenderID = strings.TrimSpace(m.LenderID)
	if err := validateStruct(m); err != nil {
		return err
	}
	if strings.TrimSpace(m.Content) == "" {
		return invalidPayload("content is required")
	}
	return nil
}

// NewMessage converts the intent into store input.
func (m SendMessage) NewMessage() domain.NewMessage {
	return domain.NewMessage{
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		LenderID:       m.LenderID,
		Content:        m.Content,
		IsAutomated:    m.IsAutomated,
	}
}

type inboundFrame struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeIntent parses a client frame. Field validation is left to the caller
// because some fields default from connection state.
func DecodeIntent(data []byte) (Intent, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, invalidPayload("malformed frame")
	}
	if len(frame.Payload) == 0 || string(frame.Payload) == "null" {
		frame.Payload = json.RawMessage("{}")
	}

	switch frame.Type {
	case EventJoinChat:
		var in JoinChat
		if err := json.Unmarshal(frame.Payload, &in); err != nil {
			return nil, invalidPayload("malformed join_chat payload")
		}
		return in, nil
	case EventSendMessage:
		var in SendMessage
		if err := json.Unmarshal(frame.Payload, &in); err != nil {
			return nil, invalidPayload("malformed send_message payload")
		}
		return in, nil
	case "":
		return nil, invalidPayload("type is required")
	default:
		return nil, invalidPayload("unknown event type %q", frame.Type)
	}
}
