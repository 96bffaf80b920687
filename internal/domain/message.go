// Package domain contains core domain types for the quote chat service.
package domain

import (
	"time"
)

// Message is a stored chat message within a quote-request conversation.
// Once persisted it is never updated or deleted.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	LenderID       string    `json:"lenderId,omitempty"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	IsAutomated    bool      `json:"isAutomated"`
}

// NewMessage carries the caller-supplied fields of a message before it is stored.
type NewMessage struct {
	ConversationID string
	SenderID       string
	// LenderID selects the lender thread when one buyer talks to several lenders
	// on the same request.
	LenderID    string
	Content     string
	IsAutomated bool
}

// Message converts the input into an unsaved Message.
func (m NewMessage) Message() *Message {
	return &Message{
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		LenderID:       m.LenderID,
		Content:        m.Content,
		IsAutomated:    m.IsAutomated,
	}
}
