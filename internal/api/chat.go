package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/quotechat/internal/domain"
	"github.com/ashureev/quotechat/internal/identity"
	"github.com/ashureev/quotechat/internal/realtime"
	"github.com/go-chi/chi/v5"
)

const healthTimeout = 2 * time.Second

// ChatHandler serves conversation history and the server-side notification hooks.
type ChatHandler struct {
	*Handler
	historyLimit int
}

// NewChatHandler creates a chat handler. historyLimit is used when a history
// request carries no limit.
func NewChatHandler(base *Handler, historyLimit int) *ChatHandler {
	return &ChatHandler{Handler: base, historyLimit: historyLimit}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Route("/conversations/{conversationID}", func(r chi.Router) {
			r.Get("/messages", h.ListMessages)
			r.Post("/messages", h.PostMessage)
			r.Post("/status", h.PostStatus)
		})
		r.Post("/quote-requests/notify", h.NotifyQuoteRequest)
	})
}

// Health reports database reachability and the number of live connections.
func (h *ChatHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	connections := h.hub.Registry().Len()
	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		JSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":      "degraded",
			"database":    "unreachable",
			"connections": connections,
		})
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"database":    "ok",
		"connections": connections,
	})
}

// ListMessages returns the latest messages of a conversation, oldest first.
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := strings.TrimSpace(chi.URLParam(r, "conversationID"))
	if conversationID == "" {
		Error(w, http.StatusBadRequest, "conversation id is required")
		return
	}

	limit := h.historyLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	messages, err := h.hub.Gateway().History(r.Context(), conversationID, limit)
	if err != nil {
		slog.Error("Failed to load conversation history", "error", err, "conversation_id", conversationID)
		Error(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"conversationId": conversationID,
		"messages":       messages,
	})
}

type postMessageRequest struct {
	SenderID    string `json:"senderId"`
	LenderID    string `json:"lenderId"`
	Content     string `json:"content"`
	IsAutomated *bool  `json:"isAutomated"`
}

// PostMessage stores and broadcasts a message submitted on behalf of a
// participant, typically an assistant-drafted reply. isAutomated defaults to true.
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	var req postMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SenderID == "" {
		req.SenderID = identity.FromContext(r.Context()).ID
	}
	automated := true
	if req.IsAutomated != nil {
		automated = *req.IsAutomated
	}

	msg, err := h.hub.PostMessage(r.Context(), domain.NewMessage{
		ConversationID: conversationID,
		SenderID:       req.SenderID,
		LenderID:       req.LenderID,
		Content:        req.Content,
		IsAutomated:    automated,
	})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusBadRequest {
			Error(w, status, err.Error())
			return
		}
		Error(w, status, "message could not be saved")
		return
	}
	JSON(w, http.StatusCreated, msg)
}

type statusRequest struct {
	Status string `json:"status"`
}

// PostStatus pushes a quote status change to the conversation room.
func (h *ChatHandler) PostStatus(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	delivered, err := h.hub.PublishStatus(conversationID, req.Status)
	if err != nil {
		Error(w, statusFor(err), err.Error())
		return
	}
	JSON(w, http.StatusAccepted, map[string]any{"delivered": delivered})
}

// NotifyQuoteRequest fans a newly filed quote request out to every connection.
func (h *ChatHandler) NotifyQuoteRequest(w http.ResponseWriter, r *http.Request) {
	var evt realtime.QuoteRequestReceived
	if err := decodeJSON(w, r, &evt); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}

	delivered, err := h.hub.PublishQuoteRequest(evt)
	if err != nil {
		Error(w, statusFor(err), err.Error())
		return
	}
	JSON(w, http.StatusAccepted, map[string]any{"delivered": delivered})
}
