package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/quotechat/internal/identity"
	"github.com/coder/websocket"
)

// maxStreamRooms bounds the conversation_id parameters honored per stream.
const maxStreamRooms = 16

// SSEHandler serves a read-only event stream, used by lender dashboards that
// only need broadcasts and room notices.
type SSEHandler struct {
	hub        *Hub
	opts       ConnectionOptions
	retryDelay time.Duration
	log        *slog.Logger
}

// NewSSEHandler creates a stream handler. opts.PingInterval is used as the
// keepalive interval.
func NewSSEHandler(hub *Hub, opts ConnectionOptions, retryDelay time.Duration) *SSEHandler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}
	return &SSEHandler{hub: hub, opts: opts, retryDelay: retryDelay, log: opts.Logger}
}

// sseTransport writes frames as Server-Sent Events.
type sseTransport struct {
	w       io.Writer
	flusher http.Flusher
	rc      *http.ResponseController
	eventID int64
}

func (t *sseTransport) Write(ctx context.Context, data []byte) error {
	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil || head.Type == "" {
		head.Type = "message"
	}
	t.setDeadline(ctx)
	t.eventID++
	if _, err := fmt.Fprintf(t.w, "id: %d\nevent: %s\ndata: %s\n\n", t.eventID, head.Type, data); err != nil {
		return err
	}
	t.flusher.Flush()
	return nil
}

func (t *sseTransport) Ping(ctx context.Context) error {
	t.setDeadline(ctx)
	if _, err := io.WriteString(t.w, "event: ping\ndata: {\"status\":\"alive\"}\n\n"); err != nil {
		return err
	}
	t.flusher.Flush()
	return nil
}

// Close is a no-op; the stream ends when the handler returns.
func (t *sseTransport) Close(websocket.StatusCode, string) error {
	return nil
}

func (t *sseTransport) setDeadline(ctx context.Context) {
	if t.rc == nil {
		return
	}
	if dl, ok := ctx.Deadline(); ok {
		if err := t.rc.SetWriteDeadline(dl); err != nil && !errors.Is(err, http.ErrNotSupported) {
			slog.Debug("failed to set SSE write deadline", "error", err)
		}
	}
}

// ServeHTTP streams events until the client goes away or the connection is
// dropped for falling behind.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	participant := identity.FromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error": "streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if _, err := fmt.Fprintf(w, "retry: %d\n\n", h.retryDelay.Milliseconds()); err != nil {
		h.log.Warn("failed to write SSE retry header", "error", err, "participant_id", participant.ID)
		return
	}
	flusher.Flush()

	transport := &sseTransport{w: w, flusher: flusher, rc: http.NewResponseController(w)}
	conn := NewConnection(KindSSE, participant, transport, h.opts)
	h.hub.Connect(conn)
	defer h.hub.Disconnect(conn)

	rooms := r.URL.Query()["conversation_id"]
	if len(rooms) > maxStreamRooms {
		rooms = rooms[:maxStreamRooms]
	}
	for _, id := range rooms {
		if err := h.hub.Join(r.Context(), conn, JoinChat{ConversationID: id}); err != nil {
			h.hub.reject(conn, err)
		}
	}

	conn.Run(r.Context())
	h.log.Info("SSE stream ended", "conn_id", conn.ID, "participant_id", participant.ID)
}
