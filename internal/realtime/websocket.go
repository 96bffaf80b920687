package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/ashureev/quotechat/internal/identity"
	"github.com/ashureev/quotechat/internal/middleware"
	"github.com/coder/websocket"
)

const defaultMaxFrameBytes = 64 << 10

// WebSocketConfig configures the chat WebSocket endpoint.
type WebSocketConfig struct {
	AllowedOrigins []string
	IsDev          bool
	MaxFrameBytes  int64
	Connection     ConnectionOptions
}

// WebSocketHandler serves the full-duplex chat endpoint.
type WebSocketHandler struct {
	hub *Hub
	cfg WebSocketConfig
	log *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(hub *Hub, cfg WebSocketConfig) *WebSocketHandler {
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = defaultMaxFrameBytes
	}
	if cfg.Connection.Logger == nil {
		cfg.Connection.Logger = slog.Default()
	}
	return &WebSocketHandler{hub: hub, cfg: cfg, log: cfg.Connection.Logger}
}

// wsTransport adapts websocket.Conn to Transport.
type wsTransport struct {
	ws *websocket.Conn
}

func (t *wsTransport) Write(ctx context.Context, data []byte) error {
	return t.ws.Write(ctx, websocket.MessageText, data)
}

func (t *wsTransport) Ping(ctx context.Context) error {
	return t.ws.Ping(ctx)
}

func (t *wsTransport) Close(code websocket.StatusCode, reason string) error {
	return t.ws.Close(code, reason)
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	participant := identity.FromContext(r.Context())
	h.log.Info("WebSocket connection request", "participant_id", participant.ID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Error("Failed to accept WebSocket", "error", err, "participant_id", participant.ID)
		return
	}
	ws.SetReadLimit(h.cfg.MaxFrameBytes)

	conn := NewConnection(KindWebSocket, participant, &wsTransport{ws: ws}, h.cfg.Connection)
	h.hub.Connect(conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)

	// Output loop: send queue -> WebSocket.
	go func() {
		defer wg.Done()
		defer cancel()
		conn.Run(ctx)
	}()

	// Input loop: WebSocket -> hub, one frame at a time.
	h.readLoop(ctx, ws, conn)

	h.hub.Disconnect(conn)
	cancel()
	wg.Wait()
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.cfg.IsDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if allowed, _ := middleware.MatchOrigin(h.cfg.AllowedOrigins, origin); allowed {
		return true
	}
	h.log.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.cfg.AllowedOrigins)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, conn *Connection) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			switch {
			case websocket.CloseStatus(err) != -1:
				h.log.Debug("WebSocket closed by client", "conn_id", conn.ID)
			case ctx.Err() != nil || conn.Closed():
				h.log.Debug("WebSocket read stopped", "conn_id", conn.ID)
			default:
				h.log.Warn("WebSocket read error", "error", err, "conn_id", conn.ID)
			}
			return
		}
		h.hub.HandleFrame(ctx, conn, data)
	}
}
