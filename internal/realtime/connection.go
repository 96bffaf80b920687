// Package realtime implements the chat rooms, fan-out and persist-before-broadcast
// delivery behind the quote marketplace's live views.
package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/quotechat/internal/domain"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Transport kinds, also used as metric labels.
const (
	KindWebSocket = "websocket"
	KindSSE       = "sse"
)

const (
	defaultSendBuffer   = 64
	defaultWriteTimeout = 10 * time.Second
)

// Transport is the wire under a Connection. Write and Ping are only ever called
// from the connection's single writer goroutine.
type Transport interface {
	Write(ctx context.Context, data []byte) error
	Ping(ctx context.Context) error
	Close(code websocket.StatusCode, reason string) error
}

// ConnectionOptions tunes the outbound side of a Connection.
type ConnectionOptions struct {
	SendBuffer   int
	WriteTimeout time.Duration
	PingInterval time.Duration // 0 disables keepalive pings
	Logger       *slog.Logger
}

// Connection is one live client. Outbound frames go through a bounded queue
// drained by Run, so a slow client cannot stall a broadcast.
type Connection struct {
	ID          string
	Kind        string
	Participant domain.Participant
	ConnectedAt time.Time

	transport    Transport
	send         chan []byte
	done         chan struct{}
	once         sync.Once
	closeCode    websocket.StatusCode
	closeReason  string
	writeTimeout time.Duration
	pingInterval time.Duration
	log          *slog.Logger
}

// NewConnection wraps t for the given participant. The participant may be
// empty until the client joins a room.
func NewConnection(kind string, p domain.Participant, t Transport, opts ConnectionOptions) *Connection {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	id := uuid.NewString()
	return &Connection{
		ID:           id,
		Kind:         kind,
		Participant:  p,
		ConnectedAt:  time.Now(),
		transport:    t,
		send:         make(chan []byte, opts.SendBuffer),
		done:         make(chan struct{}),
		writeTimeout: opts.WriteTimeout,
		pingInterval: opts.PingInterval,
		log:          opts.Logger.With("conn_id", id, "participant_id", p.ID, "transport", kind),
	}
}

// Send enqueues payload for delivery. It never blocks; when the queue is full
// the connection is closed and ErrSendBufferFull returned.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		c.Close(websocket.StatusPolicyViolation, "send buffer full")
		return ErrSendBufferFull
	}
}

// Close marks the connection closed. The transport itself is closed by Run,
// so Close is safe to call from any goroutine, including a broadcast.
func (c *Connection) Close(code websocket.StatusCode, reason string) {
	c.once.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
}

// Done is closed once the connection stops accepting frames.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Closed reports whether Close has been called.
func (c *Connection) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Run drains the send queue into the transport until the connection is closed
// or ctx is cancelled, then closes the transport. It must be called once.
func (c *Connection) Run(ctx context.Context) {
	var pingC <-chan time.Time
	if c.pingInterval > 0 {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		pingC = ticker.C
	}

	defer func() {
		c.Close(websocket.StatusNormalClosure, "connection closed")
		if err := c.transport.Close(c.closeCode, c.closeReason); err != nil {
			c.log.Debug("Failed to close transport", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case payload := <-c.send:
			if err := c.write(ctx, payload); err != nil {
				c.log.Debug("Connection write failed", "error", err)
				c.Close(websocket.StatusGoingAway, "write failed")
				return
			}
		case <-pingC:
			pingCtx, cancel := context.WithTimeout(ctx, c.writeTimeout)
			err := c.transport.Ping(pingCtx)
			cancel()
			if err != nil {
				c.log.Debug("Connection ping failed", "error", err)
				c.Close(websocket.StatusGoingAway, "ping failed")
				return
			}
		}
	}
}

func (c *Connection) write(ctx context.Context, payload []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	return c.transport.Write(writeCtx, payload)
}
