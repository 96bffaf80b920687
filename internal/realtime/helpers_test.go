package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/quotechat/internal/domain"
	"github.com/coder/websocket"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeTransport struct {
	mu       sync.Mutex
	frames   [][]byte
	pings    int
	writeErr error
	closed   bool
	code     websocket.StatusCode
}

func (t *fakeTransport) Write(_ context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeErr != nil {
		return t.writeErr
	}
	t.frames = append(t.frames, append([]byte(nil), data...))
	return nil
}

func (t *fakeTransport) Ping(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pings++
	return t.writeErr
}

func (t *fakeTransport) Close(code websocket.StatusCode, _ string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.code = code
	return nil
}

func (t *fakeTransport) snapshot() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.frames...)
}

type frame struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestConn(t *testing.T, participantID string) *Connection {
	t.Helper()
	return NewConnection(KindWebSocket, domain.Participant{ID: participantID}, &fakeTransport{}, ConnectionOptions{
		SendBuffer: 16,
		Logger:     discardLogger,
	})
}

// drain pops every queued frame off conn without running its writer.
func drain(t *testing.T, conn *Connection) []frame {
	t.Helper()
	var out []frame
	for {
		select {
		case data := <-conn.send:
			var f frame
			if err := json.Unmarshal(data, &f); err != nil {
				t.Fatalf("queued frame is not JSON: %v", err)
			}
			out = append(out, f)
		default:
			return out
		}
	}
}

func framesOfType(frames []frame, typ EventType) []frame {
	var out []frame
	for _, f := range frames {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

// memoryStore is an in-memory MessageStore with an optional injected failure.
type memoryStore struct {
	mu       sync.Mutex
	messages []*domain.Message
	err      error
	block    bool
	seq      int
}

func (s *memoryStore) InsertMessage(ctx context.Context, msg *domain.Message) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.seq++
	msg.ID = fmt.Sprintf("m%03d", s.seq)
	msg.CreatedAt = time.Now().UTC()
	stored := *msg
	s.messages = append(s.messages, &stored)
	return nil
}

func (s *memoryStore) ListMessages(_ context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *memoryStore) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

var errDiskFull = errors.New("disk full")

func newTestHub(t *testing.T, s MessageStore, authorizer Authorizer, limiter *RateLimiter) *Hub {
	t.Helper()
	reg := NewRegistry(discardLogger)
	hub := NewHub(reg, NewBroadcaster(reg, discardLogger), NewGateway(s, 200*time.Millisecond, discardLogger), authorizer, limiter, discardLogger)
	t.Cleanup(hub.Close)
	return hub
}
