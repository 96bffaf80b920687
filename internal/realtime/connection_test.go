package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ashureev/quotechat/internal/domain"
	"github.com/coder/websocket"
)

func runConn(t *testing.T, conn *Connection) (cancel func(), done <-chan struct{}) {
	t.Helper()
	ctx, cancelFn := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		conn.Run(ctx)
	}()
	t.Cleanup(func() {
		cancelFn()
		<-finished
	})
	return cancelFn, finished
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestConnectionRunWritesInOrder(t *testing.T) {
	tr := &fakeTransport{}
	conn := NewConnection(KindWebSocket, domain.Participant{ID: "a"}, tr, ConnectionOptions{Logger: discardLogger})
	runConn(t, conn)

	for _, p := range []string{"1", "2", "3"} {
		if err := conn.Send([]byte(p)); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	waitFor(t, func() bool { return len(tr.snapshot()) == 3 })
	for i, want := range []string{"1", "2", "3"} {
		if got := string(tr.snapshot()[i]); got != want {
			t.Errorf("frame %d: Expected %q, got %q", i, want, got)
		}
	}
}

func TestConnectionCloseClosesTransport(t *testing.T) {
	tr := &fakeTransport{}
	conn := NewConnection(KindWebSocket, domain.Participant{ID: "a"}, tr, ConnectionOptions{Logger: discardLogger})
	_, done := runConn(t, conn)

	conn.Close(websocket.StatusPolicyViolation, "send buffer full")
	conn.Close(websocket.StatusNormalClosure, "again")
	<-done

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if !tr.closed || tr.code != websocket.StatusPolicyViolation {
		t.Errorf("Expected transport closed with policy violation, got closed=%v code=%v", tr.closed, tr.code)
	}
	if err := conn.Send([]byte("late")); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Expected ErrConnectionClosed, got %v", err)
	}
}

func TestConnectionWriteFailureCloses(t *testing.T) {
	tr := &fakeTransport{writeErr: errors.New("broken pipe")}
	conn := NewConnection(KindWebSocket, domain.Participant{ID: "a"}, tr, ConnectionOptions{Logger: discardLogger})
	_, done := runConn(t, conn)

	if err := conn.Send([]byte("x")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after write failure")
	}
	if !conn.Closed() {
		t.Error("expected connection to be closed")
	}
}

func TestConnectionPings(t *testing.T) {
	tr := &fakeTransport{}
	conn := NewConnection(KindSSE, domain.Participant{ID: "a"}, tr, ConnectionOptions{PingInterval: 10 * time.Millisecond, Logger: discardLogger})
	runConn(t, conn)

	waitFor(t, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return tr.pings >= 2
	})
}
