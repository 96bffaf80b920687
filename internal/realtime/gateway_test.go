package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ashureev/quotechat/internal/domain"
)

func TestRecordMessageTimeout(t *testing.T) {
	gw := NewGateway(&memoryStore{block: true}, 20*time.Millisecond, discardLogger)

	start := time.Now()
	_, err := gw.RecordMessage(context.Background(), domain.NewMessage{ConversationID: "R", SenderID: "a", Content: "x"})
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("Expected PersistenceError, got %v", err)
	}
	if pe.Reason != "timeout" || pe.ConversationID != "R" {
		t.Errorf("Unexpected error fields %+v", pe)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected wrapped deadline error, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("write was not bounded by the gateway timeout")
	}
}

func TestRecordMessageStoreError(t *testing.T) {
	gw := NewGateway(&memoryStore{err: errDiskFull}, time.Second, discardLogger)

	msg, err := gw.RecordMessage(context.Background(), domain.NewMessage{ConversationID: "R", SenderID: "a", Content: "x"})
	if msg != nil {
		t.Errorf("Expected no message, got %+v", msg)
	}
	var pe *PersistenceError
	if !errors.As(err, &pe) || !errors.Is(err, errDiskFull) {
		t.Fatalf("Expected PersistenceError wrapping the cause, got %v", err)
	}
	if pe.Reason != "error" {
		t.Errorf("Expected generic reason, got %q", pe.Reason)
	}
}

func TestHistoryEmptyIsNotNil(t *testing.T) {
	gw := NewGateway(&memoryStore{}, time.Second, discardLogger)

	messages, err := gw.History(context.Background(), "nobody", 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if messages == nil || len(messages) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", messages)
	}
}
