package store

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ashureev/quotechat/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertMessageAssignsIDAndTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg := &domain.Message{ConversationID: "req-42", SenderID: "buyer1", Content: "What's the rate?"}
	if err := s.InsertMessage(ctx, msg); err != nil {
		t.Fatalf("InsertMessage failed: %v", err)
	}
	if msg.ID == "" {
		t.Error("Expected generated message ID")
	}
	if msg.CreatedAt.IsZero() {
		t.Error("Expected server-assigned timestamp")
	}

	got, err := s.ListMessages(ctx, "req-42", 10)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(got))
	}
	if got[0].ID != msg.ID || got[0].SenderID != "buyer1" || got[0].Content != "What's the rate?" {
		t.Errorf("Stored message mismatch: %+v", got[0])
	}
	if !got[0].CreatedAt.Equal(msg.CreatedAt) {
		t.Errorf("Expected created_at %v, got %v", msg.CreatedAt, got[0].CreatedAt)
	}
	if got[0].LenderID != "" || got[0].IsAutomated {
		t.Errorf("Expected empty lender and human-authored, got %+v", got[0])
	}
}

func TestListMessagesOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		msg := &domain.Message{
			ConversationID: "req-1",
			SenderID:       "lender1",
			LenderID:       "lender1",
			Content:        "msg-" + strconv.Itoa(i),
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
			IsAutomated:    i%2 == 0,
		}
		if err := s.InsertMessage(ctx, msg); err != nil {
			t.Fatalf("InsertMessage %d failed: %v", i, err)
		}
	}
	if err := s.InsertMessage(ctx, &domain.Message{ConversationID: "req-2", SenderID: "x", Content: "other"}); err != nil {
		t.Fatalf("InsertMessage failed: %v", err)
	}

	got, err := s.ListMessages(ctx, "req-1", 3)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(got))
	}
	for i, want := range []string{"msg-2", "msg-3", "msg-4"} {
		if got[i].Content != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, got[i].Content)
		}
	}
	if got[0].LenderID != "lender1" || !got[0].IsAutomated {
		t.Errorf("Expected lender and automated flag to round-trip, got %+v", got[0])
	}
}

func TestListMessagesEmptyConversation(t *testing.T) {
	s := newTestStore(t)

	got, err := s.ListMessages(context.Background(), "missing", 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no messages, got %d", len(got))
	}
}

func TestIsParticipant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateQuoteRequest(ctx, "req-7", "buyer1"); err != nil {
		t.Fatalf("CreateQuoteRequest failed: %v", err)
	}
	if err := s.CreateQuote(ctx, "q-1", "req-7", "lender1"); err != nil {
		t.Fatalf("CreateQuote failed: %v", err)
	}

	cases := []struct {
		participant string
		want        bool
	}{
		{"buyer1", true},
		{"lender1", true},
		{"lender2", false},
	}
	for _, tc := range cases {
		ok, err := s.IsParticipant(ctx, "req-7", tc.participant)
		if err != nil {
			t.Fatalf("IsParticipant(%s) failed: %v", tc.participant, err)
		}
		if ok != tc.want {
			t.Errorf("IsParticipant(%s) = %v, want %v", tc.participant, ok, tc.want)
		}
	}
}

func TestClampLimit(t *testing.T) {
	if got := ClampLimit(0); got != DefaultHistoryLimit {
		t.Errorf("Expected default limit, got %d", got)
	}
	if got := ClampLimit(1000); got != MaxHistoryLimit {
		t.Errorf("Expected max limit, got %d", got)
	}
	if got := ClampLimit(7); got != 7 {
		t.Errorf("Expected 7, got %d", got)
	}
}

func TestNewSQLiteDirectoryPathFails(t *testing.T) {
	dir := t.TempDir()

	s, err := NewSQLite(dir)
	if err == nil {
		_ = s.Close()
		t.Fatal("expected opening a directory as a database to fail")
	}
	if s != nil {
		t.Errorf("Expected nil store on error, got %v", s)
	}
}
