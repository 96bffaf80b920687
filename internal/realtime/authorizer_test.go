package realtime

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/quotechat/internal/store"
)

func TestStoreAuthorizer(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "authz.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.CreateQuoteRequest(ctx, "req-42", "buyer1"); err != nil {
		t.Fatalf("seed request: %v", err)
	}
	if err := st.CreateQuote(ctx, "q-1", "req-42", "lender1"); err != nil {
		t.Fatalf("seed quote: %v", err)
	}

	authz := NewStoreAuthorizer(st, time.Second)
	for participant, want := range map[string]bool{
		"buyer1":  true,
		"lender1": true,
		"lender2": false,
	} {
		got, err := authz.CanJoin(ctx, "req-42", participant)
		if err != nil {
			t.Fatalf("CanJoin(%s): %v", participant, err)
		}
		if got != want {
			t.Errorf("CanJoin(%s) = %v, want %v", participant, got, want)
		}
	}
}

func TestAllowAll(t *testing.T) {
	ok, err := AllowAll{}.CanJoin(context.Background(), "any", "one")
	if !ok || err != nil {
		t.Errorf("Expected AllowAll to allow, got %v, %v", ok, err)
	}
}
