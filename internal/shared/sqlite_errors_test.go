package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestStorageFailureReason(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("insert message: %w", context.DeadlineExceeded), "timeout"},
		{context.Canceled, "canceled"},
		{errors.New("database is locked (5) (SQLITE_BUSY)"), "conflict"},
		{errors.New("disk I/O error"), "error"},
	}
	for _, tc := range cases {
		if got := StorageFailureReason(tc.err); got != tc.want {
			t.Errorf("StorageFailureReason(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
