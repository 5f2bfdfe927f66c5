package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/smallnest/taskwire/types"
)

func transientErr() error {
	return &types.TransportError{Op: "do", Err: context.DeadlineExceeded}
}

func TestDoRetriesTransientUpToCap(t *testing.T) {
	attempts := 0
	_, err := Do(context.Background(), Policy{MaxAttempts: 3, Delay: time.Millisecond}, func() (struct{}, error) {
		attempts++
		return struct{}{}, transientErr()
	})

	if err == nil {
		t.Fatalf("expected failure after exhausting attempts")
	}
	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
}

func TestDoStopsOnSuccess(t *testing.T) {
	attempts := 0
	got, err := Do(context.Background(), Policy{MaxAttempts: 3, Delay: time.Millisecond}, func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", transientErr()
		}
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || attempts != 2 {
		t.Fatalf("expected success on attempt 2, got %q after %d attempts", got, attempts)
	}
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	attempts := 0
	wantErr := &types.APIError{Code: 400, Message: "bad request"}
	_, err := Do(context.Background(), Policy{MaxAttempts: 3, Delay: time.Millisecond}, func() (struct{}, error) {
		attempts++
		return struct{}{}, wantErr
	})

	var apiErr *types.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError to survive, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("application errors must not be retried, got %d attempts", attempts)
	}
}

func TestDoSingleAttemptPolicy(t *testing.T) {
	attempts := 0
	_, err := Do(context.Background(), ForMethod(http.MethodPost), func() (struct{}, error) {
		attempts++
		return struct{}{}, transientErr()
	})

	if err == nil {
		t.Fatalf("expected failure")
	}
	if attempts != 1 {
		t.Fatalf("POST must be attempted exactly once, got %d", attempts)
	}
}

func TestDoCancellationWinsOverDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	start := time.Now()
	_, err := Do(ctx, Policy{MaxAttempts: 3, Delay: 10 * time.Second}, func() (struct{}, error) {
		attempts++
		cancel()
		return struct{}{}, transientErr()
	})

	if err == nil {
		t.Fatalf("expected error after cancellation")
	}
	if attempts != 1 {
		t.Fatalf("expected no retry after cancellation, got %d attempts", attempts)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("cancellation did not interrupt the retry delay (took %v)", elapsed)
	}
}

func TestForMethodTable(t *testing.T) {
	cases := []struct {
		method string
		want   uint
	}{
		{http.MethodGet, DefaultMaxAttempts},
		{http.MethodDelete, DefaultMaxAttempts},
		{http.MethodPost, 1},
		{http.MethodPut, 1},
	}

	for _, tc := range cases {
		if got := ForMethod(tc.method).MaxAttempts; got != tc.want {
			t.Fatalf("ForMethod(%s).MaxAttempts = %d, want %d", tc.method, got, tc.want)
		}
	}
}
