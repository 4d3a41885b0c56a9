package reliability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{404, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tc := range cases {
		got := IsRetryableHTTPStatus(tc.code)
		if got != tc.want {
			t.Fatalf("IsRetryableHTTPStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestIsTransientError(t *testing.T) {
	if IsTransientError(nil) {
		t.Fatal("nil error classified transient")
	}
	if IsTransientError(fmt.Errorf("call: %w", context.Canceled)) {
		t.Fatal("cancellation classified transient")
	}
	if !IsTransientError(fmt.Errorf("read: %w", io.ErrUnexpectedEOF)) {
		t.Fatal("unexpected EOF should be transient")
	}
	if IsTransientError(errors.New("bad json")) {
		t.Fatal("plain error classified transient")
	}
}

func TestExponentialBackoffCap(t *testing.T) {
	base := 100 * time.Millisecond
	capDur := 700 * time.Millisecond
	if got := ExponentialBackoff(0, base, capDur); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(1, base, capDur); got != 200*time.Millisecond {
		t.Fatalf("attempt 1 = %v, want 200ms", got)
	}
	if got := ExponentialBackoff(10, base, capDur); got != capDur {
		t.Fatalf("attempt 10 = %v, want %v", got, capDur)
	}
}

func TestRetryStopsOnSuccessAndNonRetryable(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 5, time.Millisecond, time.Millisecond, func(int) (bool, error) {
		calls++
		if calls < 3 {
			return true, errors.New("busy")
		}
		return false, nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("Retry() = %v after %d calls, want nil after 3", err, calls)
	}

	calls = 0
	fatal := errors.New("unauthorized")
	err = Retry(context.Background(), 5, time.Millisecond, time.Millisecond, func(int) (bool, error) {
		calls++
		return false, fatal
	})
	if !errors.Is(err, fatal) || calls != 1 {
		t.Fatalf("Retry() = %v after %d calls, want fatal after 1", err, calls)
	}
}

func TestRetryGivesUpWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	busy := errors.New("busy")
	err := Retry(ctx, 5, time.Second, time.Second, func(int) (bool, error) {
		calls++
		return true, busy
	})
	if !errors.Is(err, busy) || calls != 1 {
		t.Fatalf("Retry() = %v after %d calls, want busy after 1", err, calls)
	}
}
