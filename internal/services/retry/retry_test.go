package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestDoRetriesTransientStatus(t *testing.T) {
	var slept []time.Duration
	policy := Policy{MaxAttempts: 4, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second,
		Sleeper: func(d time.Duration) { slept = append(slept, d) }}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &StatusError{StatusCode: http.StatusServiceUnavailable}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(slept) != 2 || slept[0] != 100*time.Millisecond || slept[1] != 200*time.Millisecond {
		t.Fatalf("unexpected backoff sequence %v", slept)
	}
}

func TestDoStopsOnClientError(t *testing.T) {
	policy := Policy{MaxAttempts: 5, Sleeper: func(time.Duration) {}}
	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return &StatusError{StatusCode: http.StatusBadRequest, Body: "bad"}
	})
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
	if StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestDoHonoursRetryAfterAndTemporary(t *testing.T) {
	var slept []time.Duration
	policy := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Second,
		Sleeper: func(d time.Duration) { slept = append(slept, d) }}
	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		switch calls {
		case 1:
			return &StatusError{StatusCode: http.StatusTooManyRequests, RetryAfter: 2 * time.Second}
		case 2:
			return Temporary(errors.New("empty content"))
		}
		return errors.New("permanent")
	})
	if err == nil || err.Error() != "failed after 3 attempts: permanent" {
		t.Fatalf("unexpected error %v", err)
	}
	if len(slept) != 2 || slept[0] != 2*time.Second {
		t.Fatalf("unexpected sleeps %v", slept)
	}
}

func TestDoAbortsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	policy := Policy{MaxAttempts: 5, BaseDelay: time.Hour}
	err := policy.Do(ctx, func(context.Context) error {
		return &StatusError{StatusCode: http.StatusBadGateway}
	})
	if StatusCode(err) != http.StatusBadGateway {
		t.Fatalf("expected first error to surface, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := ParseRetryAfter("3"); !ok || d != 3*time.Second {
		t.Fatalf("unexpected %v %v", d, ok)
	}
	if _, ok := ParseRetryAfter("soon"); ok {
		t.Fatal("expected parse failure")
	}
	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	if d, ok := ParseRetryAfter(future); !ok || d <= 0 {
		t.Fatalf("unexpected %v %v", d, ok)
	}
}
