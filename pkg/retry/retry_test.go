package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

var errTransient = errors.New("transient failure")
var errFatal = errors.New("fatal failure")

func newTestRetryer(t *testing.T, maxAttempts int) *Retryer {
	t.Helper()
	cfg := FixedDelay(maxAttempts, time.Millisecond)
	cfg.RetryIf = func(err error) bool {
		return errors.Is(err, errTransient)
	}
	r, err := NewRetryer(cfg)
	if err != nil {
		t.Fatalf("NewRetryer: %v", err)
	}
	return r
}

func TestRetryer_SucceedsAfterTransientFailures(t *testing.T) {
	r := newTestRetryer(t, 3)

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryer_FatalErrorNotRetried(t *testing.T) {
	r := newTestRetryer(t, 3)

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fmt.Errorf("payload: %w", errFatal)
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("fatal error must not be retried, got %d calls", calls)
	}
	if !errors.Is(err, errFatal) {
		t.Errorf("original error must be preserved, got %v", err)
	}
}

func TestRetryer_MaxAttemptsExceeded(t *testing.T) {
	r := newTestRetryer(t, 3)

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errTransient
	})

	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", calls)
	}
	if !errors.Is(err, errTransient) {
		t.Errorf("last error must be wrapped, got %v", err)
	}
}

func TestRetryer_OnRetryCallback(t *testing.T) {
	cfg := FixedDelay(3, time.Millisecond)
	var attempts []int
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	}
	r, err := NewRetryer(cfg)
	if err != nil {
		t.Fatalf("NewRetryer: %v", err)
	}

	r.Do(context.Background(), func(ctx context.Context) error {
		return errTransient
	})

	if len(attempts) != 2 {
		t.Fatalf("expected 2 retry callbacks for 3 attempts, got %d", len(attempts))
	}
	if attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("unexpected callback attempts: %v", attempts)
	}
}

func TestRetryer_ContextCancelled(t *testing.T) {
	cfg := FixedDelay(5, 500*time.Millisecond)
	r, err := NewRetryer(cfg)
	if err != nil {
		t.Fatalf("NewRetryer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err = r.Do(ctx, func(ctx context.Context) error {
		return errTransient
	})

	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must be valid: %v", err)
	}

	bad := DefaultConfig()
	bad.MaxAttempts = 0
	if err := bad.Validate(); err == nil {
		t.Error("zero attempts must be invalid")
	}

	bad = DefaultConfig()
	bad.BackoffStrategy = "quadratic"
	if err := bad.Validate(); err == nil {
		t.Error("unknown strategy must be invalid")
	}
}
