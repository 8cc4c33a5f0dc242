package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kerbelp/z-mail-agent/internal/model"
)

var errTest = errors.New("test failure")

// scriptedService fails a fixed number of times before succeeding.
type scriptedService struct {
	failures int
	failWith error
	calls    int
}

func (s *scriptedService) Classify(
	_ context.Context, _, _ string,
) (model.Judgment, error) {
	s.calls++
	if s.calls <= s.failures {
		return model.Judgment{}, s.failWith
	}
	return model.Judgment{Match: true, Confidence: 0.5}, nil
}

// noSleep swaps the backoff sleeper so tests run instantly, recording
// the requested delays.
func noSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestRetryRecoversFromRateLimits(t *testing.T) {
	inner := &scriptedService{
		failures: 2,
		failWith: &RateLimitError{Provider: "openai", Err: errTest},
	}

	var delays []time.Duration
	r := WithRetry(inner, 3, 0)
	r.sleep = noSleep(&delays)

	judgment, err := r.Classify(context.Background(), "p", "u")
	if err != nil {
		t.Fatal(err)
	}
	if !judgment.Match {
		t.Error("expected the eventual successful judgment")
	}
	if inner.calls != 3 {
		t.Errorf("inner called %d times, want 3", inner.calls)
	}

	// Exponential: base, then doubled.
	if len(delays) != 2 || delays[0] != 2*time.Second || delays[1] != 4*time.Second {
		t.Errorf("delays = %v", delays)
	}
}

func TestRetryExhaustionReturnsLastError(t *testing.T) {
	inner := &scriptedService{
		failures: 10,
		failWith: &RateLimitError{Provider: "anthropic", Err: errTest},
	}

	var delays []time.Duration
	r := WithRetry(inner, 2, 0)
	r.sleep = noSleep(&delays)

	_, err := r.Classify(context.Background(), "p", "u")
	if !IsRateLimited(err) {
		t.Fatalf("err = %v, want rate limit error", err)
	}
	if inner.calls != 3 {
		t.Errorf("inner called %d times, want 3 (1 + 2 retries)", inner.calls)
	}
}

func TestRetryDoesNotRetryOtherErrors(t *testing.T) {
	inner := &scriptedService{failures: 10, failWith: errTest}

	r := WithRetry(inner, 5, 0)
	r.sleep = noSleep(&[]time.Duration{})

	_, err := r.Classify(context.Background(), "p", "u")
	if !errors.Is(err, errTest) {
		t.Fatalf("err = %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner called %d times, want 1", inner.calls)
	}
}

func TestRetryStopsOnCanceledContext(t *testing.T) {
	inner := &scriptedService{
		failures: 10,
		failWith: &RateLimitError{Provider: "openai", Err: errTest},
	}

	r := WithRetry(inner, 5, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Classify(ctx, "p", "u")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner called %d times, want 1", inner.calls)
	}
}

// deadlineCheckingService fails with rate limits while recording
// whether each attempt started with a live context.
type deadlineCheckingService struct {
	calls   int
	expired int
}

func (s *deadlineCheckingService) Classify(
	ctx context.Context, _, _ string,
) (model.Judgment, error) {
	s.calls++
	if ctx.Err() != nil {
		s.expired++
	}
	if _, ok := ctx.Deadline(); !ok {
		return model.Judgment{}, errTest
	}
	return model.Judgment{}, &RateLimitError{Provider: "openai", Err: errTest}
}

func TestRetryAttemptsGetFreshTimeouts(t *testing.T) {
	inner := &deadlineCheckingService{}

	// Backoff sleeps total well past the per-attempt timeout; each
	// attempt must still start with an unexpired deadline, and
	// exhaustion must surface as a rate-limit error.
	r := WithRetry(inner, 2, 30*time.Millisecond)
	r.sleep = func(_ context.Context, _ time.Duration) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	}

	_, err := r.Classify(context.Background(), "p", "u")
	if !IsRateLimited(err) {
		t.Fatalf("err = %v, want rate limit error", err)
	}
	if inner.calls != 3 {
		t.Errorf("inner called %d times, want 3", inner.calls)
	}
	if inner.expired != 0 {
		t.Errorf("%d attempt(s) started with an expired context", inner.expired)
	}
}

func TestRetryNegativeMaxRetriesClamped(t *testing.T) {
	inner := &scriptedService{
		failures: 1,
		failWith: &RateLimitError{Provider: "openai", Err: errTest},
	}

	r := WithRetry(inner, -3, 0)
	if _, err := r.Classify(context.Background(), "p", "u"); !IsRateLimited(err) {
		t.Fatalf("err = %v, want rate limit error after zero retries", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner called %d times, want 1", inner.calls)
	}
}
