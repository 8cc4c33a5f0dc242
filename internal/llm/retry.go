package llm

import (
	"context"
	"log"
	"time"

	"github.com/kerbelp/z-mail-agent/internal/model"
)

// retryBaseDelay is the first backoff interval; it doubles per attempt.
const retryBaseDelay = 2 * time.Second

// defaultCallTimeout bounds one classification attempt so a hung
// service becomes a recoverable per-message error.
const defaultCallTimeout = 10 * time.Second

// RetryService decorates a Service with automatic exponential backoff
// on rate-limit errors. Other errors pass through immediately. Each
// attempt runs under its own timeout; backoff sleeps are not charged
// against it, so an exhausted rate limit surfaces as a rate-limit
// error rather than a deadline error. The triage loop only observes an
// eventual result or a final failure after retries are exhausted.
type RetryService struct {
	inner       Service
	maxRetries  int
	baseDelay   time.Duration
	callTimeout time.Duration

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps a classification service with per-attempt timeouts
// and rate-limit retries. callTimeout <= 0 selects the default.
func WithRetry(inner Service, maxRetries int, callTimeout time.Duration) *RetryService {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &RetryService{
		inner:       inner,
		maxRetries:  maxRetries,
		baseDelay:   retryBaseDelay,
		callTimeout: callTimeout,
		sleep:       sleepContext,
	}
}

// Classify calls the inner service, retrying rate-limited calls with
// exponential backoff until maxRetries is exhausted.
func (r *RetryService) Classify(
	ctx context.Context, systemPrompt, userText string,
) (model.Judgment, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		judgment, err := r.attempt(ctx, systemPrompt, userText)
		if err == nil {
			return judgment, nil
		}
		if !IsRateLimited(err) {
			return model.Judgment{}, err
		}

		lastErr = err
		if attempt == r.maxRetries {
			break
		}

		delay := r.baseDelay * (1 << attempt)
		log.Printf(
			"classification rate limited, retrying in %s (attempt %d/%d)",
			delay, attempt+1, r.maxRetries,
		)
		if err := r.sleep(ctx, delay); err != nil {
			return model.Judgment{}, err
		}
	}

	return model.Judgment{}, lastErr
}

// attempt runs one classification call under a fresh per-attempt
// timeout.
func (r *RetryService) attempt(
	ctx context.Context, systemPrompt, userText string,
) (model.Judgment, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	return r.inner.Classify(attemptCtx, systemPrompt, userText)
}

// sleepContext waits for d or until the context is canceled.
func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
