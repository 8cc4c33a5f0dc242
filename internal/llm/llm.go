// Package llm provides the classification service: a structured
// match/confidence/reasoning judgment for an email, produced by a
// language-model API. Two clients (OpenAI, Anthropic) implement the
// same Service interface; WithRetry adds automatic backoff on
// rate-limit errors around the single call site.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kerbelp/z-mail-agent/internal/model"
)

// Service is the classification capability consumed by the triage
// engine.
type Service interface {
	// Classify judges the given email text against the system prompt.
	Classify(ctx context.Context, systemPrompt, userText string) (model.Judgment, error)
}

// RateLimitError indicates the service rejected the call due to rate
// limiting. Callers are expected to retry with backoff; the triage loop
// does not record these as run errors.
type RateLimitError struct {
	Provider string
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited: %v", e.Provider, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err (or any error in its chain) is a
// RateLimitError.
func IsRateLimited(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}

// judgmentInstruction is appended to every system prompt so the model
// answers with a decodable JSON object.
const judgmentInstruction = "\n\nRespond with a single JSON object and nothing else: " +
	`{"match": <true|false>, "confidence": <number between 0 and 1>, "reasoning": "<one short sentence>"}`

// parseJudgment decodes a model response into a Judgment. Code fences
// are stripped and confidence is clamped to [0,1].
func parseJudgment(raw string) (model.Judgment, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var j model.Judgment
	if err := json.Unmarshal([]byte(text), &j); err != nil {
		return model.Judgment{}, fmt.Errorf("decoding judgment %q: %w", raw, err)
	}

	if j.Confidence < 0 {
		j.Confidence = 0
	}
	if j.Confidence > 1 {
		j.Confidence = 1
	}

	return j, nil
}

// New creates the configured classification client.
func New(cfg model.LLMConfig, apiKey string) (Service, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg, apiKey), nil
	case "anthropic":
		return NewAnthropic(cfg, apiKey), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}
