package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kerbelp/z-mail-agent/internal/model"
)

const (
	anthropicURL          = "https://api.anthropic.com/v1/messages"
	anthropicVersion      = "2023-06-01"
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"
)

// Anthropic is a classification client for the Anthropic Messages API.
type Anthropic struct {
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	baseURL     string
	client      *http.Client
}

// NewAnthropic creates an Anthropic classification client.
func NewAnthropic(cfg model.LLMConfig, apiKey string) *Anthropic {
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultAnthropicModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &Anthropic{
		apiKey:      apiKey,
		model:       modelName,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		baseURL:     anthropicURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Classify sends one messages request and decodes the structured
// judgment from its reply.
func (a *Anthropic) Classify(
	ctx context.Context, systemPrompt, userText string,
) (model.Judgment, error) {
	reqBody := anthropicRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
		System:      systemPrompt + judgmentInstruction,
		Messages: []anthropicMessage{
			{Role: "user", Content: userText},
		},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return model.Judgment{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, a.baseURL, bytes.NewReader(data),
	)
	if err != nil {
		return model.Judgment{}, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return model.Judgment{}, fmt.Errorf("calling Anthropic API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Judgment{}, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr anthropicErrorResponse
		message := string(respBody)
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			message = apiErr.Error.Message
		}

		if resp.StatusCode == http.StatusTooManyRequests ||
			apiErr.Error.Type == "rate_limit_error" {
			return model.Judgment{}, &RateLimitError{
				Provider: "anthropic",
				Err:      fmt.Errorf("API error (%d): %s", resp.StatusCode, message),
			}
		}

		return model.Judgment{}, fmt.Errorf(
			"API error (%d): %s", resp.StatusCode, message,
		)
	}

	var result anthropicResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return model.Judgment{}, fmt.Errorf("decoding response: %w", err)
	}

	for _, block := range result.Content {
		if block.Type == "text" {
			return parseJudgment(block.Text)
		}
	}

	return model.Judgment{}, fmt.Errorf("no text content in response")
}
