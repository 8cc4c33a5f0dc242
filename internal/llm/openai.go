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
	openAIURL          = "https://api.openai.com/v1/chat/completions"
	defaultOpenAIModel = "gpt-4o"
)

// OpenAI is a classification client for the OpenAI chat completions
// API. JSON-object response format is requested so the judgment can be
// decoded directly.
type OpenAI struct {
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	baseURL     string
	client      *http.Client
}

// NewOpenAI creates an OpenAI classification client.
func NewOpenAI(cfg model.LLMConfig, apiKey string) *OpenAI {
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultOpenAIModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &OpenAI{
		apiKey:      apiKey,
		model:       modelName,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		baseURL:     openAIURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type openAIRequest struct {
	Model          string               `json:"model"`
	Temperature    float64              `json:"temperature"`
	MaxTokens      int                  `json:"max_tokens"`
	ResponseFormat openAIResponseFormat `json:"response_format"`
	Messages       []openAIMessage      `json:"messages"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Classify sends one chat completion request and decodes the structured
// judgment from its reply.
func (o *OpenAI) Classify(
	ctx context.Context, systemPrompt, userText string,
) (model.Judgment, error) {
	reqBody := openAIRequest{
		Model:          o.model,
		Temperature:    o.temperature,
		MaxTokens:      o.maxTokens,
		ResponseFormat: openAIResponseFormat{Type: "json_object"},
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt + judgmentInstruction},
			{Role: "user", Content: userText},
		},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return model.Judgment{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, o.baseURL, bytes.NewReader(data),
	)
	if err != nil {
		return model.Judgment{}, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return model.Judgment{}, fmt.Errorf("calling OpenAI API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Judgment{}, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr openAIErrorResponse
		message := string(respBody)
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			message = apiErr.Error.Message
		}

		if resp.StatusCode == http.StatusTooManyRequests ||
			apiErr.Error.Code == "rate_limit_exceeded" {
			return model.Judgment{}, &RateLimitError{
				Provider: "openai",
				Err:      fmt.Errorf("API error (%d): %s", resp.StatusCode, message),
			}
		}

		return model.Judgment{}, fmt.Errorf(
			"API error (%d): %s", resp.StatusCode, message,
		)
	}

	var result openAIResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return model.Judgment{}, fmt.Errorf("decoding response: %w", err)
	}

	if len(result.Choices) == 0 {
		return model.Judgment{}, fmt.Errorf("empty completion response")
	}

	return parseJudgment(result.Choices[0].Message.Content)
}
